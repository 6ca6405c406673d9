package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/docscan-worker/internal/ocr"
)

func value(t *testing.T, f Field) string {
	t.Helper()
	v, ok := f.Get()
	require.True(t, ok, "field expected to be present")
	return v
}

func TestExtractExamInfo_LabelledSlip(t *testing.T) {
	info := ExtractExamInfo([]string{
		"Entrance Exam Result",
		"Name: Juan Dela Cruz",
		"Score: 87",
		"Date: 05/21/2024",
	})

	assert.Equal(t, "Entrance Exam", value(t, info.ExamType))
	assert.Equal(t, "Juan Dela Cruz", value(t, info.Name))
	assert.Equal(t, "87", value(t, info.Score))
	assert.Equal(t, "05/21/2024", value(t, info.DateTaken))
}

func TestExtractExamInfo_FirstMatchWins(t *testing.T) {
	info := ExtractExamInfo([]string{
		"Examinee - Maria Clara",
		"Name: Someone Else",
		"Score 91",
		"Score 55",
		"Released 6/1/24 for exam taken 05/21/2024",
	})

	assert.Equal(t, "Maria Clara", value(t, info.Name))
	assert.Equal(t, "91", value(t, info.Score))
	assert.Equal(t, "6/1/24", value(t, info.DateTaken))
	assert.False(t, info.ExamType.Present())
}

func TestExtractExamInfo_UpperCaseNameFallback(t *testing.T) {
	info := ExtractExamInfo([]string{
		"UNIVERSITY ADMISSIONS OFFICE 2024",
		"RESULT",
		"JUAN DELA CRUZ",
		"PEDRO PENDUKO",
	})

	assert.Equal(t, "JUAN DELA CRUZ", value(t, info.Name))
}

func TestExtractExamInfo_LabelWithoutValueFallsThrough(t *testing.T) {
	info := ExtractExamInfo([]string{
		"Name:",
		"ANA REYES",
	})

	assert.Equal(t, "ANA REYES", value(t, info.Name))
}

func TestExtractExamInfo_NothingFound(t *testing.T) {
	info := ExtractExamInfo([]string{"lorem ipsum", "12345"})

	assert.False(t, info.ExamType.Present())
	assert.False(t, info.Name.Present())
	assert.False(t, info.Score.Present())
	assert.False(t, info.DateTaken.Present())

	assert.Equal(t, ExamInfo{}, ExtractExamInfo(nil))
}

func TestExtractExamInfo_ScoreNeedsDigits(t *testing.T) {
	info := ExtractExamInfo([]string{"Score: pending", "Total score: 78"})
	assert.Equal(t, "78", value(t, info.Score))
}

func TestExamInfoExtractor_ReadsLines(t *testing.T) {
	e := NewExamInfoExtractor()
	assert.False(t, e.NeedsTokens())

	fields, err := e.Extract(ocr.NewDocument("ENTRANCE EXAM\nScore: 100\n", nil))
	require.NoError(t, err)

	info, ok := fields.(ExamInfo)
	require.True(t, ok)
	assert.Equal(t, "Entrance Exam", value(t, info.ExamType))
	assert.Equal(t, "100", value(t, info.Score))
}

func TestFirstMatch_Order(t *testing.T) {
	never := Strategy[string]{Name: "never", Find: func(string) (string, bool) { return "", false }}
	first := Strategy[string]{Name: "first", Find: func(s string) (string, bool) { return "a:" + s, true }}
	second := Strategy[string]{Name: "second", Find: func(s string) (string, bool) { return "b:" + s, true }}

	assert.Equal(t, Found("a:x"), FirstMatch("x", never, first, second))
	assert.Equal(t, Missing, FirstMatch("x", never))
	assert.Equal(t, "fallback", FirstMatch("x").Or("fallback"))
}
