package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/adverant/nexus/docscan-worker/internal/errors"
	"github.com/adverant/nexus/docscan-worker/internal/ocr"
)

func requireInsufficient(t *testing.T, err error, found int) {
	t.Helper()
	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorInsufficientData, code)
	assert.Contains(t, err.Error(), "need exactly two semester GWA values")

	var pe *apperrors.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, found, pe.Details["values_found"])
}

func TestExtractGWA_TwoSemesters(t *testing.T) {
	tokens := ocr.TokenizeText(
		"First Semester General Average for the Semester 90.5 "+
			"Second Semester General Average for the Semester 91.5", 95)

	res, err := ExtractGWA(tokens, DefaultTunables())
	require.NoError(t, err)
	assert.Equal(t, "91.00", res.Formatted())
	require.Len(t, res.Values, 2)
	assert.Equal(t, FirstSemester, res.Values[0].Semester)
	assert.Equal(t, "90.5", res.Values[0].Text)
	assert.Equal(t, SecondSemester, res.Values[1].Semester)
	assert.Equal(t, 91.5, res.Values[1].Value)
}

func TestExtractGWA_NoisyLabels(t *testing.T) {
	tokens := ocr.TokenizeText(
		"FIRST SEMESTER Subject Grade Math 1.25 General Averge for the Semestr 1.50 "+
			"SECOND SEMESTER English 1.75 Genral Average for the Semester 1.25", 88)

	res, err := ExtractGWA(tokens, DefaultTunables())
	require.NoError(t, err)
	assert.Equal(t, "1.38", res.Formatted())
}

func TestExtractGWA_SinglePairIsInsufficient(t *testing.T) {
	tokens := ocr.TokenizeText("First Semester General Average for the Semester 90.5", 95)

	res, err := ExtractGWA(tokens, DefaultTunables())
	assert.Nil(t, res)
	requireInsufficient(t, err, 1)
}

func TestExtractGWA_ThreePairsIsInsufficient(t *testing.T) {
	tokens := ocr.TokenizeText(
		"First Semester General Average for the Semester 88 "+
			"Second Semester General Average for the Semester 90 "+
			"Summer Semester General Average for the Semester 92", 95)

	_, err := ExtractGWA(tokens, DefaultTunables())
	requireInsufficient(t, err, 3)
}

func TestExtractGWA_DuplicatePairsCountOnce(t *testing.T) {
	// Both "General" and "Average" open a label window, and the first block is
	// printed twice; each yields (First Semester, 90.5).
	tokens := ocr.TokenizeText(
		"First Semester General Average for the Semester 90.5 "+
			"First Semester General Average for the Semester 90.5 "+
			"Second Semester General Average for the Semester 92.5", 95)

	res, err := ExtractGWA(tokens, DefaultTunables())
	require.NoError(t, err)
	assert.Equal(t, "91.50", res.Formatted())
}

func TestExtractGWA_LowConfidenceTokensIgnored(t *testing.T) {
	tokens := ocr.TokenizeText(
		"First Semester General Average for the Semester 90.5 "+
			"Second Semester General Average for the Semester 91.5", 95)
	// Drop confidence on every label that could open the second window.
	for i := 10; i < len(tokens); i++ {
		tokens[i].Confidence = 40
	}

	_, err := ExtractGWA(tokens, DefaultTunables())
	requireInsufficient(t, err, 1)
}

func TestExtractGWA_NoSemesterHeading(t *testing.T) {
	tokens := ocr.TokenizeText("General Average 90.5 General Average 91.5", 99)
	_, err := ExtractGWA(tokens, DefaultTunables())
	requireInsufficient(t, err, 0)
}

func TestExtractGWA_ValueOutsideWindow(t *testing.T) {
	tokens := ocr.TokenizeText(
		"First Semester General Average for the Semester a b c d e f 90.5 "+
			"Second Semester General Average for the Semester 91.5", 95)

	_, err := ExtractGWA(tokens, DefaultTunables())
	requireInsufficient(t, err, 1)

	wide := DefaultTunables()
	wide.ValueWindow = 12
	res, err := ExtractGWA(tokens, wide)
	require.NoError(t, err)
	assert.Equal(t, "91.00", res.Formatted())
}

func TestExtractGWA_Empty(t *testing.T) {
	_, err := ExtractGWA(nil, DefaultTunables())
	requireInsufficient(t, err, 0)
}

func TestGWAExtractor_UsesTokens(t *testing.T) {
	e := NewGWAExtractor(DefaultTunables())
	assert.True(t, e.NeedsTokens())

	doc := ocr.NewDocument("", ocr.TokenizeText(
		"1st Semester? no. First Semester General Average for the Semester 85 "+
			"Second Semester General Average for the Semester 86", 90))
	fields, err := e.Extract(doc)
	require.NoError(t, err)

	res, ok := fields.(GWAResult)
	require.True(t, ok)
	assert.Equal(t, "85.50", res.Formatted())
}

func TestSemesterString(t *testing.T) {
	assert.Equal(t, "First Semester", FirstSemester.String())
	assert.Equal(t, "Second Semester", SecondSemester.String())
	assert.Equal(t, "None", NoSemester.String())
}
