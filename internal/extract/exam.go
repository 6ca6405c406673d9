package extract

import (
	"regexp"
	"strings"

	"github.com/adverant/nexus/docscan-worker/internal/document"
	"github.com/adverant/nexus/docscan-worker/internal/ocr"
)

var (
	examNamePattern  = regexp.MustCompile(`(?i)(?:name|examinee)[:\-]?\s*(.+)`)
	examScorePattern = regexp.MustCompile(`(?i)score[:\-]?\s*(\d+)`)
	examDatePattern  = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2,4})\b`)
)

// ExamInfo is what can be read off an entrance exam result slip.
// Each field is independent; missing ones do not fail extraction.
type ExamInfo struct {
	ExamType  Field
	Name      Field
	Score     Field
	DateTaken Field
}

func (ExamInfo) Profile() document.Profile { return document.ExamResult }

// Candidate strategies per field, in priority order
var (
	examTypeStrategies = []Strategy[[]string]{
		{Name: "entrance-exam-keyword", Find: findEntranceExam},
	}
	examNameStrategies = []Strategy[[]string]{
		{Name: "labelled-name", Find: findLabelledName},
		{Name: "upper-case-line", Find: findUpperCaseName},
	}
	examScoreStrategies = []Strategy[[]string]{
		{Name: "labelled-score", Find: findLabelledScore},
	}
	examDateStrategies = []Strategy[[]string]{
		{Name: "slash-date", Find: findSlashDate},
	}
)

// ExamInfoExtractor parses result slip lines
type ExamInfoExtractor struct{}

// NewExamInfoExtractor creates a new ExamInfoExtractor
func NewExamInfoExtractor() *ExamInfoExtractor {
	return &ExamInfoExtractor{}
}

func (e *ExamInfoExtractor) NeedsTokens() bool { return false }

func (e *ExamInfoExtractor) Extract(doc *ocr.Document) (Fields, error) {
	return ExtractExamInfo(doc.Lines), nil
}

// ExtractExamInfo never fails; fields it cannot locate stay missing
func ExtractExamInfo(lines []string) ExamInfo {
	return ExamInfo{
		ExamType:  FirstMatch(lines, examTypeStrategies...),
		Name:      FirstMatch(lines, examNameStrategies...),
		Score:     FirstMatch(lines, examScoreStrategies...),
		DateTaken: FirstMatch(lines, examDateStrategies...),
	}
}

func findEntranceExam(lines []string) (string, bool) {
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), "entrance exam") {
			return "Entrance Exam", true
		}
	}
	return "", false
}

func findLabelledName(lines []string) (string, bool) {
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "name") && !strings.Contains(lower, "examinee") {
			continue
		}
		m := examNamePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		// A bare "Name:" label captures only its own separator.
		if name := strings.TrimSpace(strings.TrimLeft(m[1], ":- ")); name != "" {
			return name, true
		}
	}
	return "", false
}

// findUpperCaseName picks a line that looks like a printed name: all caps,
// two to four words, no digits
func findUpperCaseName(lines []string) (string, bool) {
	for _, line := range lines {
		words := strings.Fields(line)
		if isUpper(line) && len(words) >= 2 && len(words) <= 4 && !hasDigit(line) {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}

func findLabelledScore(lines []string) (string, bool) {
	for _, line := range lines {
		if !strings.Contains(strings.ToLower(line), "score") {
			continue
		}
		if m := examScorePattern.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func findSlashDate(lines []string) (string, bool) {
	for _, line := range lines {
		if m := examDatePattern.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}
