package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/adverant/nexus/docscan-worker/internal/document"
	apperrors "github.com/adverant/nexus/docscan-worker/internal/errors"
	"github.com/adverant/nexus/docscan-worker/internal/fuzzy"
	"github.com/adverant/nexus/docscan-worker/internal/ocr"
)

const (
	secondSemesterPhrase = "second semester"
	averagePhrase        = "general average for the semester"
)

var decimalPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Semester is the term a grade average belongs to
type Semester int

const (
	NoSemester Semester = iota
	FirstSemester
	SecondSemester
)

func (s Semester) String() string {
	switch s {
	case FirstSemester:
		return "First Semester"
	case SecondSemester:
		return "Second Semester"
	}
	return "None"
}

// SemesterValue is one recorded (semester, GWA) pair
type SemesterValue struct {
	Semester Semester
	Text     string
	Value    float64
}

// GWAResult is the mean of exactly two semester GWA values
type GWAResult struct {
	Average float64
	Values  []SemesterValue
}

func (GWAResult) Profile() document.Profile { return document.Transcript }

// Formatted renders the average with two decimals
func (r GWAResult) Formatted() string {
	return fmt.Sprintf("%.2f", r.Average)
}

// GWAExtractor walks transcript tokens tracking the most recent semester heading
// and pairs it with the number following a "General Average" label.
type GWAExtractor struct {
	tunables Tunables
}

// NewGWAExtractor creates a new GWAExtractor
func NewGWAExtractor(t Tunables) *GWAExtractor {
	return &GWAExtractor{tunables: t}
}

func (e *GWAExtractor) NeedsTokens() bool { return true }

func (e *GWAExtractor) Extract(doc *ocr.Document) (Fields, error) {
	res, err := ExtractGWA(doc.Tokens, e.tunables)
	if err != nil {
		return nil, err
	}
	return *res, nil
}

type semesterPair struct {
	semester Semester
	text     string
}

// ExtractGWA averages the two semester GWA values found in tokens.
// Any other number of values is INSUFFICIENT_DATA.
func ExtractGWA(tokens []ocr.Token, t Tunables) (*GWAResult, error) {
	var pairs []semesterPair
	seen := make(map[semesterPair]bool)
	last := NoSemester

	for i, tok := range tokens {
		letters := lettersOnly(lowerToken(tok.Text))
		if tok.Confidence < t.MinTokenConfidence || letters == "" {
			continue
		}

		switch {
		case strings.Contains(letters, "semester"):
			if s := semesterHeading(tokens, i, letters, t); s != NoSemester {
				last = s
			}

		case strings.Contains(letters, "average") || strings.Contains(letters, "general"):
			if last == NoSemester || !averageLabelAt(tokens, i, t) {
				continue
			}
			if text, ok := valueAfter(tokens, i, t); ok {
				p := semesterPair{semester: last, text: text}
				if !seen[p] {
					seen[p] = true
					pairs = append(pairs, p)
				}
			}
		}
	}

	values := make([]SemesterValue, 0, len(pairs))
	for _, p := range pairs {
		v, err := strconv.ParseFloat(p.text, 64)
		if err != nil {
			continue
		}
		values = append(values, SemesterValue{Semester: p.semester, Text: p.text, Value: v})
	}

	if len(values) != 2 {
		return nil, apperrors.NewInsufficientDataError(len(values))
	}

	return &GWAResult{
		Average: (values[0].Value + values[1].Value) / 2,
		Values:  values,
	}, nil
}

// semesterHeading reads a "semester" token together with the raw token before it
func semesterHeading(tokens []ocr.Token, i int, letters string, t Tunables) Semester {
	prev := ""
	if i > 0 {
		prev = lowerToken(tokens[i-1].Text)
	}
	full := strings.TrimSpace(prev + " " + letters)

	switch {
	case strings.Contains(full, "first"):
		return FirstSemester
	case strings.Contains(full, "second"), fuzzy.Matches(full, secondSemesterPhrase, t.SemesterCutoff):
		return SecondSemester
	}
	return NoSemester
}

// averageLabelAt checks whether the window of raw tokens starting at i reads
// like "General Average for the Semester"
func averageLabelAt(tokens []ocr.Token, i int, t Tunables) bool {
	end := min(i+t.PhraseWindow, len(tokens))
	words := make([]string, 0, end-i)
	for _, tok := range tokens[i:end] {
		words = append(words, lowerToken(tok.Text))
	}
	return fuzzy.Matches(strings.Join(words, " "), averagePhrase, t.PhraseCutoff)
}

// valueAfter returns the first decimal number among the tokens following i
func valueAfter(tokens []ocr.Token, i int, t Tunables) (string, bool) {
	end := min(i+t.ValueWindow, len(tokens))
	for j := i + 1; j < end; j++ {
		candidate := normalize(strings.TrimSpace(tokens[j].Text))
		if decimalPattern.MatchString(candidate) {
			return candidate, true
		}
	}
	return "", false
}
