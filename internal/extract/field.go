/**
 * Field extraction primitives
 *
 * A Field is a value that may or may not have been found. Sentinel text such as
 * "VIN not found." is only produced when a result is serialized, so nothing in
 * this package can confuse a placeholder with recognized data.
 */

package extract

import (
	"github.com/adverant/nexus/docscan-worker/internal/document"
	"github.com/adverant/nexus/docscan-worker/internal/ocr"
)

// Field holds an optional extracted value
type Field struct {
	value   string
	present bool
}

// Found wraps a recognized value
func Found(value string) Field {
	return Field{value: value, present: true}
}

// Missing is the zero Field
var Missing = Field{}

// Get returns the value and whether it was found
func (f Field) Get() (string, bool) { return f.value, f.present }

// Present reports whether the field was found
func (f Field) Present() bool { return f.present }

// Or returns the value, or fallback when missing
func (f Field) Or(fallback string) string {
	if f.present {
		return f.value
	}
	return fallback
}

// Strategy is one way of locating a field in some input
type Strategy[T any] struct {
	Name string
	Find func(input T) (string, bool)
}

// FirstMatch tries strategies in priority order and keeps the first hit
func FirstMatch[T any](input T, strategies ...Strategy[T]) Field {
	for _, s := range strategies {
		if v, ok := s.Find(input); ok {
			return Found(v)
		}
	}
	return Missing
}

// Fields is the structured output for one document profile
type Fields interface {
	Profile() document.Profile
}

// Extractor parses OCR output into Fields
type Extractor interface {
	// NeedsTokens reports whether Extract reads Document.Tokens rather than text lines
	NeedsTokens() bool
	Extract(doc *ocr.Document) (Fields, error)
}

// ForProfile returns the extractor bound to a document profile
func ForProfile(p document.Profile, t Tunables) (Extractor, bool) {
	switch p {
	case document.Transcript:
		return NewGWAExtractor(t), true
	case document.ExamResult:
		return NewExamInfoExtractor(), true
	case document.VotersID:
		return NewVotersIDExtractor(t), true
	}
	return nil, false
}
