/**
 * OCR Types - Shared data structures for OCR operations
 *
 * The recognition engine is an external collaborator; extractors only ever see
 * these types.
 */

package ocr

import (
	"context"
	"strings"
	"time"
)

// Engine recognizes text in a PNG-encoded, single-channel image.
// Implementations signal failure with an error; they never panic.
type Engine interface {
	Name() string
	RecognizeText(ctx context.Context, png []byte) (string, error)
	RecognizeTokens(ctx context.Context, png []byte) ([]Token, error)
}

// Token is one recognized word in reading order
type Token struct {
	Text        string
	Confidence  int // 0-100
	Index       int // strictly increasing in reading order
	BoundingBox BoundingBox
}

// BoundingBox represents coordinates of a region
type BoundingBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Document is everything an extractor may consume for one image
type Document struct {
	Text     string
	Lines    []string
	Tokens   []Token
	Engine   string
	Duration time.Duration
}

// NewDocument builds a Document from raw text and tokens
func NewDocument(text string, tokens []Token) *Document {
	return &Document{
		Text:   text,
		Lines:  SplitLines(text),
		Tokens: tokens,
	}
}

// MeanConfidence is the average confidence of tokens that carry one
func (d *Document) MeanConfidence() float64 {
	total, n := 0, 0
	for _, t := range d.Tokens {
		if t.Confidence < 0 {
			continue
		}
		total += t.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

// SplitLines returns the trimmed, non-empty lines of text, top to bottom
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// TokenizeText splits text on whitespace into tokens sharing one confidence
func TokenizeText(text string, confidence int) []Token {
	fields := strings.Fields(text)
	tokens := make([]Token, len(fields))
	for i, f := range fields {
		tokens[i] = Token{Text: f, Confidence: confidence, Index: i}
	}
	return tokens
}
