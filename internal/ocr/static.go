package ocr

import (
	"context"
	"strings"
)

// StaticEngine returns canned output. It backs the CLI's --ocr-text mode and tests.
type StaticEngine struct {
	Text   string
	Tokens []Token
	Err    error
}

// NewStaticEngine creates an engine that always recognizes text.
// Tokens are derived from text with the given confidence.
func NewStaticEngine(text string, confidence int) *StaticEngine {
	return &StaticEngine{Text: text, Tokens: TokenizeText(text, confidence)}
}

func (s *StaticEngine) Name() string { return "static" }

func (s *StaticEngine) RecognizeText(ctx context.Context, _ []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Text, nil
}

func (s *StaticEngine) RecognizeTokens(ctx context.Context, _ []byte) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Tokens == nil && strings.TrimSpace(s.Text) != "" {
		return TokenizeText(s.Text, 100), nil
	}
	return s.Tokens, nil
}
