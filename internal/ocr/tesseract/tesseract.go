/**
 * Tesseract OCR engine
 *
 * Local, offline recognition through libtesseract. A fresh client is created per
 * call so concurrent jobs never share engine state.
 */

package tesseract

import (
	"context"
	"fmt"
	"math"

	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/docscan-worker/internal/ocr"
)

// Config holds Tesseract configuration
type Config struct {
	Language       string // e.g. "eng"
	TessdataPrefix string // directory containing tessdata, empty for the system default
}

// Engine implements ocr.Engine on top of gosseract
type Engine struct {
	language       string
	tessdataPrefix string
}

// New creates a new Tesseract engine
func New(cfg Config) *Engine {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Engine{
		language:       cfg.Language,
		tessdataPrefix: cfg.TessdataPrefix,
	}
}

// Name identifies the engine in logs and error details
func (e *Engine) Name() string { return "tesseract" }

// RecognizeText returns the page text with line breaks preserved
func (e *Engine) RecognizeText(ctx context.Context, png []byte) (string, error) {
	return run(ctx, func() (string, error) {
		client, err := e.newClient(png)
		if err != nil {
			return "", err
		}
		defer client.Close()

		text, err := client.Text()
		if err != nil {
			return "", fmt.Errorf("tesseract OCR failed: %w", err)
		}
		return text, nil
	})
}

// RecognizeTokens returns word-level tokens with their confidence
func (e *Engine) RecognizeTokens(ctx context.Context, png []byte) ([]ocr.Token, error) {
	return run(ctx, func() ([]ocr.Token, error) {
		client, err := e.newClient(png)
		if err != nil {
			return nil, err
		}
		defer client.Close()

		boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
		if err != nil {
			return nil, fmt.Errorf("tesseract word iteration failed: %w", err)
		}
		return toTokens(boxes), nil
	})
}

func (e *Engine) newClient(png []byte) (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if e.tessdataPrefix != "" {
		client.TessdataPrefix = e.tessdataPrefix
	}
	if err := client.SetLanguage(e.language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language %q: %w", e.language, err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	return client, nil
}

func toTokens(boxes []gosseract.BoundingBox) []ocr.Token {
	tokens := make([]ocr.Token, 0, len(boxes))
	for _, b := range boxes {
		tokens = append(tokens, ocr.Token{
			Text:       b.Word,
			Confidence: clampConfidence(b.Confidence),
			Index:      len(tokens),
			BoundingBox: ocr.BoundingBox{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
		})
	}
	return tokens
}

func clampConfidence(c float64) int {
	v := int(math.Round(c))
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

type outcome[T any] struct {
	value T
	err   error
}

// run executes fn without blocking past ctx. libtesseract cannot be interrupted,
// so an abandoned call finishes in the background and closes its own client.
func run[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn()
		done <- outcome[T]{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case o := <-done:
		return o.value, o.err
	}
}
