/**
 * Extraction pipeline
 *
 * image bytes -> preprocess (profile config) -> OCR -> extractor (profile) -> tagged result
 *
 * A Pipeline holds only read-only state and may be shared across goroutines.
 */

package processor

import (
	"context"
	"strings"
	"time"

	"github.com/adverant/nexus/docscan-worker/internal/document"
	apperrors "github.com/adverant/nexus/docscan-worker/internal/errors"
	"github.com/adverant/nexus/docscan-worker/internal/extract"
	"github.com/adverant/nexus/docscan-worker/internal/logging"
	"github.com/adverant/nexus/docscan-worker/internal/ocr"
	"github.com/adverant/nexus/docscan-worker/internal/preprocess"
	"github.com/adverant/nexus/docscan-worker/internal/result"
)

// Pipeline runs one extraction end to end
type Pipeline struct {
	engine   ocr.Engine
	tunables extract.Tunables
	logger   *logging.Logger
}

// Outcome is the tagged result plus what the engine saw
type Outcome struct {
	Result   result.Result
	Document *ocr.Document // nil when extraction failed before recognition
	Duration time.Duration
}

// NewPipeline creates a new Pipeline
func NewPipeline(engine ocr.Engine, tunables extract.Tunables) *Pipeline {
	return &Pipeline{
		engine:   engine,
		tunables: tunables,
		logger:   logging.NewLogger("Pipeline"),
	}
}

// Run extracts the fields for profile from raw image bytes.
// Failures are carried inside the returned result, never as a Go error.
func (p *Pipeline) Run(ctx context.Context, data []byte, profile document.Profile) *Outcome {
	start := time.Now()
	out := &Outcome{}
	defer func() { out.Duration = time.Since(start) }()

	fail := func(err error) *Outcome {
		out.Result = result.Failure(profile, err)
		return out
	}

	cfg, ok := preprocess.ForProfile(profile)
	if !ok {
		return fail(apperrors.NewUnknownProfileError("", profile.String()))
	}
	extractor, ok := extract.ForProfile(profile, p.tunables)
	if !ok {
		return fail(apperrors.NewUnknownProfileError("", profile.String()))
	}

	processed, err := preprocess.Apply(data, cfg)
	if err != nil {
		return fail(err)
	}
	p.logger.Debug("image preprocessed", "profile", profile, "width", processed.Width(), "height", processed.Height())

	png, err := processed.PNG()
	if err != nil {
		return fail(apperrors.NewOCRFailedError(p.engine.Name(), err))
	}

	doc, err := p.recognize(ctx, png, extractor.NeedsTokens())
	if err != nil {
		return fail(err)
	}
	out.Document = doc

	fields, err := extractor.Extract(doc)
	out.Result = result.Assemble(profile, fields, err)
	return out
}

func (p *Pipeline) recognize(ctx context.Context, png []byte, needsTokens bool) (*ocr.Document, error) {
	start := time.Now()
	var doc *ocr.Document

	if needsTokens {
		tokens, err := p.engine.RecognizeTokens(ctx, png)
		if err != nil {
			return nil, apperrors.NewOCRFailedError(p.engine.Name(), err)
		}
		words := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if t.Text != "" {
				words = append(words, t.Text)
			}
		}
		doc = ocr.NewDocument(strings.Join(words, " "), tokens)
	} else {
		text, err := p.engine.RecognizeText(ctx, png)
		if err != nil {
			return nil, apperrors.NewOCRFailedError(p.engine.Name(), err)
		}
		doc = ocr.NewDocument(text, nil)
	}

	doc.Engine = p.engine.Name()
	doc.Duration = time.Since(start)
	return doc, nil
}
