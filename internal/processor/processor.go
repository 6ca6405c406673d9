/**
 * Document Processor for the document scan worker
 *
 * Orchestrates one admissions upload end to end:
 * - load the upload from the job buffer or a download URL
 * - size check and magic-byte sniffing
 * - result cache lookup by content hash
 * - extraction pipeline under a processing timeout
 * - persistence of the tagged result
 *
 * Extraction failures (undecodable image, OCR failure, insufficient data) are
 * part of a successful ProcessResult. Only request and infrastructure problems
 * come back as errors.
 */

package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/adverant/nexus/docscan-worker/internal/document"
	apperrors "github.com/adverant/nexus/docscan-worker/internal/errors"
	"github.com/adverant/nexus/docscan-worker/internal/result"
	"github.com/adverant/nexus/docscan-worker/internal/storage"
)

// DocumentProcessorInterface defines the interface for document processing
type DocumentProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error
}

// ResultStore is the persistence the processor needs. *storage.StorageManager
// implements it.
type ResultStore interface {
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
	StoreResult(ctx context.Context, input *storage.StoreInput) (string, error)
	LookupCached(ctx context.Context, profile, hash string) (*result.Envelope, bool)
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Pipeline          *Pipeline
	Store             ResultStore // nil disables persistence and caching
	MaxFileSize       int64
	ProcessingTimeout time.Duration
	HTTPClient        *http.Client
	DownloadRetries   int
	DownloadBackoff   time.Duration
}

// ProcessRequest represents a document processing request
type ProcessRequest struct {
	JobID      string
	UserID     string
	Profile    document.Profile
	Filename   string
	MimeType   string
	FileSize   int64
	FileURL    string
	FileBuffer []byte
	Metadata   map[string]interface{}
}

// ProcessResult represents the processing result
type ProcessResult struct {
	JobID            string
	ResultID         string
	Envelope         result.Envelope
	Cached           bool
	MimeType         string
	ContentHash      string
	OCREngine        string
	OCRConfidence    float64
	ProcessingTimeMs int64
}

// Failed reports whether the extraction itself failed
func (r *ProcessResult) Failed() bool {
	return !r.Envelope.OK()
}

// DocumentProcessor handles document processing
type DocumentProcessor struct {
	config   *ProcessorConfig
	pipeline *Pipeline
	store    ResultStore
	http     *http.Client
}

// NewDocumentProcessor creates a new document processor
func NewDocumentProcessor(cfg *ProcessorConfig) (*DocumentProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	if cfg.DownloadRetries <= 0 {
		cfg.DownloadRetries = 3
	}
	if cfg.DownloadBackoff <= 0 {
		cfg.DownloadBackoff = time.Second
	}

	return &DocumentProcessor{
		config:   cfg,
		pipeline: cfg.Pipeline,
		store:    cfg.Store,
		http:     client,
	}, nil
}

// ProcessDocument processes one upload through the extraction pipeline
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	start := time.Now()
	log.Printf("[Job %s] Starting extraction (profile=%s)", req.JobID, req.Profile)

	if !req.Profile.Valid() {
		return nil, apperrors.NewUnknownProfileError(req.JobID, req.Profile.String())
	}

	// Step 1: Load file
	fileData, err := p.loadFile(ctx, req)
	if err != nil {
		return nil, err
	}

	if p.config.MaxFileSize > 0 && int64(len(fileData)) > p.config.MaxFileSize {
		return nil, apperrors.NewFileTooLargeError(req.JobID, int64(len(fileData)), p.config.MaxFileSize)
	}

	// Step 2: Detect actual MIME type from magic bytes
	// Portal uploads often arrive as application/octet-stream
	detectedMime := detectMimeTypeFromMagicBytes(fileData)
	if detectedMime != "" && (req.MimeType == "" || req.MimeType == "application/octet-stream") {
		log.Printf("[Job %s] Corrected MIME type from '%s' to '%s' (magic byte detection)",
			req.JobID, req.MimeType, detectedMime)
		req.MimeType = detectedMime
	}

	res := &ProcessResult{
		JobID:       req.JobID,
		MimeType:    req.MimeType,
		ContentHash: storage.ContentHash(fileData),
	}

	// Step 3: Same upload, same profile, same answer
	if p.store != nil {
		if env, ok := p.store.LookupCached(ctx, req.Profile.String(), res.ContentHash); ok {
			log.Printf("[Job %s] Cache hit (hash=%s)", req.JobID, res.ContentHash[:12])
			res.Envelope = *env
			res.Cached = true
			res.ProcessingTimeMs = time.Since(start).Milliseconds()
			return res, nil
		}
	}

	// Step 4: Extraction
	runCtx := ctx
	if p.config.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.config.ProcessingTimeout)
		defer cancel()
	}

	outcome := p.pipeline.Run(runCtx, fileData, req.Profile)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, apperrors.NewProcessingTimeoutError(req.JobID, p.config.ProcessingTimeout, runCtx.Err())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Envelope = outcome.Result.Envelope()
	var lines []string
	if outcome.Document != nil {
		lines = outcome.Document.Lines
		res.OCREngine = outcome.Document.Engine
		res.OCRConfidence = outcome.Document.MeanConfidence() / 100
	}

	if res.Failed() {
		log.Printf("[Job %s] Extraction failed: kind=%s message=%q",
			req.JobID, res.Envelope.ErrorKind, res.Envelope.Message)
	} else {
		log.Printf("[Job %s] Extraction complete in %v: fields=%d",
			req.JobID, outcome.Duration, len(res.Envelope.Fields))
	}

	// Step 5: Persist
	if p.store != nil {
		id, err := p.store.StoreResult(ctx, &storage.StoreInput{
			JobID:         req.JobID,
			ContentHash:   res.ContentHash,
			Envelope:      res.Envelope,
			Lines:         lines,
			OCREngine:     res.OCREngine,
			OCRConfidence: res.OCRConfidence,
		})
		if err != nil {
			return nil, apperrors.NewStorageFailedError(req.JobID, err)
		}
		res.ResultID = id
	}

	res.ProcessingTimeMs = time.Since(start).Milliseconds()
	return res, nil
}

// UpdateJobStatus records job progress. Without a store it is a no-op.
func (p *DocumentProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error {
	if p.store == nil {
		return nil
	}

	fields := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		fields[k] = v
	}
	fields["progress"] = progress

	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: fields,
	}

	if profile, ok := metadata["profile"].(string); ok {
		update.Profile = profile
	}
	if confidence, ok := metadata["confidence"].(float64); ok {
		update.Confidence = confidence
	}
	if processingTime, ok := metadata["processingTime"].(int64); ok {
		update.ProcessingTimeMs = processingTime
	}
	if engine, ok := metadata["ocrEngine"].(string); ok {
		update.OCREngine = engine
	}
	if errorMsg, ok := metadata["error"].(string); ok {
		update.ErrorCode = "PROCESSING_ERROR"
		if code, ok := metadata["errorCode"].(string); ok && code != "" {
			update.ErrorCode = code
		}
		update.ErrorMessage = errorMsg
	}

	return p.store.UpdateJobStatus(ctx, update)
}

// loadFile returns the upload bytes. A job with neither buffer nor URL yields
// no bytes, which the pipeline reports as an undecodable image.
func (p *DocumentProcessor) loadFile(ctx context.Context, req *ProcessRequest) ([]byte, error) {
	if len(req.FileBuffer) > 0 {
		log.Printf("[Job %s] Using file buffer (%d bytes)", req.JobID, len(req.FileBuffer))
		return req.FileBuffer, nil
	}

	if req.FileURL != "" {
		log.Printf("[Job %s] Downloading file from URL: %s (fileSize=%d)", req.JobID, req.FileURL, req.FileSize)
		fileData, err := p.downloadFileFromURL(ctx, req.JobID, req.FileURL)
		if err != nil {
			return nil, err
		}
		log.Printf("[Job %s] File downloaded successfully (%d bytes)", req.JobID, len(fileData))
		return fileData, nil
	}

	log.Printf("[Job %s] WARNING: no file source provided (buffer or URL)", req.JobID)
	return nil, nil
}

// downloadFileFromURL fetches the upload with exponential backoff between attempts
func (p *DocumentProcessor) downloadFileFromURL(ctx context.Context, jobID string, fileURL string) ([]byte, error) {
	maxRetries := p.config.DownloadRetries
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			backoff := p.config.DownloadBackoff << (attempt - 2)
			log.Printf("[Job %s] Retrying in %v...", jobID, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, apperrors.NewDownloadFailedError(jobID, fileURL, ctx.Err())
			}
		}

		fileData, err := p.fetch(ctx, fileURL)
		if err == nil {
			return fileData, nil
		}

		var pe *apperrors.ProcessingError
		if apperrors.As(err, &pe) {
			// too large: no point retrying
			return nil, pe.WithJob(jobID)
		}

		lastErr = err
		log.Printf("[Job %s] Download attempt %d/%d failed: %v", jobID, attempt, maxRetries, err)
	}

	return nil, apperrors.NewDownloadFailedError(jobID, fileURL,
		fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr))
}

func (p *DocumentProcessor) fetch(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	limit := p.config.MaxFileSize
	if limit > 0 && resp.ContentLength > limit {
		return nil, apperrors.NewFileTooLargeError("", resp.ContentLength, limit)
	}
	if limit <= 0 {
		limit = 64 << 20
	}

	// read one byte past the limit so oversize bodies without Content-Length are caught
	return io.ReadAll(io.LimitReader(resp.Body, limit+1))
}
