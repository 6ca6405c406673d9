package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	apperrors "github.com/adverant/nexus/docscan-worker/internal/errors"
	"github.com/adverant/nexus/docscan-worker/internal/processor"
	"github.com/adverant/nexus/docscan-worker/internal/result"
)

// Job statuses written to PostgreSQL and the Redis status sets
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const defaultProcessingTimeout = 5 * time.Minute

// jobHandler runs one payload through the processor and records its status.
// Both consumers share it.
type jobHandler struct {
	processor processor.DocumentProcessorInterface
	timeout   time.Duration
}

func newJobHandler(p processor.DocumentProcessorInterface, timeout time.Duration) *jobHandler {
	if timeout <= 0 {
		timeout = defaultProcessingTimeout
	}
	return &jobHandler{processor: p, timeout: timeout}
}

// handle returns an error only when the job did not produce a result. A
// retryable error leaves the job in processing; the caller decides whether it
// gets another attempt and calls fail when it does not.
func (h *jobHandler) handle(ctx context.Context, job *JobPayload) (*processor.ProcessResult, error) {
	startTime := time.Now()

	log.Printf("[Job %s] Processing document: profile=%s, filename=%s, size=%d bytes, user=%s",
		job.JobID, job.Profile, job.Filename, job.FileSize, job.UserID)

	if err := h.processor.UpdateJobStatus(ctx, job.JobID, StatusProcessing, 0, map[string]interface{}{
		"profile":  job.Profile,
		"filename": job.Filename,
		"mimeType": job.MimeType,
		"fileSize": job.FileSize,
		"userId":   job.UserID,
	}); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to processing: %v", job.JobID, err)
	}

	processCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req := job.ToRequest()
	res, err := h.processor.ProcessDocument(processCtx, req)
	duration := time.Since(startTime)

	// Extraction failures belong in the result, never in a retry
	if err != nil && apperrors.IsExtractionFailure(err) {
		res = &processor.ProcessResult{
			JobID:    job.JobID,
			Envelope: result.Failure(req.Profile, err).Envelope(),
		}
		err = nil
	}

	if err != nil {
		if code, _ := apperrors.CodeOf(err); processCtx.Err() == context.DeadlineExceeded && code != apperrors.ErrorProcessingTimeout {
			log.Printf("[Job %s] Processing timed out after %v (timeout: %v)", job.JobID, duration, h.timeout)
			err = apperrors.NewProcessingTimeoutError(job.JobID, h.timeout, err)
		}

		log.Printf("[Job %s] Processing failed after %v: %v", job.JobID, duration, err)
		if !apperrors.IsRetryable(err) {
			h.fail(ctx, job.JobID, err)
		}
		return nil, err
	}

	if res.Failed() {
		log.Printf("[Job %s] Extraction failed in %v: %s", job.JobID, duration, res.Envelope.ErrorKind)
		h.record(ctx, job.JobID, StatusFailed, map[string]interface{}{
			"profile":        res.Envelope.Profile,
			"processingTime": duration.Milliseconds(),
			"ocrEngine":      res.OCREngine,
			"errorCode":      res.Envelope.ErrorKind,
			"error":          res.Envelope.Message,
		})
		return res, nil
	}

	log.Printf("[Job %s] Processing completed successfully in %v: cached=%v, confidence=%.2f",
		job.JobID, duration, res.Cached, res.OCRConfidence)

	h.record(ctx, job.JobID, StatusCompleted, map[string]interface{}{
		"profile":        res.Envelope.Profile,
		"confidence":     res.OCRConfidence,
		"processingTime": duration.Milliseconds(),
		"ocrEngine":      res.OCREngine,
		"resultId":       res.ResultID,
		"cached":         res.Cached,
	})
	return res, nil
}

// fail marks the job failed with the error's code and message
func (h *jobHandler) fail(ctx context.Context, jobID string, err error) {
	meta := map[string]interface{}{
		"error": err.Error(),
	}
	var pe *apperrors.ProcessingError
	if apperrors.As(err, &pe) {
		for k, v := range pe.ToMap() {
			meta[k] = v
		}
		meta["errorCode"] = string(pe.Code)
		meta["error"] = pe.Message
	}
	h.record(ctx, jobID, StatusFailed, meta)
}

func (h *jobHandler) record(ctx context.Context, jobID, status string, meta map[string]interface{}) {
	if err := h.processor.UpdateJobStatus(ctx, jobID, status, 100, meta); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to %s: %v", jobID, status, err)
	}
}

// failureSummary is what the Redis backend stores for a failed job
func failureSummary(err error, attempts int) map[string]interface{} {
	summary := map[string]interface{}{
		"error":    err.Error(),
		"attempts": attempts,
	}
	if code, ok := apperrors.CodeOf(err); ok {
		summary["errorCode"] = string(code)
	}
	return summary
}

func describe(res *processor.ProcessResult) string {
	if res.Failed() {
		return fmt.Sprintf("%s (%s)", StatusFailed, res.Envelope.ErrorKind)
	}
	return StatusCompleted
}
