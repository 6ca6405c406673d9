/**
 * Job payload shared by both queue backends
 *
 * The admissions portal enqueues one job per upload. File bytes arrive either
 * inline (base64 string, or a Node.js Buffer object from older producers) or
 * as a URL the worker downloads.
 */

package queue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/adverant/nexus/docscan-worker/internal/document"
	"github.com/adverant/nexus/docscan-worker/internal/processor"
)

// TaskTypeExtractDocument is the asynq task type and the Redis job type
const TaskTypeExtractDocument = "extract-document"

// JobPayload contains the actual job data
type JobPayload struct {
	JobID      string                 `json:"jobId"`
	UserID     string                 `json:"userId"`
	Profile    string                 `json:"profile"`
	Filename   string                 `json:"filename"`
	MimeType   string                 `json:"mimeType,omitempty"`
	FileSize   int64                  `json:"fileSize,omitempty"`
	FileURL    string                 `json:"fileUrl,omitempty"`
	FileBuffer []byte                 `json:"-"` // set by UnmarshalJSON
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// MarshalJSON writes FileBuffer as a base64 string
func (p JobPayload) MarshalJSON() ([]byte, error) {
	type Alias JobPayload
	return json.Marshal(&struct {
		FileBuffer string `json:"fileBuffer,omitempty"`
		Alias
	}{
		FileBuffer: base64.StdEncoding.EncodeToString(p.FileBuffer),
		Alias:      Alias(p),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for JobPayload to handle Buffer serialization
// Supports both base64 string format and Node.js Buffer object format
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	type Alias JobPayload
	aux := &struct {
		FileBuffer interface{} `json:"fileBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	if aux.FileBuffer == nil {
		return nil
	}

	switch v := aux.FileBuffer.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 fileBuffer: %w", err)
		}
		p.FileBuffer = decoded

	case map[string]interface{}:
		if bufferType, ok := v["type"].(string); !ok || bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.FileBuffer = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok || byteVal < 0 || byteVal > 255 {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.FileBuffer[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("fileBuffer must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// Validate checks the fields every job needs before it is enqueued
func (p *JobPayload) Validate() error {
	if p.JobID == "" {
		return fmt.Errorf("jobId is required")
	}
	if _, err := document.Parse(p.Profile); err != nil {
		return err
	}
	if len(p.FileBuffer) == 0 && p.FileURL == "" {
		return fmt.Errorf("job %s has neither fileBuffer nor fileUrl", p.JobID)
	}
	return nil
}

// ToRequest converts the payload to a processor request. An unrecognised
// profile tag is passed through so the processor reports it.
func (p *JobPayload) ToRequest() *processor.ProcessRequest {
	profile, err := document.Parse(p.Profile)
	if err != nil {
		profile = document.Profile(p.Profile)
	}
	return &processor.ProcessRequest{
		JobID:      p.JobID,
		UserID:     p.UserID,
		Profile:    profile,
		Filename:   p.Filename,
		MimeType:   p.MimeType,
		FileSize:   p.FileSize,
		FileURL:    p.FileURL,
		FileBuffer: p.FileBuffer,
		Metadata:   p.Metadata,
	}
}
