/**
 * PostgreSQL Client for the document scan worker
 *
 * Persists job status and the extracted fields for every processed document.
 */

package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a job or extraction does not exist
var ErrNotFound = errors.New("not found")

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Profile          string
	Confidence       float64
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	OCREngine        string
	Metadata         map[string]interface{}
}

// ExtractionRecord is one stored extraction
type ExtractionRecord struct {
	ID            string            `json:"id"`
	JobID         string            `json:"jobId"`
	Profile       string            `json:"profile"`
	ContentHash   string            `json:"contentHash"`
	Status        string            `json:"status"`
	Fields        map[string]string `json:"fields,omitempty"`
	ErrorKind     string            `json:"errorKind,omitempty"`
	Message       string            `json:"message,omitempty"`
	Lines         []string          `json:"lines,omitempty"`
	OCREngine     string            `json:"ocrEngine,omitempty"`
	OCRConfidence float64           `json:"ocrConfidence"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// sanitizeConfidence rounds confidence to 4 decimal places and clamps it to [0, 1]
// so it fits the NUMERIC(5,4) column.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateJobStatus upserts the job row, creating it on the first status update
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	sanitizedConfidence := sanitizeConfidence(update.Confidence)

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metadataJSON = sanitizeJSONForPostgres(metadataJSON)

	query := `
		INSERT INTO admissions.extraction_jobs (
			id, user_id, filename, mime_type, file_size, profile,
			status, ocr_confidence, processing_time_ms,
			error_code, error_message, ocr_engine, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE(NULLIF($12, ''), 'anonymous'), COALESCE(NULLIF($9, ''), 'upload'),
			COALESCE(NULLIF($10, ''), 'application/octet-stream'), COALESCE($11, 0),
			NULLIF($13, ''),
			$2, NULLIF($3::NUMERIC(5,4), 0), NULLIF($4, 0),
			NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
			COALESCE($8::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			ocr_confidence = COALESCE(EXCLUDED.ocr_confidence, admissions.extraction_jobs.ocr_confidence),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, admissions.extraction_jobs.processing_time_ms),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			ocr_engine = COALESCE(EXCLUDED.ocr_engine, admissions.extraction_jobs.ocr_engine),
			profile = COALESCE(EXCLUDED.profile, admissions.extraction_jobs.profile),
			metadata = admissions.extraction_jobs.metadata || EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`

	var filename, mimeType, userID string
	var fileSize int64
	if update.Metadata != nil {
		if fn, ok := update.Metadata["filename"].(string); ok {
			filename = fn
		}
		if mt, ok := update.Metadata["mimeType"].(string); ok {
			mimeType = mt
		}
		if fs, ok := update.Metadata["fileSize"].(int64); ok {
			fileSize = fs
		} else if fs, ok := update.Metadata["fileSize"].(float64); ok {
			fileSize = int64(fs)
		}
		if uid, ok := update.Metadata["userId"].(string); ok {
			userID = uid
		}
	}

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1
		update.Status,           // $2
		sanitizedConfidence,     // $3
		update.ProcessingTimeMs, // $4
		update.ErrorCode,        // $5
		update.ErrorMessage,     // $6
		update.OCREngine,        // $7
		metadataJSON,            // $8
		filename,                // $9
		mimeType,                // $10
		fileSize,                // $11
		userID,                  // $12
		update.Profile,          // $13
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// StoreExtraction inserts an extraction record and returns its ID
func (p *PostgresClient) StoreExtraction(ctx context.Context, rec *ExtractionRecord) (string, error) {
	if rec.JobID == "" {
		return "", fmt.Errorf("job ID is required")
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fields: %w", err)
	}
	fieldsJSON = sanitizeJSONForPostgres(fieldsJSON)

	query := `
		INSERT INTO admissions.extraction_results (
			job_id, profile, content_hash, status, fields,
			error_kind, message, ocr_lines, ocr_engine, ocr_confidence,
			created_at
		) VALUES (
			$1::uuid, $2, $3, $4, $5::jsonb,
			NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''), $10,
			NOW()
		)
		RETURNING id, created_at
	`

	err = p.db.QueryRowContext(
		ctx,
		query,
		rec.JobID,
		rec.Profile,
		rec.ContentHash,
		rec.Status,
		fieldsJSON,
		rec.ErrorKind,
		rec.Message,
		pq.Array(stripNulls(rec.Lines)),
		rec.OCREngine,
		sanitizeConfidence(rec.OCRConfidence),
	).Scan(&rec.ID, &rec.CreatedAt)

	if err != nil {
		return "", fmt.Errorf("failed to store extraction: %w", err)
	}

	return rec.ID, nil
}

// GetLatestExtraction returns the most recent extraction stored for a job
func (p *PostgresClient) GetLatestExtraction(ctx context.Context, jobID string) (*ExtractionRecord, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, job_id, profile, content_hash, status, fields,
			error_kind, message, ocr_lines, ocr_engine, ocr_confidence,
			created_at
		FROM admissions.extraction_results
		WHERE job_id = $1::uuid
		ORDER BY created_at DESC
		LIMIT 1
	`

	var (
		rec                        ExtractionRecord
		fieldsJSON                 []byte
		errorKind, message, engine sql.NullString
		lines                      pq.StringArray
		confidence                 sql.NullFloat64
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&rec.ID, &rec.JobID, &rec.Profile, &rec.ContentHash, &rec.Status, &fieldsJSON,
		&errorKind, &message, &lines, &engine, &confidence,
		&rec.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("extraction for job %s: %w", jobID, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
		}
	}
	rec.ErrorKind = errorKind.String
	rec.Message = message.String
	rec.OCREngine = engine.String
	rec.OCRConfidence = confidence.Float64
	rec.Lines = []string(lines)

	return &rec, nil
}

// GetJobByID retrieves a job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, user_id, filename, mime_type, file_size, profile,
			status, ocr_confidence, processing_time_ms,
			error_code, error_message, ocr_engine, metadata,
			created_at, updated_at
		FROM admissions.extraction_jobs
		WHERE id = $1::uuid
	`

	var (
		id, userID, filename      string
		mimeType, profile, status sql.NullString
		fileSize                  sql.NullInt64
		confidence                sql.NullFloat64
		processingTimeMs          sql.NullInt64
		errorCode, errorMessage   sql.NullString
		ocrEngine                 sql.NullString
		metadataJSON              []byte
		createdAt, updatedAt      time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &userID, &filename, &mimeType, &fileSize, &profile,
		&status, &confidence, &processingTimeMs,
		&errorCode, &errorMessage, &ocrEngine, &metadataJSON,
		&createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":        id,
		"userId":    userID,
		"filename":  filename,
		"status":    status.String,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
		"metadata":  metadata,
	}

	if mimeType.Valid {
		result["mimeType"] = mimeType.String
	}
	if profile.Valid {
		result["profile"] = profile.String
	}
	if fileSize.Valid {
		result["fileSize"] = fileSize.Int64
	}
	if confidence.Valid {
		result["ocrConfidence"] = confidence.Float64
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}
	if ocrEngine.Valid {
		result["ocrEngine"] = ocrEngine.String
	}

	return result, nil
}

// EnsureSchema creates the worker's tables if they do not exist yet
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
