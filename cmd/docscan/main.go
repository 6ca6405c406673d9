/**
 * docscan - extract admissions fields from a scanned document
 *
 *   docscan --profile transcript --file tor.png
 *   docscan --profile voters_id --file id.jpg --ocr-text "$(cat id.txt)"
 *   docscan --profile exam_result --file slip.png --enqueue
 *   docscan --status 6f1c... --database-url postgres://...
 *
 * Flags may also be set through DOCSCAN_* environment variables
 * (DOCSCAN_LANG, DOCSCAN_REDIS_URL, ...).
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/adverant/nexus/docscan-worker/internal/config"
	"github.com/adverant/nexus/docscan-worker/internal/document"
	"github.com/adverant/nexus/docscan-worker/internal/ocr"
	"github.com/adverant/nexus/docscan-worker/internal/ocr/tesseract"
	"github.com/adverant/nexus/docscan-worker/internal/processor"
	"github.com/adverant/nexus/docscan-worker/internal/queue"
	"github.com/adverant/nexus/docscan-worker/internal/storage"
)

const (
	exitOK         = 0
	exitExtraction = 1
	exitUsage      = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("docscan", pflag.ContinueOnError)
	fs.StringP("profile", "p", "", "document profile: transcript, exam_result, voters_id (or an upload field name)")
	fs.StringP("file", "f", "", "path to the scanned image")
	fs.String("tunables", "", "extraction tunables file (yaml, json or toml)")
	fs.String("lang", "eng", "tesseract language")
	fs.String("tessdata", "", "tessdata directory")
	fs.String("ocr-text", "", "skip tesseract and treat this text as the OCR output")
	fs.Bool("lines", false, "print the recognized lines to stderr")
	fs.Bool("enqueue", false, "enqueue the file for the worker instead of extracting locally")
	fs.String("redis-url", "redis://localhost:6379", "Redis URL used with --enqueue")
	fs.String("queue", "docscan:jobs", "queue name used with --enqueue")
	fs.String("backend", config.QueueBackendRedis, "queue backend used with --enqueue: redis or asynq")
	fs.String("job-id", "", "job id used with --enqueue (default: random UUID)")
	fs.Duration("timeout", 2*time.Minute, "extraction timeout")
	fs.String("status", "", "print the stored job and its latest extraction instead of extracting")
	fs.String("database-url", "", "PostgreSQL URL used with --status")
	return fs
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := newFlags()
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	v := viper.New()
	v.SetEnvPrefix(config.TunablesEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		fmt.Fprintf(stderr, "docscan: %v\n", err)
		return exitUsage
	}

	if jobID := v.GetString("status"); jobID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), v.GetDuration("timeout"))
		defer cancel()
		return status(ctx, v.GetString("database-url"), jobID, stdout, stderr)
	}

	profile, err := document.Parse(v.GetString("profile"))
	if err != nil {
		fmt.Fprintf(stderr, "docscan: %v\n", err)
		return exitUsage
	}
	path := v.GetString("file")
	if path == "" {
		fmt.Fprintln(stderr, "docscan: --file is required")
		return exitUsage
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "docscan: %v\n", err)
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.GetDuration("timeout"))
	defer cancel()

	if v.GetBool("enqueue") {
		return enqueue(ctx, v, profile, path, data, stdout, stderr)
	}

	tunables, err := config.LoadTunables(v.GetString("tunables"))
	if err != nil {
		fmt.Fprintf(stderr, "docscan: %v\n", err)
		return exitUsage
	}

	var engine ocr.Engine
	if text := v.GetString("ocr-text"); fs.Changed("ocr-text") || text != "" {
		engine = ocr.NewStaticEngine(text, 100)
	} else {
		engine = tesseract.New(tesseract.Config{
			Language:       v.GetString("lang"),
			TessdataPrefix: v.GetString("tessdata"),
		})
	}

	outcome := processor.NewPipeline(engine, tunables).Run(ctx, data, profile)

	if v.GetBool("lines") && outcome.Document != nil {
		for _, line := range outcome.Document.Lines {
			fmt.Fprintln(stderr, line)
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome.Result); err != nil {
		fmt.Fprintf(stderr, "docscan: %v\n", err)
		return exitExtraction
	}

	if !outcome.Result.OK() {
		return exitExtraction
	}
	return exitOK
}

func enqueue(ctx context.Context, v *viper.Viper, profile document.Profile, path string, data []byte, stdout, stderr io.Writer) int {
	jobID := v.GetString("job-id")
	if jobID == "" {
		jobID = uuid.NewString()
	}

	payload := &queue.JobPayload{
		JobID:      jobID,
		UserID:     "cli",
		Profile:    profile.String(),
		Filename:   filepath.Base(path),
		FileSize:   int64(len(data)),
		FileBuffer: data,
	}

	var err error
	switch backend := v.GetString("backend"); backend {
	case config.QueueBackendAsynq:
		err = queue.EnqueueAsynq(ctx, v.GetString("redis-url"), v.GetString("queue"), payload)
	case config.QueueBackendRedis:
		var opt *redis.Options
		opt, err = redis.ParseURL(v.GetString("redis-url"))
		if err == nil {
			client := redis.NewClient(opt)
			defer client.Close()
			err = queue.EnqueueRedis(ctx, client, v.GetString("queue"), payload)
		}
	default:
		fmt.Fprintf(stderr, "docscan: unknown backend %q\n", backend)
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "docscan: %v\n", err)
		return exitExtraction
	}

	fmt.Fprintln(stdout, jobID)
	return exitOK
}

// jobStatus is what --status prints
type jobStatus struct {
	Job        map[string]interface{}    `json:"job"`
	Extraction *storage.ExtractionRecord `json:"extraction,omitempty"`
}

func status(ctx context.Context, databaseURL, jobID string, stdout, stderr io.Writer) int {
	if databaseURL == "" {
		fmt.Fprintln(stderr, "docscan: --database-url is required with --status")
		return exitUsage
	}

	sm, err := storage.NewStorageManager(databaseURL, nil, 0, "")
	if err != nil {
		fmt.Fprintf(stderr, "docscan: %v\n", err)
		return exitExtraction
	}
	defer sm.Close()

	job, err := sm.GetJobByID(ctx, jobID)
	if err != nil {
		fmt.Fprintf(stderr, "docscan: %v\n", err)
		return exitExtraction
	}
	out := jobStatus{Job: job}

	// A job still waiting in the queue has no extraction yet
	rec, err := sm.GetLatestExtraction(ctx, jobID)
	switch {
	case err == nil:
		out.Extraction = rec
	case !errors.Is(err, storage.ErrNotFound):
		fmt.Fprintf(stderr, "docscan: %v\n", err)
		return exitExtraction
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "docscan: %v\n", err)
		return exitExtraction
	}
	return exitOK
}
