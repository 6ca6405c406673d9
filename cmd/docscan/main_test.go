package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScan(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 20, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 20; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(200 - x*5)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestRun_ExtractsWithStaticText(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--profile", "school-record-upload",
		"--file", writeScan(t),
		"--ocr-text", "First Semester General Average for the Semester 1.50 " +
			"Second Semester General Average for the Semester 1.25",
	}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &env))
	assert.Equal(t, "success", env["status"])
	assert.Equal(t, "transcript", env["profile"])
	assert.Equal(t, map[string]interface{}{"gwa": "1.38"}, env["fields"])
}

func TestRun_ExtractionFailureExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--profile", "transcript",
		"--file", writeScan(t),
		"--ocr-text", "",
	}, &stdout, &stderr)

	assert.Equal(t, exitExtraction, code)
	assert.Contains(t, stdout.String(), `"errorKind": "INSUFFICIENT_DATA"`)
}

func TestRun_PrintsLines(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-p", "voters_id",
		"-f", writeScan(t),
		"--ocr-text", "COMMISSION ON ELECTIONS\nVIN: 1234-5678-9012",
		"--lines",
	}, &stdout, &stderr)

	require.Equal(t, exitOK, code)
	assert.Equal(t, "COMMISSION ON ELECTIONS\nVIN: 1234-5678-9012\n", stderr.String())
	assert.Contains(t, stdout.String(), `"vin": "1234-5678-9012"`)
	assert.Contains(t, stdout.String(), `"city": "City not found."`)
}

func TestRun_UsageErrors(t *testing.T) {
	t.Setenv("DOCSCAN_DATABASE_URL", "")
	scan := writeScan(t)
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--nope"}},
		{"missing profile", []string{"--file", scan}},
		{"unknown profile", []string{"--profile", "diploma", "--file", scan}},
		{"missing file flag", []string{"--profile", "transcript"}},
		{"unreadable file", []string{"--profile", "transcript", "--file", filepath.Join(t.TempDir(), "none.png")}},
		{"bad tunables", []string{"--profile", "transcript", "--file", scan, "--ocr-text", "x", "--tunables", filepath.Join(t.TempDir(), "none.yaml")}},
		{"bad backend", []string{"--profile", "transcript", "--file", scan, "--enqueue", "--backend", "kafka"}},
		{"status without database", []string{"--status", "6f1c2d3e-0000-4000-8000-000000000001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, exitUsage, run(tt.args, &stdout, &stderr))
			assert.Empty(t, stdout.String())
		})
	}
}
