package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"strand/internal/logging"
	"strand/internal/services"
)

func TestContextFields(t *testing.T) {
	ctx := services.WithRun(context.Background(), "run1")
	ctx = services.WithSample(ctx, "s1")
	ctx = services.WithStage(ctx, "mkfastq")

	fields := logging.ContextFields(ctx)
	if len(fields) != 3 {
		t.Fatalf("unexpected field count: %d", len(fields))
	}
	got := map[string]string{}
	for _, attr := range fields {
		got[attr.Key] = attr.Value.String()
	}
	if got[logging.FieldRun] != "run1" || got[logging.FieldSample] != "s1" || got[logging.FieldStage] != "mkfastq" {
		t.Fatalf("unexpected fields: %v", got)
	}
}

func TestContextFieldsEmptyContext(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
}

func TestNewJSONLoggerCarriesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "strand.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Outputs: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRun(context.Background(), "run1")
	logging.WithContext(ctx, logger).Info("stage started")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("parse log line %q: %v", data, err)
	}
	if entry["msg"] != "stage started" {
		t.Fatalf("unexpected message: %v", entry["msg"])
	}
	if entry[logging.FieldRun] != "run1" {
		t.Fatalf("expected run field, got %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewPipelineLoggerCreatesLogFile(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")
	logger, err := logging.NewPipelineLogger(logDir, "debug", "json")
	if err != nil {
		t.Fatalf("NewPipelineLogger returned error: %v", err)
	}
	logger.Debug("pipeline starting")

	if _, err := os.Stat(filepath.Join(logDir, "strand.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestWithContextNilLogger(t *testing.T) {
	logger := logging.WithContext(context.Background(), nil)
	if logger == nil {
		t.Fatal("expected fallback logger")
	}
	logger.Info("ignored")
}
