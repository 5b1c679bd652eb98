package config_test

import (
	"path/filepath"
	"strings"
	"testing"

	"strand/internal/config"
	"strand/internal/testsupport"
)

func TestLoadDefaultsWhenFileAbsent(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected no settings file in temp HOME")
	}
	if cfg.Cellranger.Binary != "cellranger" {
		t.Fatalf("unexpected binary: %q", cfg.Cellranger.Binary)
	}
	if cfg.Cellranger.UIPort != 72647 {
		t.Fatalf("unexpected uiport: %d", cfg.Cellranger.UIPort)
	}
	if cfg.Cellranger.FastqSubdir != "outs/fastq_path" {
		t.Fatalf("unexpected fastq subdir: %q", cfg.Cellranger.FastqSubdir)
	}
	if cfg.Cellranger.Normalization != "mapped" {
		t.Fatalf("unexpected normalization: %q", cfg.Cellranger.Normalization)
	}
	if cfg.Pipeline.ContinueOnError {
		t.Fatal("expected continue_on_error disabled by default")
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadCustomPath(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteFile(t, dir, "strand.toml", strings.Join([]string{
		"[cellranger]",
		`binary = "cellranger-arc"`,
		"uiport = 9000",
		`fastq_subdir = "/outs/fastq_path/"`,
		`normalization = "none"`,
		"",
		"[pipeline]",
		"continue_on_error = true",
		"",
		"[logging]",
		`format = "JSON"`,
		`level = "Debug"`,
	}, "\n"))

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q %v", resolved, exists)
	}
	if cfg.Cellranger.Binary != "cellranger-arc" {
		t.Fatalf("unexpected binary: %q", cfg.Cellranger.Binary)
	}
	if cfg.Cellranger.UIPort != 9000 {
		t.Fatalf("unexpected uiport: %d", cfg.Cellranger.UIPort)
	}
	// Separators are stripped so path joins stay clean.
	if cfg.Cellranger.FastqSubdir != "outs/fastq_path" {
		t.Fatalf("unexpected fastq subdir: %q", cfg.Cellranger.FastqSubdir)
	}
	if cfg.Cellranger.Normalization != "none" {
		t.Fatalf("unexpected normalization: %q", cfg.Cellranger.Normalization)
	}
	if !cfg.Pipeline.ContinueOnError {
		t.Fatal("expected continue_on_error enabled")
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased logging settings, got %+v", cfg.Logging)
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STRAND_CELLRANGER", "/opt/cellranger/cellranger")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Cellranger.Binary != "/opt/cellranger/cellranger" {
		t.Fatalf("expected env override, got %q", cfg.Cellranger.Binary)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad normalization", "[cellranger]\nnormalization = \"raw\"\n"},
		{"bad uiport", "[cellranger]\nuiport = -1\n"},
		{"bad log format", "[logging]\nformat = \"xml\"\n"},
		{"timeout below delay", "[cellranger]\nui_marker_delay_seconds = 90\nui_marker_timeout_seconds = 30\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := testsupport.WriteFile(t, t.TempDir(), "strand.toml", tc.content)
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample returned error: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when file already exists")
	}

	// The sample must itself load cleanly.
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample settings failed to load: %v", err)
	}
}
