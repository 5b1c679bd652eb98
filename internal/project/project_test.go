package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"strand/internal/project"
	"strand/internal/testsupport"
)

func TestPlanCreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "project")
	layout, err := project.Plan(root)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}

	for _, dir := range []string{layout.Root, layout.RunData, layout.Demux, layout.Counts, layout.Aggr, layout.Logs} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be a directory", dir)
		}
	}
	if layout.Demux != filepath.Join(layout.Root, "cellranger", "mkfastq") {
		t.Fatalf("unexpected demux dir: %q", layout.Demux)
	}
}

func TestPlanIsIdempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "project")
	first, err := project.Plan(root)
	if err != nil {
		t.Fatalf("first Plan returned error: %v", err)
	}
	marker := testsupport.WriteFile(t, first.RunData, "existing.txt", "keep me")

	second, err := project.Plan(root)
	if err != nil {
		t.Fatalf("second Plan returned error: %v", err)
	}
	if second.Root != first.Root {
		t.Fatalf("layout changed between invocations: %q vs %q", first.Root, second.Root)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("expected existing content untouched: %v", err)
	}
}

func TestStageLogDir(t *testing.T) {
	layout, err := project.Plan(filepath.Join(t.TempDir(), "project"))
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	dir, err := layout.StageLogDir("mkfastq")
	if err != nil {
		t.Fatalf("StageLogDir returned error: %v", err)
	}
	if dir != filepath.Join(layout.Logs, "mkfastq") {
		t.Fatalf("unexpected stage log dir: %q", dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected stage log dir to exist: %v", err)
	}
}

func TestCopyConfig(t *testing.T) {
	layout, err := project.Plan(filepath.Join(t.TempDir(), "project"))
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	source := testsupport.WriteFile(t, t.TempDir(), "batch.yaml", "runs: {}\n")
	if err := layout.CopyConfig(source); err != nil {
		t.Fatalf("CopyConfig returned error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(layout.Root, "config.yaml"))
	if err != nil {
		t.Fatalf("read copied config: %v", err)
	}
	if string(data) != "runs: {}\n" {
		t.Fatalf("unexpected copied content: %q", string(data))
	}
}

func TestLockRejectsSecondHolder(t *testing.T) {
	layout, err := project.Plan(filepath.Join(t.TempDir(), "project"))
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	unlock, err := layout.Lock()
	if err != nil {
		t.Fatalf("Lock returned error: %v", err)
	}
	defer unlock()

	if _, err := layout.Lock(); err == nil {
		t.Fatal("expected second lock attempt to fail")
	}

	unlock()
	relock, err := layout.Lock()
	if err != nil {
		t.Fatalf("expected relock after unlock: %v", err)
	}
	relock()
}
