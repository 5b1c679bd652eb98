// Package testsupport provides shared builders for package tests: temp-dir
// settings, batch documents, and a recording fake for the process runner.
package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"strand/internal/config"
	"strand/internal/services/execx"
)

// NewConfig produces settings with repository defaults and marker polling
// tuned down for tests.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Cellranger.UIMarkerDelaySeconds = 0
	cfg.Cellranger.UIMarkerTimeoutSeconds = 1
	return &cfg
}

// WriteFile writes content under dir and returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// WriteSimpleCSV writes a minimal mkfastq simple CSV declaring the given
// library names.
func WriteSimpleCSV(t testing.TB, dir string, libraries ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Lane,Sample,Index\n")
	for i, library := range libraries {
		fmt.Fprintf(&b, "1,%s,SI-GA-A%d\n", library, i+1)
	}
	return WriteFile(t, dir, "simple.csv", b.String())
}

// WriteSamplesheet writes a minimal Illumina samplesheet declaring the given
// library names in its [Data] section.
func WriteSamplesheet(t testing.TB, dir string, libraries ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("[Header]\nIEMFileVersion,4\n\n[Data]\n")
	b.WriteString("Sample_ID,Sample_Name,index\n")
	for i, library := range libraries {
		fmt.Fprintf(&b, "%s,%s,SI-GA-A%d\n", library, library, i+1)
	}
	return WriteFile(t, dir, "samplesheet.csv", b.String())
}

// FakeRunner records invocations and returns canned results. It satisfies
// execx.Runner so stage tests never start real processes.
type FakeRunner struct {
	mu          sync.Mutex
	Invocations []execx.Invocation
	// Err, when set, is returned from every Wait.
	Err error
	// Stdout seeds the result of every invocation.
	Stdout string
	// OnLaunch, when set, runs before each launch returns; tests use it to
	// drop marker files the way a real process would.
	OnLaunch func(inv execx.Invocation)
}

type fakeProcess struct {
	runner *FakeRunner
	inv    execx.Invocation
}

// Run launches and waits in one step.
func (f *FakeRunner) Run(ctx context.Context, inv execx.Invocation) (execx.Result, error) {
	process, err := f.Launch(ctx, inv)
	if err != nil {
		return execx.Result{}, err
	}
	return process.Wait()
}

// Launch records the invocation.
func (f *FakeRunner) Launch(_ context.Context, inv execx.Invocation) (execx.Process, error) {
	f.mu.Lock()
	f.Invocations = append(f.Invocations, inv)
	f.mu.Unlock()
	if f.OnLaunch != nil {
		f.OnLaunch(inv)
	}
	return &fakeProcess{runner: f, inv: inv}, nil
}

func (p *fakeProcess) Wait() (execx.Result, error) {
	return execx.Result{Stdout: []byte(p.runner.Stdout)}, p.runner.Err
}

// Calls returns the recorded command lines, one per invocation.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]string, 0, len(f.Invocations))
	for _, inv := range f.Invocations {
		calls = append(calls, strings.Join(append([]string{inv.Binary}, inv.Args...), " "))
	}
	return calls
}

var _ execx.Runner = (*FakeRunner)(nil)
