package cellranger_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"strand/internal/services"
	"strand/internal/services/cellranger"
	"strand/internal/services/execx"
	"strand/internal/testsupport"
)

type staticEcho struct {
	ip  string
	err error
}

func (e staticEcho) ExternalIP(context.Context) (string, error) { return e.ip, e.err }

func newClient(t *testing.T, runner execx.Runner, opts ...cellranger.Option) *cellranger.Client {
	t.Helper()
	base := []cellranger.Option{
		cellranger.WithRunner(runner),
		cellranger.WithMarkerTiming(0, time.Millisecond),
		cellranger.WithIPEcho(staticEcho{err: errors.New("offline")}),
	}
	client, err := cellranger.New("cellranger", append(base, opts...)...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

// dropMarker writes the _uiport file the way a live cellranger process does.
func dropMarker(t *testing.T, dir, name, content string) func(execx.Invocation) {
	t.Helper()
	return func(execx.Invocation) {
		testsupport.WriteFile(t, filepath.Join(dir, name), "_uiport", content)
	}
}

func TestMkfastqBuildsInvocationAndFastqPath(t *testing.T) {
	demuxDir := t.TempDir()
	runner := &testsupport.FakeRunner{OnLaunch: dropMarker(t, demuxDir, "run1", "node01:3600")}
	client := newClient(t, runner, cellranger.WithUIPort(8080))

	fastqPath, err := client.Mkfastq(context.Background(), cellranger.MkfastqRequest{
		RunName:   "run1",
		RunPath:   "/staging/run1",
		SimpleCSV: "/inputs/simple.csv",
		DemuxDir:  demuxDir,
		LogDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Mkfastq returned error: %v", err)
	}
	if fastqPath != filepath.Join(demuxDir, "run1", "outs", "fastq_path") {
		t.Fatalf("unexpected fastq path: %q", fastqPath)
	}

	calls := runner.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one invocation, got %v", calls)
	}
	want := "cellranger mkfastq --id=run1 --run=/staging/run1 --csv=/inputs/simple.csv --uiport=8080"
	if calls[0] != want {
		t.Fatalf("unexpected command: %q want %q", calls[0], want)
	}
	if runner.Invocations[0].Dir != demuxDir {
		t.Fatalf("unexpected working dir: %q", runner.Invocations[0].Dir)
	}
}

func TestMkfastqPrefersSamplesheet(t *testing.T) {
	demuxDir := t.TempDir()
	runner := &testsupport.FakeRunner{OnLaunch: dropMarker(t, demuxDir, "run1", "node01:3600")}
	client := newClient(t, runner)

	if _, err := client.Mkfastq(context.Background(), cellranger.MkfastqRequest{
		RunName:     "run1",
		RunPath:     "/staging/run1",
		Samplesheet: "/inputs/samplesheet.csv",
		SimpleCSV:   "/inputs/simple.csv",
		DemuxDir:    demuxDir,
		LogDir:      t.TempDir(),
	}); err != nil {
		t.Fatalf("Mkfastq returned error: %v", err)
	}
	call := runner.Calls()[0]
	if !strings.Contains(call, "--samplesheet=/inputs/samplesheet.csv") || strings.Contains(call, "--csv=") {
		t.Fatalf("expected samplesheet flag only, got %q", call)
	}
}

func TestMkfastqRequiresDemuxInput(t *testing.T) {
	runner := &testsupport.FakeRunner{}
	client := newClient(t, runner)

	_, err := client.Mkfastq(context.Background(), cellranger.MkfastqRequest{RunName: "run1", RunPath: "/staging/run1"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(runner.Invocations) != 0 {
		t.Fatalf("expected no invocation, got %v", runner.Calls())
	}
}

func TestMkfastqUsesConfiguredFastqSubdir(t *testing.T) {
	demuxDir := t.TempDir()
	runner := &testsupport.FakeRunner{OnLaunch: dropMarker(t, demuxDir, "run1", "node01:3600")}
	client := newClient(t, runner, cellranger.WithFastqSubdir("outs/reads"))

	fastqPath, err := client.Mkfastq(context.Background(), cellranger.MkfastqRequest{
		RunName:   "run1",
		RunPath:   "/staging/run1",
		SimpleCSV: "/inputs/simple.csv",
		DemuxDir:  demuxDir,
		LogDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Mkfastq returned error: %v", err)
	}
	if fastqPath != filepath.Join(demuxDir, "run1", "outs", "reads") {
		t.Fatalf("unexpected fastq path: %q", fastqPath)
	}
}

func TestMissingMarkerIsNotFatalOnCleanExit(t *testing.T) {
	demuxDir := t.TempDir()
	runner := &testsupport.FakeRunner{}
	client := newClient(t, runner)

	if _, err := client.Mkfastq(context.Background(), cellranger.MkfastqRequest{
		RunName:   "run1",
		RunPath:   "/staging/run1",
		SimpleCSV: "/inputs/simple.csv",
		DemuxDir:  demuxDir,
		LogDir:    t.TempDir(),
	}); err != nil {
		t.Fatalf("expected clean exit despite missing marker, got %v", err)
	}
}

func TestMissingMarkerAttachesToAbnormalExit(t *testing.T) {
	demuxDir := t.TempDir()
	exitErr := services.Wrap(services.ErrExternalTool, "mkfastq", "run1", "cellranger exited abnormally", errors.New("exit status 1"))
	runner := &testsupport.FakeRunner{Err: exitErr}
	client := newClient(t, runner)

	_, err := client.Mkfastq(context.Background(), cellranger.MkfastqRequest{
		RunName:   "run1",
		RunPath:   "/staging/run1",
		SimpleCSV: "/inputs/simple.csv",
		DemuxDir:  demuxDir,
		LogDir:    t.TempDir(),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "ui marker") {
		t.Fatalf("expected marker symptom attached, got %v", err)
	}
}

func TestEmptyMarkerIsAnError(t *testing.T) {
	demuxDir := t.TempDir()
	exitErr := errors.New("exit status 1")
	runner := &testsupport.FakeRunner{
		Err:      exitErr,
		OnLaunch: dropMarker(t, demuxDir, "run1", "  "),
	}
	client := newClient(t, runner)

	_, err := client.Mkfastq(context.Background(), cellranger.MkfastqRequest{
		RunName:   "run1",
		RunPath:   "/staging/run1",
		SimpleCSV: "/inputs/simple.csv",
		DemuxDir:  demuxDir,
		LogDir:    t.TempDir(),
	})
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty-marker detail, got %v", err)
	}
}

func TestMultiInvocation(t *testing.T) {
	outputDir := t.TempDir()
	runner := &testsupport.FakeRunner{OnLaunch: dropMarker(t, outputDir, "s1", "node01:3600")}
	client := newClient(t, runner)

	outputPath, err := client.Multi(context.Background(), cellranger.MultiRequest{
		SampleName: "s1",
		ConfigCSV:  "/manifests/s1_config.csv",
		OutputDir:  outputDir,
		LogDir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Multi returned error: %v", err)
	}
	if outputPath != filepath.Join(outputDir, "s1") {
		t.Fatalf("unexpected output path: %q", outputPath)
	}
	want := "cellranger multi --id s1 --csv /manifests/s1_config.csv"
	if got := runner.Calls()[0]; got != want {
		t.Fatalf("unexpected command: %q want %q", got, want)
	}
}

func TestVDJInvocationRepeatsFastqFlags(t *testing.T) {
	outputDir := t.TempDir()
	runner := &testsupport.FakeRunner{OnLaunch: dropMarker(t, outputDir, "s1", "node01:3600")}
	client := newClient(t, runner)

	if _, err := client.VDJ(context.Background(), cellranger.VDJRequest{
		SampleName: "s1",
		Reference:  "/refs/vdj",
		FastqPaths: []string{"/demux/run1", "/demux/run2"},
		OutputDir:  outputDir,
		LogDir:     t.TempDir(),
	}); err != nil {
		t.Fatalf("VDJ returned error: %v", err)
	}
	want := "cellranger vdj --id s1 --reference /refs/vdj --sample s1 --fastqs /demux/run1 --fastqs /demux/run2"
	if got := runner.Calls()[0]; got != want {
		t.Fatalf("unexpected command: %q want %q", got, want)
	}
}

func TestCountInvocationIncludesFeatureRefWhenSet(t *testing.T) {
	outputDir := t.TempDir()
	runner := &testsupport.FakeRunner{OnLaunch: dropMarker(t, outputDir, "s1", "node01:3600")}
	client := newClient(t, runner)

	if _, err := client.Count(context.Background(), cellranger.CountRequest{
		SampleName:    "s1",
		Transcriptome: "/refs/gex",
		LibrariesCSV:  "/manifests/s1_feature-library.csv",
		FeatureRef:    "/refs/features.csv",
		OutputDir:     outputDir,
		LogDir:        t.TempDir(),
	}); err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	want := "cellranger count --id s1 --transcriptome /refs/gex --libraries /manifests/s1_feature-library.csv --feature-ref /refs/features.csv"
	if got := runner.Calls()[0]; got != want {
		t.Fatalf("unexpected command: %q want %q", got, want)
	}
}

func TestAggrInvocationDefaultsNormalization(t *testing.T) {
	outputDir := t.TempDir()
	runner := &testsupport.FakeRunner{}
	client := newClient(t, runner)

	outputPath, err := client.Aggr(context.Background(), cellranger.AggrRequest{
		Group:     "cohort",
		CSV:       "/manifests/cohort_aggr.csv",
		OutputDir: outputDir,
		LogDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Aggr returned error: %v", err)
	}
	if outputPath != filepath.Join(outputDir, "cohort") {
		t.Fatalf("unexpected output path: %q", outputPath)
	}
	want := "cellranger aggr --id cohort --csv /manifests/cohort_aggr.csv --normalize mapped"
	if got := runner.Calls()[0]; got != want {
		t.Fatalf("unexpected command: %q want %q", got, want)
	}

	// aggr never polls the UI marker, so nothing ever waits on one.
	if _, err := os.Stat(filepath.Join(outputDir, "cohort", "_uiport")); err == nil {
		t.Fatal("unexpected marker file")
	}
}
