package batch

import (
	"fmt"
	"path/filepath"

	"strand/internal/samplesheet"
)

// Run is one sequencing-run data source. Exactly one of URL/Path identifies
// the origin and exactly one of Samplesheet/SimpleCSV describes the
// demultiplexing input.
type Run struct {
	Name          string
	URL           string
	Path          string
	IsCompressed  bool
	Samplesheet   string
	SimpleCSV     string
	CopyToProject bool

	// Libraries lists the library names this run's demultiplexing input
	// declares; parsed once at construction.
	Libraries []string

	// FastqPath is the demultiplexed output location, set after the
	// demultiplexing stage completes.
	FastqPath string
}

type runDocument struct {
	URL           string `yaml:"url"`
	Path          string `yaml:"path"`
	IsCompressed  *bool  `yaml:"is_compressed"`
	Samplesheet   string `yaml:"samplesheet"`
	SimpleCSV     string `yaml:"simple_csv"`
	CopyToProject bool   `yaml:"copy_to_project"`
}

func newRun(name string, doc runDocument) (*Run, error) {
	run := &Run{
		Name:          name,
		URL:           doc.URL,
		CopyToProject: doc.CopyToProject,
		// Matches the historical default: remote archives are assumed
		// compressed unless the document says otherwise.
		IsCompressed: true,
	}
	if doc.IsCompressed != nil {
		run.IsCompressed = *doc.IsCompressed
	}

	if doc.Path != "" {
		abs, err := filepath.Abs(doc.Path)
		if err != nil {
			return nil, fmt.Errorf("run %q: path: %w", name, err)
		}
		run.Path = abs
	}
	if (run.URL == "") == (run.Path == "") {
		return nil, fmt.Errorf("run %q: exactly one of url or path must be set", name)
	}

	if (doc.Samplesheet == "") == (doc.SimpleCSV == "") {
		return nil, fmt.Errorf("run %q: exactly one of samplesheet or simple_csv must be set", name)
	}
	var err error
	if doc.Samplesheet != "" {
		if run.Samplesheet, err = filepath.Abs(doc.Samplesheet); err != nil {
			return nil, fmt.Errorf("run %q: samplesheet: %w", name, err)
		}
		if run.Libraries, err = samplesheet.ParseSamplesheet(run.Samplesheet); err != nil {
			return nil, fmt.Errorf("run %q: %w", name, err)
		}
	} else {
		if run.SimpleCSV, err = filepath.Abs(doc.SimpleCSV); err != nil {
			return nil, fmt.Errorf("run %q: simple_csv: %w", name, err)
		}
		if run.Libraries, err = samplesheet.ParseSimpleCSV(run.SimpleCSV); err != nil {
			return nil, fmt.Errorf("run %q: %w", name, err)
		}
	}
	return run, nil
}

// DeclaresLibrary reports whether the run's demultiplexing input names the
// given library.
func (r *Run) DeclaresLibrary(name string) bool {
	for _, lib := range r.Libraries {
		if lib == name {
			return true
		}
	}
	return false
}
