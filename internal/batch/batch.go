package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"strand/internal/services"
)

// DefaultReferenceKey is the sentinel reference-map key used for every sample
// without an explicit override.
const DefaultReferenceKey = "default"

// Ops maps processing operations to the samples (or, for aggr, the named
// groups of samples) they apply to.
type Ops struct {
	VDJ              []string            `yaml:"vdj"`
	Count            []string            `yaml:"count"`
	FeatureBarcoding []string            `yaml:"feature-barcoding"`
	Aggr             map[string][]string `yaml:"aggr"`
}

// Batch is the root aggregate for one pipeline execution. It exclusively
// owns the Run and Sample collections.
type Batch struct {
	Path             string
	Runs             []*Run
	Samples          []*Sample
	GexReference     map[string]string
	VDJReference     map[string]string
	FeatureReference map[string]string
	Ops              Ops
	UIPort           int
	Cellranger       string
}

type document struct {
	Runs             yaml.Node                    `yaml:"runs"`
	Samples          map[string]map[string]string `yaml:"samples"`
	GexReference     map[string]string            `yaml:"gex_reference"`
	VDJReference     map[string]string            `yaml:"vdj_reference"`
	FeatureReference map[string]string            `yaml:"feature_reference"`
	Ops              Ops                          `yaml:"ops"`
	UIPort           int                          `yaml:"uiport"`
	Cellranger       string                       `yaml:"cellranger"`
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: batch document: %s", services.ErrConfiguration, fmt.Sprintf(format, args...))
}

// Load parses and validates a batch document. Runs keep their declaration
// order; samples are sorted by name.
func Load(path string) (*Batch, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolutize batch path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read batch document: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, configError("parse: %v", err)
	}

	// UIPort and Cellranger stay zero-valued when the document omits them;
	// the tool settings supply the fallback at wiring time.
	b := &Batch{
		Path:             abs,
		GexReference:     doc.GexReference,
		VDJReference:     doc.VDJReference,
		FeatureReference: doc.FeatureReference,
		Ops:              doc.Ops,
		UIPort:           doc.UIPort,
		Cellranger:       doc.Cellranger,
	}

	if err := b.parseRuns(&doc.Runs); err != nil {
		return nil, err
	}
	if err := b.parseSamples(doc.Samples); err != nil {
		return nil, err
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// parseRuns walks the runs mapping node directly so declaration order
// survives; a plain map would shuffle it.
func (b *Batch) parseRuns(node *yaml.Node) error {
	if node.Kind == 0 || node.IsZero() {
		return configError("missing required section %q", "runs")
	}
	if node.Kind != yaml.MappingNode {
		return configError("%q must be a mapping of run name to run settings", "runs")
	}
	if len(node.Content) == 0 {
		return configError("section %q is empty", "runs")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var rd runDocument
		if err := node.Content[i+1].Decode(&rd); err != nil {
			return configError("run %q: %v", name, err)
		}
		run, err := newRun(name, rd)
		if err != nil {
			return configError("%v", err)
		}
		b.Runs = append(b.Runs, run)
	}
	return nil
}

func (b *Batch) parseSamples(samples map[string]map[string]string) error {
	if len(samples) == 0 {
		return configError("missing required section %q", "samples")
	}
	for name, libraries := range samples {
		if len(libraries) == 0 {
			return configError("sample %q declares no libraries", name)
		}
		sample, err := newSample(name, libraries, b.GexReference, b.VDJReference, b.FeatureReference)
		if err != nil {
			return configError("%v", err)
		}
		b.Samples = append(b.Samples, sample)
	}
	sortSamples(b.Samples)
	return nil
}

func (b *Batch) validate() error {
	for _, pair := range []struct {
		name string
		refs map[string]string
	}{
		{"gex_reference", b.GexReference},
		{"vdj_reference", b.VDJReference},
		{"feature_reference", b.FeatureReference},
	} {
		if len(pair.refs) > 0 {
			if _, ok := pair.refs[DefaultReferenceKey]; !ok {
				return configError("%s must contain a %q entry", pair.name, DefaultReferenceKey)
			}
		}
	}

	seen := make(map[string]struct{}, len(b.Runs))
	for _, run := range b.Runs {
		if _, dup := seen[run.Name]; dup {
			return configError("duplicate run name %q", run.Name)
		}
		seen[run.Name] = struct{}{}
	}

	for group, members := range b.Ops.Aggr {
		for _, member := range members {
			if b.Sample(member) == nil {
				return configError("aggr group %q references unknown sample %q", group, member)
			}
		}
	}
	for op, names := range map[string][]string{
		"vdj":               b.Ops.VDJ,
		"count":             b.Ops.Count,
		"feature-barcoding": b.Ops.FeatureBarcoding,
	} {
		for _, name := range names {
			if b.Sample(name) == nil {
				return configError("ops.%s references unknown sample %q", op, name)
			}
		}
	}
	return nil
}

// Sample returns the sample with the given name, or nil.
func (b *Batch) Sample(name string) *Sample {
	for _, sample := range b.Samples {
		if sample.Name == name {
			return sample
		}
	}
	return nil
}

// Run returns the run with the given name, or nil.
func (b *Batch) Run(name string) *Run {
	for _, run := range b.Runs {
		if run.Name == name {
			return run
		}
	}
	return nil
}
