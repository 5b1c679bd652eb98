package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"strand/internal/batch"
	"strand/internal/manifest"
	"strand/internal/services"
	"strand/internal/services/cellranger"
)

// Target is the unit a processing operation consumes: one sample, or one
// named group of samples for aggregation.
type Target struct {
	Sample  *batch.Sample
	Group   string
	Members []*batch.Sample
}

func (t Target) name() string {
	if t.Group != "" {
		return t.Group
	}
	return t.Sample.Name
}

// Operation is one cellranger processing mode. Each variant maps a target to
// an output path through the same contract, so adding a mode means adding a
// variant, not duplicating orchestration.
type Operation interface {
	Name() string
	Invoke(ctx context.Context, env opEnv, target Target) (string, error)
}

// opEnv carries the collaborators each operation needs.
type opEnv struct {
	client    *cellranger.Client
	outputDir string
	logDir    string
	normalize string
}

// operations is the closed variant set.
var operations = map[string]Operation{
	"multi":             multiOp{},
	"vdj":               vdjOp{},
	"count":             countOp{},
	"feature-barcoding": featureBarcodingOp{},
	"aggregate":         aggregateOp{},
}

func operationFor(name string) (Operation, error) {
	op, ok := operations[name]
	if !ok {
		return nil, fmt.Errorf("unknown processing operation %q", name)
	}
	return op, nil
}

type multiOp struct{}

func (multiOp) Name() string { return "multi" }

func (multiOp) Invoke(ctx context.Context, env opEnv, target Target) (string, error) {
	sample := target.Sample
	configCSV := filepath.Join(env.outputDir, fmt.Sprintf("%s_config.csv", sample.Name))
	if err := manifest.WriteMulti(sample, configCSV); err != nil {
		return "", services.Wrap(services.ErrValidation, "multi", sample.Name, "write multi config", err)
	}
	return env.client.Multi(ctx, cellranger.MultiRequest{
		SampleName: sample.Name,
		ConfigCSV:  configCSV,
		OutputDir:  env.outputDir,
		LogDir:     env.logDir,
	})
}

type vdjOp struct{}

func (vdjOp) Name() string { return "vdj" }

func (vdjOp) Invoke(ctx context.Context, env opEnv, target Target) (string, error) {
	sample := target.Sample
	if sample.VDJReference == "" {
		return "", services.Wrap(services.ErrConfiguration, "vdj", sample.Name, "sample has no vdj reference", nil)
	}
	return env.client.VDJ(ctx, cellranger.VDJRequest{
		SampleName: sample.Name,
		Reference:  sample.VDJReference,
		FastqPaths: vdjFastqPaths(sample),
		OutputDir:  env.outputDir,
		LogDir:     env.logDir,
	})
}

// vdjFastqPaths prefers the fastqs of VDJ-typed libraries and falls back to
// every bound path when the sample declares no VDJ library explicitly.
func vdjFastqPaths(sample *batch.Sample) []string {
	var vdj, all []string
	for _, library := range sample.Libraries {
		all = append(all, library.FastqPaths...)
		if strings.HasPrefix(string(library.Type), "VDJ") {
			vdj = append(vdj, library.FastqPaths...)
		}
	}
	if len(vdj) > 0 {
		return vdj
	}
	return all
}

type countOp struct{}

func (countOp) Name() string { return "count" }

func (countOp) Invoke(ctx context.Context, env opEnv, target Target) (string, error) {
	sample := target.Sample
	if sample.GexReference == "" {
		return "", services.Wrap(services.ErrConfiguration, "count", sample.Name, "sample has no gene-expression reference", nil)
	}
	librariesCSV := filepath.Join(env.outputDir, fmt.Sprintf("%s_feature-library.csv", sample.Name))
	if err := manifest.WriteFeatureLibraries(sample, librariesCSV); err != nil {
		return "", services.Wrap(services.ErrValidation, "count", sample.Name, "write libraries sheet", err)
	}
	return env.client.Count(ctx, cellranger.CountRequest{
		SampleName:    sample.Name,
		Transcriptome: sample.GexReference,
		LibrariesCSV:  librariesCSV,
		FeatureRef:    sample.FeatureReference,
		OutputDir:     env.outputDir,
		LogDir:        env.logDir,
	})
}

type featureBarcodingOp struct{}

func (featureBarcodingOp) Name() string { return "feature-barcoding" }

func (featureBarcodingOp) Invoke(ctx context.Context, env opEnv, target Target) (string, error) {
	sample := target.Sample
	if sample.FeatureReference == "" {
		return "", services.Wrap(services.ErrConfiguration, "feature-barcoding", sample.Name, "sample has no feature reference", nil)
	}
	if sample.GexReference == "" {
		return "", services.Wrap(services.ErrConfiguration, "feature-barcoding", sample.Name, "sample has no gene-expression reference", nil)
	}
	librariesCSV := filepath.Join(env.outputDir, fmt.Sprintf("%s_feature-library.csv", sample.Name))
	if err := manifest.WriteFeatureLibraries(sample, librariesCSV); err != nil {
		return "", services.Wrap(services.ErrValidation, "feature-barcoding", sample.Name, "write libraries sheet", err)
	}
	return env.client.Count(ctx, cellranger.CountRequest{
		SampleName:    sample.Name,
		Transcriptome: sample.GexReference,
		LibrariesCSV:  librariesCSV,
		FeatureRef:    sample.FeatureReference,
		OutputDir:     env.outputDir,
		LogDir:        env.logDir,
	})
}

type aggregateOp struct{}

func (aggregateOp) Name() string { return "aggregate" }

func (aggregateOp) Invoke(ctx context.Context, env opEnv, target Target) (string, error) {
	aggrCSV := filepath.Join(env.outputDir, fmt.Sprintf("%s_aggr.csv", target.Group))
	if err := manifest.WriteAggr(target.Members, aggrCSV); err != nil {
		return "", services.Wrap(services.ErrValidation, "aggr", target.Group, "write aggregation sheet", err)
	}
	return env.client.Aggr(ctx, cellranger.AggrRequest{
		Group:     target.Group,
		CSV:       aggrCSV,
		Normalize: env.normalize,
		OutputDir: env.outputDir,
		LogDir:    env.logDir,
	})
}
