// Package manifest generates the CSV documents cellranger consumes: the
// per-sample multi config, the aggregation sheet, and the feature-library
// sheet used by count-style invocations.
//
// Builders are pure functions of entity state, so building twice from an
// unchanged sample yields byte-identical output.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"strand/internal/batch"
)

// MoleculeFileRelPath is where cellranger places the molecule-level result
// inside a sample's output directory; aggr rows point at it.
const MoleculeFileRelPath = "outs/molecule_info.h5"

// BuildMulti renders a sample's multi-config document: reference sections in
// fixed order, then one [libraries] row per (library, contributing run).
func BuildMulti(sample *batch.Sample) string {
	var b strings.Builder
	if sample.GexReference != "" {
		b.WriteString("[gene-expression]\n")
		fmt.Fprintf(&b, "reference,%s\n\n", sample.GexReference)
	}
	if sample.VDJReference != "" {
		b.WriteString("[vdj]\n")
		fmt.Fprintf(&b, "reference,%s\n\n", sample.VDJReference)
	}
	if sample.FeatureReference != "" {
		b.WriteString("[feature]\n")
		fmt.Fprintf(&b, "reference,%s\n\n", sample.FeatureReference)
	}
	b.WriteString("[libraries]\n")
	b.WriteString("fastq_id,fastqs,feature_types\n")
	for _, library := range sample.Libraries {
		for _, fastq := range library.FastqPaths {
			fmt.Fprintf(&b, "%s,%s,%s\n", library.Name, fastq, library.Type)
		}
	}
	return b.String()
}

// WriteMulti writes the sample's multi config to path, creating parent
// directories as needed.
func WriteMulti(sample *batch.Sample, path string) error {
	return write(path, BuildMulti(sample))
}

// BuildAggr renders the aggregation sheet: one row per sample pointing at
// its molecule file.
func BuildAggr(samples []*batch.Sample) string {
	lines := []string{"library_id,molecule_h5"}
	for _, sample := range samples {
		lines = append(lines, fmt.Sprintf("%s,%s", sample.Name, filepath.Join(sample.CountPath, MoleculeFileRelPath)))
	}
	return strings.Join(lines, "\n") + "\n"
}

// WriteAggr writes the group's aggregation sheet to path.
func WriteAggr(samples []*batch.Sample, path string) error {
	return write(path, BuildAggr(samples))
}

// BuildFeatureLibraries renders the libraries sheet count-style invocations
// take via --libraries.
func BuildFeatureLibraries(sample *batch.Sample) string {
	var b strings.Builder
	b.WriteString("fastqs,sample,library_type\n")
	for _, library := range sample.Libraries {
		for _, fastq := range library.FastqPaths {
			fmt.Fprintf(&b, "%s,%s,%s\n", fastq, library.Name, library.Type)
		}
	}
	return b.String()
}

// WriteFeatureLibraries writes the sample's libraries sheet to path.
func WriteFeatureLibraries(sample *batch.Sample, path string) error {
	return write(path, BuildFeatureLibraries(sample))
}

func write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
