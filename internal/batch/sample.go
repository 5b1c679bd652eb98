package batch

import (
	"fmt"
	"sort"
)

// Sample is the unit of cellranger multi invocation. References are resolved
// at construction time with the reference maps' "default" fallback, so a
// Sample never needs access to the Batch afterward.
type Sample struct {
	Name             string
	GexReference     string
	VDJReference     string
	FeatureReference string
	Libraries        []*Library

	// CountPath is set after the per-sample invocation completes.
	CountPath string
	// AggrPath is set after the sample's group aggregates.
	AggrPath string
}

func newSample(name string, libraries map[string]string, gex, vdj, feature map[string]string) (*Sample, error) {
	sample := &Sample{
		Name:             name,
		GexReference:     resolveReference(gex, name),
		VDJReference:     resolveReference(vdj, name),
		FeatureReference: resolveReference(feature, name),
	}

	// Deterministic library order: sort the type tags.
	tags := make([]string, 0, len(libraries))
	for tag := range libraries {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		libType, err := ParseLibraryType(tag)
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", name, err)
		}
		sample.Libraries = append(sample.Libraries, &Library{Name: libraries[tag], Type: libType})
	}
	return sample, nil
}

// resolveReference returns the per-sample override when present, otherwise
// the map's default entry, otherwise empty (reference class not in use).
func resolveReference(refs map[string]string, name string) string {
	if len(refs) == 0 {
		return ""
	}
	if ref, ok := refs[name]; ok {
		return ref
	}
	return refs[DefaultReferenceKey]
}

// Library returns the sample's library with the given name, or nil.
func (s *Sample) Library(name string) *Library {
	for _, lib := range s.Libraries {
		if lib.Name == name {
			return lib
		}
	}
	return nil
}

// FastqReady reports whether every library has at least one bound fastq path.
func (s *Sample) FastqReady() bool {
	if len(s.Libraries) == 0 {
		return false
	}
	for _, lib := range s.Libraries {
		if len(lib.FastqPaths) == 0 {
			return false
		}
	}
	return true
}

// sortSamples orders samples lexicographically by name. Sample identity is
// the name, so this is a total order.
func sortSamples(samples []*Sample) {
	sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
}
