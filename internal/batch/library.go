package batch

import (
	"fmt"
	"strings"
)

// LibraryType identifies the data channel a library carries. The set is
// closed: it must match the feature_types values cellranger multi accepts.
type LibraryType string

const (
	LibraryGeneExpression  LibraryType = "Gene Expression"
	LibraryAntibodyCapture LibraryType = "Antibody Capture"
	LibraryCRISPRGuide     LibraryType = "CRISPR Guide Capture"
	LibraryVDJB            LibraryType = "VDJ-B"
	LibraryVDJT            LibraryType = "VDJ-T"
	LibraryVDJTGD          LibraryType = "VDJ-T-GD"
)

// libraryTypeTags maps the short tags used in batch documents to the
// canonical cellranger names.
var libraryTypeTags = map[string]LibraryType{
	"gex":      LibraryGeneExpression,
	"features": LibraryAntibodyCapture,
	"crispr":   LibraryCRISPRGuide,
	"bcr":      LibraryVDJB,
	"tcr":      LibraryVDJT,
	"tcr-gd":   LibraryVDJTGD,
}

// ParseLibraryType resolves a batch-document tag or a canonical name into a
// LibraryType.
func ParseLibraryType(value string) (LibraryType, error) {
	trimmed := strings.TrimSpace(value)
	if typ, ok := libraryTypeTags[strings.ToLower(trimmed)]; ok {
		return typ, nil
	}
	for _, typ := range []LibraryType{
		LibraryGeneExpression,
		LibraryAntibodyCapture,
		LibraryCRISPRGuide,
		LibraryVDJB,
		LibraryVDJT,
		LibraryVDJTGD,
	} {
		if strings.EqualFold(trimmed, string(typ)) {
			return typ, nil
		}
	}
	return "", fmt.Errorf("unknown library type %q", value)
}

// Library is one sequencing library within a sample. Its fastq paths
// accumulate across runs: a multi-run sample ends up with one path per
// contributing run, in run-processing order.
type Library struct {
	Name       string
	Type       LibraryType
	FastqPaths []string
}

// AddFastqPath appends a demultiplexed read directory. Repeated additions of
// the same path are ignored so binder re-invocation stays idempotent.
func (l *Library) AddFastqPath(path string) {
	for _, existing := range l.FastqPaths {
		if existing == path {
			return
		}
	}
	l.FastqPaths = append(l.FastqPaths, path)
}
