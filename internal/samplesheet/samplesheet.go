// Package samplesheet parses the two demultiplexing input formats cellranger
// mkfastq accepts: the full Illumina samplesheet and the simplified
// lane/sample/index CSV.
package samplesheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseSamplesheet extracts the library names declared in an Illumina
// samplesheet's [Data] section. Sample_Name is preferred when present and
// non-empty, mirroring bcl2fastq; otherwise Sample_ID is used.
func ParseSamplesheet(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open samplesheet: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	inData := false
	dataSeen := false
	idCol, nameCol := -1, -1
	var names []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read samplesheet: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		first := strings.TrimSpace(record[0])
		if strings.HasPrefix(first, "[") {
			inData = strings.EqualFold(first, "[Data]")
			if inData {
				dataSeen = true
			}
			continue
		}
		if !inData {
			continue
		}
		if idCol < 0 && nameCol < 0 {
			for i, col := range record {
				switch strings.TrimSpace(col) {
				case "Sample_ID":
					idCol = i
				case "Sample_Name":
					nameCol = i
				}
			}
			if idCol < 0 && nameCol < 0 {
				return nil, fmt.Errorf("samplesheet [Data] header lacks Sample_ID and Sample_Name columns")
			}
			continue
		}
		name := ""
		if nameCol >= 0 && nameCol < len(record) {
			name = strings.TrimSpace(record[nameCol])
		}
		if name == "" && idCol >= 0 && idCol < len(record) {
			name = strings.TrimSpace(record[idCol])
		}
		if name != "" {
			names = append(names, name)
		}
	}
	if !dataSeen {
		return nil, fmt.Errorf("samplesheet has no [Data] section")
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("samplesheet [Data] section declares no samples")
	}
	return names, nil
}

// ParseSimpleCSV extracts library names from the simplified mkfastq CSV. The
// header must contain a Sample column; Lane and Index are passed through to
// cellranger untouched.
func ParseSimpleCSV(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open simple csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read simple csv header: %w", err)
	}
	sampleCol := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "Sample") {
			sampleCol = i
			break
		}
	}
	if sampleCol < 0 {
		return nil, fmt.Errorf("simple csv header lacks a Sample column")
	}

	var names []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read simple csv: %w", err)
		}
		if sampleCol >= len(record) {
			continue
		}
		if name := strings.TrimSpace(record[sampleCol]); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("simple csv declares no samples")
	}
	return names, nil
}
