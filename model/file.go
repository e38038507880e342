package model

import (
	"fmt"
	"sort"
)

// FileFormat identifies the physical encoding of a DataFile. Parquet is the
// only fully-supported value; other values may appear in canonical values
// read from a source but are rejected by target writers.
type FileFormat string

const FormatParquet FileFormat = "APACHE_PARQUET"

// DataFile is the canonical representation of one physical data file
// referenced by a table. Writers must preserve Path verbatim: lakebridge
// never copies or renames the underlying object.
type DataFile struct {
	Path            string
	Format          FileFormat
	SchemaVersion   *SchemaVersion
	PartitionValues map[PartitionField]Range
	PartitionPath   *string // directory-layout formats; nil for manifest-based layouts
	FileSizeBytes   int64
	RecordCount     int64
	LastModifiedMs  int64
	ColumnStats     map[int32]ColumnStat // keyed by field id; absent stats simply aren't present
}

// partitionKey renders a DataFile's partition value vector into a stable,
// order-independent string so files with identical partition values can be
// grouped without requiring map types to be comparable.
func partitionKey(values map[PartitionField]Range) string {
	if len(values) == 0 {
		return ""
	}
	fields := make([]PartitionField, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool {
		if fields[i].SourceFieldID != fields[j].SourceFieldID {
			return fields[i].SourceFieldID < fields[j].SourceFieldID
		}
		if fields[i].Transform != fields[j].Transform {
			return fields[i].Transform < fields[j].Transform
		}
		return fields[i].Param < fields[j].Param
	})
	key := ""
	for _, f := range fields {
		r := values[f]
		key += fmt.Sprintf("|%s=%v..%v", f, r.Min, r.Max)
	}
	return key
}

// FileGroup is a set of DataFiles sharing identical partition value
// vectors.
type FileGroup struct {
	PartitionValues map[PartitionField]Range
	Files           []DataFile
}

// PartitionedDataFiles groups DataFiles by partition value vector.
type PartitionedDataFiles struct {
	Groups []FileGroup
}

// AllFiles flattens every group back into a single slice.
func (p PartitionedDataFiles) AllFiles() []DataFile {
	var out []DataFile
	for _, g := range p.Groups {
		out = append(out, g.Files...)
	}
	return out
}

// GroupFiles partitions files by their PartitionValues, preserving the
// order groups are first encountered.
func GroupFiles(files []DataFile) PartitionedDataFiles {
	order := make([]string, 0)
	byKey := make(map[string]*FileGroup)
	for _, f := range files {
		k := partitionKey(f.PartitionValues)
		g, ok := byKey[k]
		if !ok {
			g = &FileGroup{PartitionValues: f.PartitionValues}
			byKey[k] = g
			order = append(order, k)
		}
		g.Files = append(g.Files, f)
	}
	groups := make([]FileGroup, 0, len(order))
	for _, k := range order {
		groups = append(groups, *byKey[k])
	}
	return PartitionedDataFiles{Groups: groups}
}
