package delta

import (
	"encoding/json"
	"io"

	"github.com/parquet-go/parquet-go"

	"lakebridge/model"
)

// inlineStats is the JSON shape of a Delta add action's "stats" field:
// per-column min/max keyed by column name (dotted path for nested fields)
// plus a row count and null counts.
type inlineStats struct {
	NumRecords int64                  `json:"numRecords"`
	MinValues  map[string]any         `json:"minValues"`
	MaxValues  map[string]any         `json:"maxValues"`
	NullCount  map[string]int64       `json:"nullCount"`
}

// StatsFromInline decodes a Delta add action's inline stats JSON into
// canonical column statistics keyed by field id, resolving each column
// name against schema's field-id index.
func StatsFromInline(statsJSON string, schema *model.Schema) (map[int32]model.ColumnStat, int64, error) {
	var s inlineStats
	if err := json.Unmarshal([]byte(statsJSON), &s); err != nil {
		return nil, 0, model.Wrap(model.ErrInvalidSchema, "parsing delta inline stats", err)
	}
	nameToID := pathToFieldID(schema)
	out := map[int32]model.ColumnStat{}
	for name, id := range nameToID {
		stat := model.ColumnStat{NumValues: uint64(s.NumRecords)}
		if n, ok := s.NullCount[name]; ok {
			stat.NumNulls = uint64(n)
		}
		min, hasMin := s.MinValues[name]
		max, hasMax := s.MaxValues[name]
		if hasMin && hasMax {
			stat.Range = &model.Range{Min: min, Max: max}
		}
		out[id] = stat
	}
	return out, s.NumRecords, nil
}

// StatsFromParquetFooter reads a physical Parquet file's footer to recover
// per-column min/max, null count and value count when a Delta add action
// carries no inline stats (common for tables written without statistics
// collection). Per-column byte size is not recovered.
// r must expose the whole file; size is its length in bytes.
func StatsFromParquetFooter(r io.ReaderAt, size int64, schema *model.Schema) (map[int32]model.ColumnStat, int64, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, 0, model.Wrap(model.ErrSourceReadError, "opening parquet footer", err)
	}

	names := schemaColumnNames(file.Schema())
	nameToID := pathToFieldID(schema)

	out := map[int32]model.ColumnStat{}
	var totalRows int64
	for _, rg := range file.RowGroups() {
		totalRows += rg.NumRows()
		for idx, chunk := range rg.ColumnChunks() {
			if idx >= len(names) {
				continue
			}
			id, ok := nameToID[names[idx]]
			if !ok {
				continue
			}
			fileChunk, ok := chunk.(*parquet.FileColumnChunk)
			if !ok {
				continue
			}
			stat := out[id]
			stat.NumValues += uint64(rg.NumRows())
			stat.NumNulls += uint64(fileChunk.NullCount())
			if min, max, hasMinMax := fileChunk.Bounds(); hasMinMax {
				minVal := parquetValueToGo(min)
				maxVal := parquetValueToGo(max)
				if stat.Range == nil {
					stat.Range = &model.Range{Min: minVal, Max: maxVal}
				}
			}
			out[id] = stat
		}
	}
	return out, totalRows, nil
}

func schemaColumnNames(s *parquet.Schema) []string {
	fields := s.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}
	return names
}

func parquetValueToGo(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return v.Int32()
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return v.Float()
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return v.String()
	default:
		return v.String()
	}
}

// pathToFieldID builds the name-keyed inverse of model.BuildFieldIndex, the
// direction Delta's column-name-keyed stats JSON and Parquet's column-name-
// keyed footer both need.
func pathToFieldID(schema *model.Schema) map[string]int32 {
	out := map[string]int32{}
	for id, path := range model.BuildFieldIndex(schema) {
		out[path] = id
	}
	return out
}
