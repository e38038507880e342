package iceberg

import (
	"encoding/binary"
	"math"

	"lakebridge/model"
)

// FileMetrics is the per-data-file statistics block Iceberg stores in a
// manifest entry, keyed by field id.
type FileMetrics struct {
	ColumnSizes     map[int]int64
	ValueCounts     map[int]int64
	NullValueCounts map[int]int64
	LowerBounds     map[int][]byte
	UpperBounds     map[int][]byte
}

// ToFileMetrics converts the canonical per-field ColumnStat map into the
// Iceberg manifest metrics layout. Values are encoded using Iceberg's
// single-value binary serialization for the field's canonical kind; fields
// with an unrecognized kind have their bound omitted rather than failing
// the whole conversion, since a file's metrics are an optimization, not a
// correctness requirement.
func ToFileMetrics(stats map[int32]model.ColumnStat, schema *model.Schema) FileMetrics {
	index := model.BuildFieldIndex(schema)
	m := FileMetrics{
		ColumnSizes:     map[int]int64{},
		ValueCounts:     map[int]int64{},
		NullValueCounts: map[int]int64{},
		LowerBounds:     map[int][]byte{},
		UpperBounds:     map[int][]byte{},
	}
	for fieldID, stat := range stats {
		m.ColumnSizes[int(fieldID)] = int64(stat.TotalSizeBytes)
		m.ValueCounts[int(fieldID)] = int64(stat.NumValues)
		m.NullValueCounts[int(fieldID)] = int64(stat.NumNulls)
		if stat.Range == nil {
			continue
		}
		path, ok := index[fieldID]
		if !ok {
			continue
		}
		field, ok := model.FieldByPath(schema, path)
		if !ok || field.Schema == nil {
			continue
		}
		if lower, ok := encodeBound(field.Schema.Kind, stat.Range.Min); ok {
			m.LowerBounds[int(fieldID)] = lower
		}
		if upper, ok := encodeBound(field.Schema.Kind, stat.Range.Max); ok {
			m.UpperBounds[int(fieldID)] = upper
		}
	}
	return m
}

// FromFileMetrics converts an Iceberg manifest entry's per-field metrics
// back into the canonical ColumnStat map, decoding bounds using the
// field's canonical kind. A bound that fails to decode (wrong width, or a
// kind FromFileMetrics does not know how to bound) is dropped rather than
// failing the whole file's stats.
func FromFileMetrics(m FileMetrics, schema *model.Schema) map[int32]model.ColumnStat {
	index := model.BuildFieldIndex(schema)
	out := make(map[int32]model.ColumnStat, len(m.ValueCounts))
	for fieldID, numValues := range m.ValueCounts {
		id := int32(fieldID)
		stat := model.ColumnStat{
			NumValues:      uint64(numValues),
			NumNulls:       uint64(m.NullValueCounts[fieldID]),
			TotalSizeBytes: uint64(m.ColumnSizes[fieldID]),
		}
		path, ok := index[id]
		if ok {
			if field, ok := model.FieldByPath(schema, path); ok && field.Schema != nil {
				lower, lowerOK := m.LowerBounds[fieldID]
				upper, upperOK := m.UpperBounds[fieldID]
				if lowerOK && upperOK {
					if min, ok := decodeBound(field.Schema.Kind, lower); ok {
						if max, ok := decodeBound(field.Schema.Kind, upper); ok {
							stat.Range = &model.Range{Min: min, Max: max}
						}
					}
				}
			}
		}
		out[id] = stat
	}
	return out
}

// decodeBound reverses encodeBound for the primitive kinds that support
// column bounds.
func decodeBound(kind model.Kind, b []byte) (any, bool) {
	switch kind {
	case model.KindInt, model.KindDate:
		if len(b) != 4 {
			return nil, false
		}
		return int64(int32(binary.LittleEndian.Uint32(b))), true
	case model.KindLong, model.KindTimestamp, model.KindTimestampNTZ:
		if len(b) != 8 {
			return nil, false
		}
		return int64(binary.LittleEndian.Uint64(b)), true
	case model.KindFloat:
		if len(b) != 4 {
			return nil, false
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), true
	case model.KindDouble:
		if len(b) != 8 {
			return nil, false
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), true
	case model.KindBool:
		if len(b) != 1 {
			return nil, false
		}
		return b[0] != 0, true
	case model.KindString:
		return string(b), true
	case model.KindBytes, model.KindFixed:
		return b, true
	default:
		return nil, false
	}
}

// encodeBound renders v using Iceberg's fixed-width single-value binary
// encoding for the primitive kinds that support column bounds.
func encodeBound(kind model.Kind, v any) ([]byte, bool) {
	switch kind {
	case model.KindInt, model.KindDate:
		i, ok := toInt64(v)
		if !ok {
			return nil, false
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(int32(i)))
		return buf, true
	case model.KindLong, model.KindTimestamp, model.KindTimestampNTZ:
		i, ok := toInt64(v)
		if !ok {
			return nil, false
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(i))
		return buf, true
	case model.KindFloat:
		f, ok := toFloat64(v)
		if !ok {
			return nil, false
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(f)))
		return buf, true
	case model.KindDouble:
		f, ok := toFloat64(v)
		if !ok {
			return nil, false
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
		return buf, true
	case model.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, false
		}
		if b {
			return []byte{1}, true
		}
		return []byte{0}, true
	case model.KindString:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		return []byte(s), true
	case model.KindBytes, model.KindFixed:
		b, ok := v.([]byte)
		if !ok {
			return nil, false
		}
		return b, true
	default:
		return nil, false
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
