package model

// Range is a pair (Min, Max) with Min <= Max under the value type's natural
// order. Scalars are represented as Range{Min: v, Max: v}. Values are the
// language-native representation for the column's canonical type (int64,
// float64, string, time.Time, etc.) so that callers can compare them
// directly without re-parsing.
type Range struct {
	Min any
	Max any
}

// ScalarRange builds a single-value Range.
func ScalarRange(v any) Range { return Range{Min: v, Max: v} }

// ColumnStat holds the per-column statistics carried on a DataFile. Absent
// statistics are represented by omitting the field's id from the enclosing
// map entirely; there are no zero-valued placeholder stats.
type ColumnStat struct {
	Range          *Range
	NumNulls       uint64
	NumValues      uint64
	TotalSizeBytes uint64
}
