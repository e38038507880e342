package iceberg

import (
	"encoding/binary"
	"testing"

	"lakebridge/model"
)

func TestToFileMetrics_EncodesBoundsByKind(t *testing.T) {
	id := int32(1)
	schema := &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "amount", FieldID: &id, Schema: &model.Schema{Kind: model.KindLong}},
	}}
	stats := map[int32]model.ColumnStat{
		1: {Range: &model.Range{Min: int64(10), Max: int64(99)}, NumNulls: 2, NumValues: 100, TotalSizeBytes: 4096},
	}

	metrics := ToFileMetrics(stats, schema)
	if metrics.NullValueCounts[1] != 2 || metrics.ValueCounts[1] != 100 {
		t.Errorf("unexpected counts: %+v", metrics)
	}
	lower := metrics.LowerBounds[1]
	if len(lower) != 8 {
		t.Fatalf("expected 8-byte encoded long, got %d bytes", len(lower))
	}
	if got := int64(binary.LittleEndian.Uint64(lower)); got != 10 {
		t.Errorf("expected lower bound 10, got %d", got)
	}
}

func TestToFileMetrics_SkipsUnresolvableField(t *testing.T) {
	schema := &model.Schema{Kind: model.KindRecord}
	stats := map[int32]model.ColumnStat{99: {Range: &model.Range{Min: "a", Max: "z"}}}
	metrics := ToFileMetrics(stats, schema)
	if len(metrics.LowerBounds) != 0 {
		t.Errorf("expected no bounds for unresolvable field, got %+v", metrics.LowerBounds)
	}
}
