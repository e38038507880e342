package delta

import (
	"bytes"
	"testing"

	"github.com/parquet-go/parquet-go"

	"lakebridge/model"
)

func statsTestSchema() *model.Schema {
	id := int32(1)
	amount := int32(2)
	return &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "id", FieldID: &id, Schema: &model.Schema{Kind: model.KindLong}},
		{Name: "amount", FieldID: &amount, Schema: &model.Schema{Kind: model.KindDouble}},
	}}
}

func TestStatsFromInline(t *testing.T) {
	schema := statsTestSchema()
	statsJSON := `{
		"numRecords": 3,
		"minValues": {"id": 1, "amount": 1.5},
		"maxValues": {"id": 3, "amount": 9.5},
		"nullCount": {"id": 0, "amount": 1}
	}`

	stats, numRecords, err := StatsFromInline(statsJSON, schema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if numRecords != 3 {
		t.Fatalf("expected 3 records, got %d", numRecords)
	}
	idStat, ok := stats[1]
	if !ok {
		t.Fatalf("expected stats for field id 1, got %+v", stats)
	}
	if idStat.NumNulls != 0 || idStat.Range == nil || idStat.Range.Min != float64(1) || idStat.Range.Max != float64(3) {
		t.Fatalf("unexpected id stats: %+v", idStat)
	}
	amountStat, ok := stats[2]
	if !ok || amountStat.NumNulls != 1 {
		t.Fatalf("unexpected amount stats: %+v", amountStat)
	}
}

func TestStatsFromInline_InvalidJSON(t *testing.T) {
	_, _, err := StatsFromInline("not json", statsTestSchema())
	if err == nil || !model.Is(err, model.ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
}

func writeTestParquet(t *testing.T, rows []map[string]any) []byte {
	t.Helper()
	group := parquet.Group{
		"id":     parquet.Leaf(parquet.Int64Type),
		"amount": parquet.Leaf(parquet.DoubleType),
	}
	schema := parquet.NewSchema("row", group)

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[map[string]any](&buf, schema)
	for _, row := range rows {
		if _, err := w.Write([]map[string]any{row}); err != nil {
			t.Fatalf("writing row: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return buf.Bytes()
}

func TestStatsFromParquetFooter(t *testing.T) {
	data := writeTestParquet(t, []map[string]any{
		{"id": int64(1), "amount": 1.5},
		{"id": int64(2), "amount": 2.5},
		{"id": int64(3), "amount": 3.5},
	})

	stats, numRows, err := StatsFromParquetFooter(bytes.NewReader(data), int64(len(data)), statsTestSchema())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if numRows != 3 {
		t.Fatalf("expected 3 rows, got %d", numRows)
	}
	idStat, ok := stats[1]
	if !ok || idStat.NumValues != 3 {
		t.Fatalf("expected 3 values for field id 1, got %+v", idStat)
	}
	if _, ok := stats[2]; !ok {
		t.Fatalf("expected stats for field id 2 (amount), got %+v", stats)
	}
}
