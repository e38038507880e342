package delta

import (
	"testing"

	"lakebridge/model"
)

func fieldID(v int32) *int32 { return &v }

func testSchema() *model.Schema {
	return &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "id", FieldID: fieldID(1), Schema: &model.Schema{Kind: model.KindInt}},
		{Name: "ts", FieldID: fieldID(2), Schema: &model.Schema{Kind: model.KindTimestamp}},
		{Name: "region", FieldID: fieldID(3), Schema: &model.Schema{Kind: model.KindString}},
	}}
}

func TestToCanonicalPartitionSpec_ValueOnly(t *testing.T) {
	spec, err := ToCanonicalPartitionSpec(testSchema(), []PartitionColumn{{Name: "region"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spec) != 1 || spec[0].SourceFieldID != 3 || spec[0].Transform != model.TransformValue {
		t.Errorf("unexpected spec: %+v", spec)
	}
}

func TestToCanonicalPartitionSpec_DayCollapsesFromYearMonthDay(t *testing.T) {
	cols := []PartitionColumn{
		{Name: "lakebridge_partition_col_YEAR_ts", GenerationExpression: "YEAR(ts)"},
		{Name: "lakebridge_partition_col_MONTH_ts", GenerationExpression: "DATE_FORMAT(ts, 'yyyy-MM')"},
		{Name: "lakebridge_partition_col_DAY_ts", GenerationExpression: "CAST(ts AS DATE)"},
	}
	spec, err := ToCanonicalPartitionSpec(testSchema(), cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spec) != 1 {
		t.Fatalf("expected day transform to collapse year/month/day into one field, got %d fields: %+v", len(spec), spec)
	}
	if spec[0].SourceFieldID != 2 || spec[0].Transform != model.TransformDay {
		t.Errorf("expected DAY(field=2), got %+v", spec[0])
	}
}

func TestToCanonicalPartitionSpec_HourRequiresFullHierarchy(t *testing.T) {
	cols := []PartitionColumn{
		{Name: "lakebridge_partition_col_HOUR_ts", GenerationExpression: "DATE_FORMAT(ts, 'yyyy-MM-dd-HH')"},
	}
	_, err := ToCanonicalPartitionSpec(testSchema(), cols)
	if err == nil {
		t.Fatal("expected error when hour transform is missing its day/month/year siblings")
	}
	if !model.Is(err, model.ErrInvalidPartitionSpec) {
		t.Errorf("expected InvalidPartitionSpec, got %v", err)
	}
}

func TestToCanonicalPartitionSpec_YearOnly(t *testing.T) {
	cols := []PartitionColumn{
		{Name: "lakebridge_partition_col_YEAR_ts", GenerationExpression: "YEAR(ts)"},
	}
	spec, err := ToCanonicalPartitionSpec(testSchema(), cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spec) != 1 || spec[0].Transform != model.TransformYear {
		t.Errorf("expected YEAR transform, got %+v", spec)
	}
}

func TestDateFormatFor(t *testing.T) {
	cases := map[model.TransformType]string{
		model.TransformYear:  "yyyy",
		model.TransformMonth: "yyyy-MM",
		model.TransformDay:   "yyyy-MM-dd",
		model.TransformHour:  "yyyy-MM-dd-HH",
	}
	for transform, want := range cases {
		got, err := DateFormatFor(transform)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", transform, err)
		}
		if got != want {
			t.Errorf("DateFormatFor(%v) = %q, want %q", transform, got, want)
		}
	}
	if _, err := DateFormatFor(model.TransformBucket); err == nil {
		t.Error("expected error for non-time transform")
	}
}
