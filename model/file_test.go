package model

import "testing"

func TestGroupFiles_GroupsByPartitionValue(t *testing.T) {
	pf := PartitionField{SourceFieldID: 1, Transform: TransformYear}
	files := []DataFile{
		{Path: "a.parquet", PartitionValues: map[PartitionField]Range{pf: ScalarRange(2023)}},
		{Path: "b.parquet", PartitionValues: map[PartitionField]Range{pf: ScalarRange(2023)}},
		{Path: "c.parquet", PartitionValues: map[PartitionField]Range{pf: ScalarRange(2024)}},
	}

	grouped := GroupFiles(files)
	if len(grouped.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(grouped.Groups))
	}

	total := 0
	for _, g := range grouped.Groups {
		total += len(g.Files)
	}
	if total != 3 {
		t.Errorf("expected 3 total files across groups, got %d", total)
	}
}

func TestGroupFiles_AllFilesRoundtrips(t *testing.T) {
	files := []DataFile{{Path: "a.parquet"}, {Path: "b.parquet"}}
	grouped := GroupFiles(files)
	all := grouped.AllFiles()
	if len(all) != 2 {
		t.Fatalf("expected 2 files back, got %d", len(all))
	}
}

func TestPartitionField_UsableAsMapKey(t *testing.T) {
	a := PartitionField{SourceFieldID: 1, Transform: TransformMonth}
	b := PartitionField{SourceFieldID: 1, Transform: TransformMonth}
	m := map[PartitionField]int{a: 1}
	if _, ok := m[b]; !ok {
		t.Error("expected equal PartitionField values to collide as map keys")
	}
}
