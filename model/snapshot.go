package model

// Snapshot is a full point-in-time view of a table: its descriptor, the
// catalog of every schema version referenced by its files, its current
// file set, and the source version it was read at.
type Snapshot struct {
	Table         TableDescriptor
	SchemaCatalog map[SchemaVersion]*Schema
	Files         PartitionedDataFiles
	SourceVersion VersionToken
}

// Commit is a single atomic change recorded in the source format's log.
// Schema evolution is conveyed by TableAfter.ReadSchema differing from the
// previous commit's schema; field identity across that change is carried
// by FieldID, not by position.
type Commit struct {
	Version     VersionToken
	TimestampMs int64
	FilesDiff   DataFilesDiff
	TableAfter  TableDescriptor
}
