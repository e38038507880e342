package model

import "fmt"

// VersionToken identifies a commit/version in a source or target table.
// Raw is the format-native lexical form (a Delta version number, an
// Iceberg snapshot id, a Hudi instant timestamp); Ord is a monotonic
// ordinal used for comparison since the native forms aren't uniformly
// orderable as strings (e.g. Hudi instants sort lexically but Iceberg
// snapshot ids don't).
type VersionToken struct {
	Raw string
	Ord int64
}

func (v VersionToken) String() string { return v.Raw }

// Less reports whether v sorts strictly before other.
func (v VersionToken) Less(other VersionToken) bool { return v.Ord < other.Ord }

// IsZero reports whether v is the unset token.
func (v VersionToken) IsZero() bool { return v == VersionToken{} }

// SchemaVersion identifies one entry in a table's schema catalog (an
// Iceberg schema-id, a Delta commit version that last changed the schema,
// or a Hudi commit instant).
type SchemaVersion string

func NewSchemaVersion(v int64) SchemaVersion { return SchemaVersion(fmt.Sprintf("%d", v)) }
