package model

import "fmt"

// TransformType is the partition-value transform applied to a source field.
// Bucket and Truncate carry a parameter (n buckets, w truncation width) that
// is part of the transform's identity: BUCKET<4> and BUCKET<8> are distinct
// transforms even though both have Transform == TransformBucket.
type TransformType int

const (
	TransformValue TransformType = iota
	TransformYear
	TransformMonth
	TransformDay
	TransformHour
	TransformBucket
	TransformTruncate
)

func (t TransformType) String() string {
	switch t {
	case TransformValue:
		return "VALUE"
	case TransformYear:
		return "YEAR"
	case TransformMonth:
		return "MONTH"
	case TransformDay:
		return "DAY"
	case TransformHour:
		return "HOUR"
	case TransformBucket:
		return "BUCKET"
	case TransformTruncate:
		return "TRUNCATE"
	default:
		return "UNKNOWN"
	}
}

// IsTimeGranularity reports whether t operates on DATE/TIMESTAMP* fields
// only, per the invariant that a transform finer than VALUE requires its
// source field to be a date or timestamp type.
func (t TransformType) IsTimeGranularity() bool {
	switch t {
	case TransformYear, TransformMonth, TransformDay, TransformHour:
		return true
	default:
		return false
	}
}

// PartitionField references a source schema field by its persistent field
// id plus the transform applied to it. Two PartitionFields are equal iff
// SourceFieldID, Transform and Param are all equal (Param disambiguates
// BUCKET<n>/TRUNCATE<w> instances of the same Transform kind), matching the
// struct's natural Go equality — it is used directly as a map key.
type PartitionField struct {
	SourceFieldID int32
	Transform     TransformType
	Param         int // bucket count or truncate width; unused for other transforms
}

func (p PartitionField) String() string {
	if p.Transform == TransformBucket || p.Transform == TransformTruncate {
		return fmt.Sprintf("%s<%d>(field=%d)", p.Transform, p.Param, p.SourceFieldID)
	}
	return fmt.Sprintf("%s(field=%d)", p.Transform, p.SourceFieldID)
}

// PartitionSpec is an ordered sequence of PartitionFields. An empty spec
// means the table is unpartitioned.
type PartitionSpec []PartitionField

func (s PartitionSpec) IsPartitioned() bool { return len(s) > 0 }
