package iceberg

import (
	"fmt"
	"strings"

	"lakebridge/model"
)

// PartitionFieldJSON is one entry of an Iceberg partition spec's "fields"
// list, matching the shape written into metadata.json.
type PartitionFieldJSON struct {
	SourceID  int    `json:"source-id"`
	FieldID   int    `json:"field-id"`
	Name      string `json:"name"`
	Transform string `json:"transform"`
}

// partitionFieldIDBase is the first id handed out to partition fields,
// matching Iceberg's reserved range for partition field ids (below 1000 is
// reserved for data columns).
const partitionFieldIDBase = 1000

// ToIcebergPartitionSpec converts a canonical PartitionSpec into Iceberg's
// partition-spec field list. Unlike Delta, Iceberg carries the transform on
// the partition spec itself rather than through a generated source column,
// so no synthetic schema field is introduced here.
func ToIcebergPartitionSpec(schema *model.Schema, spec model.PartitionSpec) ([]PartitionFieldJSON, error) {
	index := model.BuildFieldIndex(schema)
	out := make([]PartitionFieldJSON, 0, len(spec))
	for i, pf := range spec {
		path, ok := index[pf.SourceFieldID]
		if !ok {
			return nil, model.Newf(model.ErrInvalidPartitionSpec, "no schema field for source field id %d", pf.SourceFieldID)
		}
		transform := transformString(pf.Transform, pf.Param)
		name := path
		if pf.Transform != model.TransformValue {
			name = fmt.Sprintf("%s_%s", strings.ToLower(pf.Transform.String()), lastSegment(path))
		}
		out = append(out, PartitionFieldJSON{
			SourceID:  int(pf.SourceFieldID),
			FieldID:   partitionFieldIDBase + i,
			Name:      name,
			Transform: transform,
		})
	}
	return out, nil
}

// FromIcebergPartitionSpec converts an Iceberg partition-spec field list
// back into the canonical PartitionSpec.
func FromIcebergPartitionSpec(fields []PartitionFieldJSON) (model.PartitionSpec, error) {
	spec := make(model.PartitionSpec, 0, len(fields))
	for _, f := range fields {
		transform, param, err := parseTransform(f.Transform)
		if err != nil {
			return nil, err
		}
		spec = append(spec, model.PartitionField{
			SourceFieldID: int32(f.SourceID),
			Transform:     transform,
			Param:         param,
		})
	}
	return spec, nil
}

func transformString(t model.TransformType, param int) string {
	switch t {
	case model.TransformValue:
		return "identity"
	case model.TransformYear:
		return "year"
	case model.TransformMonth:
		return "month"
	case model.TransformDay:
		return "day"
	case model.TransformHour:
		return "hour"
	case model.TransformBucket:
		return fmt.Sprintf("bucket[%d]", param)
	case model.TransformTruncate:
		return fmt.Sprintf("truncate[%d]", param)
	default:
		return "identity"
	}
}

func parseTransform(s string) (model.TransformType, int, error) {
	switch {
	case s == "identity":
		return model.TransformValue, 0, nil
	case s == "year":
		return model.TransformYear, 0, nil
	case s == "month":
		return model.TransformMonth, 0, nil
	case s == "day":
		return model.TransformDay, 0, nil
	case s == "hour":
		return model.TransformHour, 0, nil
	case strings.HasPrefix(s, "bucket["):
		var n int
		if _, err := fmt.Sscanf(s, "bucket[%d]", &n); err != nil {
			return 0, 0, model.Wrap(model.ErrUnsupportedPartitionTransform, "parsing bucket transform", err)
		}
		return model.TransformBucket, n, nil
	case strings.HasPrefix(s, "truncate["):
		var n int
		if _, err := fmt.Sscanf(s, "truncate[%d]", &n); err != nil {
			return 0, 0, model.Wrap(model.ErrUnsupportedPartitionTransform, "parsing truncate transform", err)
		}
		return model.TransformTruncate, n, nil
	default:
		return 0, 0, model.Newf(model.ErrUnsupportedPartitionTransform, "unsupported iceberg transform %q", s)
	}
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}
