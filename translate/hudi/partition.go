// Package hudi translates between the canonical model and Hudi's
// Hive-style partition-path conventions.
package hudi

import (
	"fmt"
	"strings"

	"lakebridge/model"
)

// NullPartitionToken is the literal Hudi/Hive writes for a null partition
// value component.
const NullPartitionToken = "__HIVE_DEFAULT_PARTITION__"

// partitionPathField describes one "name=value" segment of a Hudi
// partition path, plus the canonical field id and transform it corresponds
// to in the table's partition spec.
type partitionPathField struct {
	Name  string
	Field model.PartitionField
}

// ParsePartitionPath splits a Hive-style partition path such as
// "year=2024/month=03/region=us" into its ordered name/value components.
// A table laid out with LayoutFlat (no directory-encoded partitioning) has
// no partition path to parse; callers should not call this for such tables.
func ParsePartitionPath(path string) []KeyValue {
	if path == "" {
		return nil
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]KeyValue, 0, len(segments))
	for _, seg := range segments {
		name, value, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		out = append(out, KeyValue{Name: name, Value: value})
	}
	return out
}

// KeyValue is one decoded "name=value" partition path component.
type KeyValue struct {
	Name  string
	Value string
}

// ToCanonicalPartitionValues resolves parsed Hive-style path components
// against a table's schema and partition spec, producing the canonical
// Range map keyed by PartitionField. Hudi partition fields are always
// TransformValue: Hudi has no native time-granularity transform analogous
// to Iceberg's YEAR/MONTH/DAY/HOUR, only a user-chosen key expression that
// the writer evaluates before forming the path.
func ToCanonicalPartitionValues(schema *model.Schema, spec model.PartitionSpec, components []KeyValue) (map[model.PartitionField]model.Range, error) {
	index := model.BuildFieldIndex(schema)
	nameToFieldID := make(map[string]int32, len(index))
	for id, path := range index {
		nameToFieldID[path] = id
	}

	byFieldID := make(map[int32]model.PartitionField, len(spec))
	for _, f := range spec {
		byFieldID[f.SourceFieldID] = f
	}

	values := make(map[model.PartitionField]model.Range, len(components))
	for _, kv := range components {
		fieldID, ok := nameToFieldID[kv.Name]
		if !ok {
			return nil, model.Newf(model.ErrInvalidPartitionSpec, "partition path segment %q does not match any schema field", kv.Name)
		}
		pf, ok := byFieldID[fieldID]
		if !ok {
			pf = model.PartitionField{SourceFieldID: fieldID, Transform: model.TransformValue}
		}
		if kv.Value == NullPartitionToken {
			values[pf] = model.ScalarRange(nil)
			continue
		}
		values[pf] = model.ScalarRange(kv.Value)
	}
	return values, nil
}

// FormatPartitionPath serializes partition values back into a Hive-style
// directory path, substituting NullPartitionToken for nil values.
func FormatPartitionPath(schema *model.Schema, order []model.PartitionField, values map[model.PartitionField]model.Range) (string, error) {
	index := model.BuildFieldIndex(schema)
	var parts []string
	for _, pf := range order {
		path, ok := index[pf.SourceFieldID]
		if !ok {
			return "", model.Newf(model.ErrInvalidPartitionSpec, "no schema field for source field id %d", pf.SourceFieldID)
		}
		r, ok := values[pf]
		if !ok || r.Max == nil {
			parts = append(parts, path+"="+NullPartitionToken)
			continue
		}
		parts = append(parts, path+"="+toPathValue(r.Max))
	}
	return strings.Join(parts, "/"), nil
}

func toPathValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
