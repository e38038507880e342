package delta

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"lakebridge/model"
)

const columnMappingIDProperty = "delta.columnMapping.id"

// StructField is the JSON shape of one entry in a Delta log schema string's
// "fields" array (Spark's StructField serialization): {"name":...,
// "type":..., "nullable":..., "metadata":{...}}. Type is either a primitive
// type name ("string", "long", "decimal(10,2)", ...) or a nested object
// ("struct"/"array"/"map" shapes), represented here as FieldType.
type StructField struct {
	Name     string
	Type     FieldType
	Nullable bool
	Metadata map[string]any
}

// FieldType mirrors Delta/Spark's JSON type encoding: a primitive is a bare
// string, a struct/array/map is a nested JSON object. Exactly one of
// Primitive or the composite fields is set.
type FieldType struct {
	Primitive string

	StructFields []StructField // struct
	ElementType  *FieldType    // array
	ContainsNull bool          // array: element nullability
	KeyType      *FieldType    // map
	ValueType    *FieldType    // map
	ValueNullable bool         // map: value nullability
}

// MarshalJSON renders a FieldType the way Spark's StructType JSON does: a
// bare string for primitives, a nested object for struct/array/map.
func (t FieldType) MarshalJSON() ([]byte, error) {
	switch {
	case t.StructFields != nil:
		return json.Marshal(struct {
			Type   string        `json:"type"`
			Fields []StructField `json:"fields"`
		}{Type: "struct", Fields: t.StructFields})
	case t.ElementType != nil:
		return json.Marshal(struct {
			Type         string    `json:"type"`
			ElementType  FieldType `json:"elementType"`
			ContainsNull bool      `json:"containsNull"`
		}{Type: "array", ElementType: *t.ElementType, ContainsNull: t.ContainsNull})
	case t.KeyType != nil && t.ValueType != nil:
		return json.Marshal(struct {
			Type          string    `json:"type"`
			KeyType       FieldType `json:"keyType"`
			ValueType     FieldType `json:"valueType"`
			ValueNullable bool      `json:"valueContainsNull"`
		}{Type: "map", KeyType: *t.KeyType, ValueType: *t.ValueType, ValueNullable: t.ValueNullable})
	default:
		return json.Marshal(t.Primitive)
	}
}

// UnmarshalJSON accepts either a bare primitive type name or a nested
// struct/array/map object, matching Spark's StructType JSON encoding.
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var primitive string
	if err := json.Unmarshal(data, &primitive); err == nil {
		t.Primitive = primitive
		return nil
	}
	var shape struct {
		Type          string          `json:"type"`
		Fields        []StructField   `json:"fields"`
		ElementType   json.RawMessage `json:"elementType"`
		ContainsNull  bool            `json:"containsNull"`
		KeyType       json.RawMessage `json:"keyType"`
		ValueType     json.RawMessage `json:"valueType"`
		ValueNullable bool            `json:"valueContainsNull"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	switch shape.Type {
	case "struct":
		t.StructFields = shape.Fields
	case "array":
		var element FieldType
		if err := json.Unmarshal(shape.ElementType, &element); err != nil {
			return err
		}
		t.ElementType = &element
		t.ContainsNull = shape.ContainsNull
	case "map":
		var key, value FieldType
		if err := json.Unmarshal(shape.KeyType, &key); err != nil {
			return err
		}
		if err := json.Unmarshal(shape.ValueType, &value); err != nil {
			return err
		}
		t.KeyType = &key
		t.ValueType = &value
		t.ValueNullable = shape.ValueNullable
	default:
		return model.Newf(model.ErrInvalidSchema, "unrecognized delta field type shape: %q", shape.Type)
	}
	return nil
}

// MarshalJSON renders a StructField the way Spark does: name/type/
// nullable/metadata, with metadata always present (Spark omits it only
// never — an empty object is the common case for unmapped columns).
func (f StructField) MarshalJSON() ([]byte, error) {
	metadata := f.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return json.Marshal(struct {
		Name     string         `json:"name"`
		Type     FieldType      `json:"type"`
		Nullable bool           `json:"nullable"`
		Metadata map[string]any `json:"metadata"`
	}{Name: f.Name, Type: f.Type, Nullable: f.Nullable, Metadata: metadata})
}

func (f *StructField) UnmarshalJSON(data []byte) error {
	var shape struct {
		Name     string         `json:"name"`
		Type     FieldType      `json:"type"`
		Nullable bool           `json:"nullable"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	f.Name = shape.Name
	f.Type = shape.Type
	f.Nullable = shape.Nullable
	f.Metadata = shape.Metadata
	return nil
}

var decimalPattern = regexp.MustCompile(`^decimal\((\d+),(\d+)\)$`)

// ToCanonicalSchema converts a Delta StructType (as decoded from a Delta
// log schema string) into the canonical model. Field ids are taken from
// each field's "delta.columnMapping.id" metadata entry when column mapping
// is enabled; otherwise fields carry no FieldID and the caller is
// responsible for assigning one downstream (mirrors Iceberg's own
// incrementing-tracker fallback).
func ToCanonicalSchema(fields []StructField) (*model.Schema, error) {
	converted, err := convertFields(fields)
	if err != nil {
		return nil, err
	}
	return &model.Schema{Kind: model.KindRecord, Fields: converted}, nil
}

func convertFields(fields []StructField) ([]model.Field, error) {
	out := make([]model.Field, len(fields))
	for i, f := range fields {
		s, err := convertType(f.Type)
		if err != nil {
			return nil, err
		}
		out[i] = model.Field{
			Name:     f.Name,
			FieldID:  columnMappingID(f.Metadata),
			Schema:   s,
			Nullable: f.Nullable,
		}
	}
	return out, nil
}

func columnMappingID(metadata map[string]any) *int32 {
	v, ok := metadata[columnMappingIDProperty]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		id := int32(n)
		return &id
	case int:
		id := int32(n)
		return &id
	default:
		return nil
	}
}

func convertType(t FieldType) (*model.Schema, error) {
	if t.Primitive != "" {
		return convertPrimitive(t.Primitive)
	}
	switch {
	case t.StructFields != nil:
		fields, err := convertFields(t.StructFields)
		if err != nil {
			return nil, err
		}
		return &model.Schema{Kind: model.KindRecord, Fields: fields}, nil
	case t.ElementType != nil:
		element, err := convertType(*t.ElementType)
		if err != nil {
			return nil, err
		}
		return model.NewArraySchema(t.ContainsNull, model.Field{Schema: element}), nil
	case t.KeyType != nil && t.ValueType != nil:
		key, err := convertType(*t.KeyType)
		if err != nil {
			return nil, err
		}
		value, err := convertType(*t.ValueType)
		if err != nil {
			return nil, err
		}
		return model.NewMapSchema(
			model.Field{Schema: key},
			model.Field{Schema: value, Nullable: t.ValueNullable},
		), nil
	default:
		return nil, model.New(model.ErrInvalidSchema, "delta field type has neither primitive nor composite shape")
	}
}

func convertPrimitive(name string) (*model.Schema, error) {
	if m := decimalPattern.FindStringSubmatch(name); m != nil {
		precision, _ := strconv.Atoi(m[1])
		scale, _ := strconv.Atoi(m[2])
		return &model.Schema{Kind: model.KindDecimal, Metadata: model.Metadata{DecimalPrecision: precision, DecimalScale: scale}}, nil
	}
	switch name {
	case "string":
		return &model.Schema{Kind: model.KindString}, nil
	case "integer":
		return &model.Schema{Kind: model.KindInt}, nil
	case "long":
		return &model.Schema{Kind: model.KindLong}, nil
	case "short", "byte":
		return &model.Schema{Kind: model.KindInt}, nil
	case "float":
		return &model.Schema{Kind: model.KindFloat}, nil
	case "double":
		return &model.Schema{Kind: model.KindDouble}, nil
	case "boolean":
		return &model.Schema{Kind: model.KindBool}, nil
	case "binary":
		return &model.Schema{Kind: model.KindBytes}, nil
	case "date":
		return &model.Schema{Kind: model.KindDate}, nil
	case "timestamp":
		return &model.Schema{Kind: model.KindTimestamp, Metadata: model.Metadata{TimestampPrecision: model.TimestampMicros}}, nil
	case "timestamp_ntz":
		return &model.Schema{Kind: model.KindTimestampNTZ, Metadata: model.Metadata{TimestampPrecision: model.TimestampMicros}}, nil
	default:
		return nil, model.Newf(model.ErrUnsupportedType, "unsupported delta primitive type: %s", name)
	}
}

// FromCanonicalSchema converts the canonical model back into Delta's
// StructField JSON shape, assigning "delta.columnMapping.id" metadata
// whenever the canonical field carries a FieldID.
func FromCanonicalSchema(schema *model.Schema) ([]StructField, error) {
	if schema == nil || schema.Kind != model.KindRecord {
		return nil, model.New(model.ErrInvalidSchema, "delta schema requires a RECORD root")
	}
	return fromFields(schema.Fields)
}

func fromFields(fields []model.Field) ([]StructField, error) {
	out := make([]StructField, len(fields))
	for i, f := range fields {
		t, err := fromSchema(f.Schema)
		if err != nil {
			return nil, err
		}
		var metadata map[string]any
		if f.FieldID != nil {
			metadata = map[string]any{columnMappingIDProperty: int(*f.FieldID)}
		}
		out[i] = StructField{Name: f.Name, Type: t, Nullable: f.Nullable, Metadata: metadata}
	}
	return out, nil
}

func fromSchema(s *model.Schema) (FieldType, error) {
	switch s.Kind {
	case model.KindString, model.KindEnum:
		return FieldType{Primitive: "string"}, nil
	case model.KindInt:
		return FieldType{Primitive: "integer"}, nil
	case model.KindLong:
		return FieldType{Primitive: "long"}, nil
	case model.KindFloat:
		return FieldType{Primitive: "float"}, nil
	case model.KindDouble:
		return FieldType{Primitive: "double"}, nil
	case model.KindBool:
		return FieldType{Primitive: "boolean"}, nil
	case model.KindBytes, model.KindFixed:
		return FieldType{Primitive: "binary"}, nil
	case model.KindDate:
		return FieldType{Primitive: "date"}, nil
	case model.KindTimestamp:
		return FieldType{Primitive: "timestamp"}, nil
	case model.KindTimestampNTZ:
		return FieldType{Primitive: "timestamp_ntz"}, nil
	case model.KindDecimal:
		return FieldType{Primitive: fmt.Sprintf("decimal(%d,%d)", s.Metadata.DecimalPrecision, s.Metadata.DecimalScale)}, nil
	case model.KindRecord:
		fields, err := fromFields(s.Fields)
		if err != nil {
			return FieldType{}, err
		}
		return FieldType{StructFields: fields}, nil
	case model.KindArray:
		element, err := s.ArrayElement()
		if err != nil {
			return FieldType{}, err
		}
		elementType, err := fromSchema(element.Schema)
		if err != nil {
			return FieldType{}, err
		}
		return FieldType{ElementType: &elementType, ContainsNull: element.Nullable}, nil
	case model.KindMap:
		key, value, err := s.MapKeyAndValue()
		if err != nil {
			return FieldType{}, err
		}
		keyType, err := fromSchema(key.Schema)
		if err != nil {
			return FieldType{}, err
		}
		valueType, err := fromSchema(value.Schema)
		if err != nil {
			return FieldType{}, err
		}
		return FieldType{KeyType: &keyType, ValueType: &valueType, ValueNullable: value.Nullable}, nil
	default:
		return FieldType{}, model.Newf(model.ErrUnsupportedType, "unsupported type for delta schema: %s", s.Kind)
	}
}
