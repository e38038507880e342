package hudi

import (
	"encoding/json"

	"github.com/hamba/avro/v2"

	"lakebridge/model"
)

// avroType is the JSON shape of one Avro schema node: a bare string for a
// named/primitive type, or a nested object for record/array/map/fixed. A
// nullable field is rendered as the union ["null", T] with T second, Hudi's
// convention for an optional column.
type avroType struct {
	Name string // primitive name, or "record"/"array"/"map"/"fixed"; decimal is "bytes" or "fixed" with LogicalType "decimal"

	RecordName   string
	Fields       []avroField
	Items        *avroType // array
	Values       *avroType // map
	Size         int       // fixed
	Precision    int       // decimal
	Scale        int       // decimal
	LogicalType  string    // "decimal", "date", "timestamp-micros", "timestamp-millis"
	Nullable     bool
}

type avroField struct {
	Name string   `json:"name"`
	Type avroType `json:"type"`
	Doc  string   `json:"doc,omitempty"`
}

func (t avroType) MarshalJSON() ([]byte, error) {
	node, err := t.jsonNode()
	if err != nil {
		return nil, err
	}
	if !t.Nullable {
		return json.Marshal(node)
	}
	return json.Marshal([2]any{"null", node})
}

func (t avroType) jsonNode() (any, error) {
	switch t.Name {
	case "record":
		return map[string]any{"type": "record", "name": t.RecordName, "fields": t.Fields}, nil
	case "array":
		return map[string]any{"type": "array", "items": t.Items}, nil
	case "map":
		return map[string]any{"type": "map", "values": t.Values}, nil
	case "fixed":
		if t.LogicalType == "decimal" {
			return map[string]any{"type": "fixed", "name": t.RecordName, "size": t.Size, "logicalType": "decimal", "precision": t.Precision, "scale": t.Scale}, nil
		}
		return map[string]any{"type": "fixed", "name": t.RecordName, "size": t.Size}, nil
	case "bytes":
		if t.LogicalType == "decimal" {
			return map[string]any{"type": "bytes", "logicalType": "decimal", "precision": t.Precision, "scale": t.Scale}, nil
		}
		return "bytes", nil
	case "int":
		if t.LogicalType == "date" {
			return map[string]any{"type": "int", "logicalType": "date"}, nil
		}
		return "int", nil
	case "long":
		if t.LogicalType != "" {
			return map[string]any{"type": "long", "logicalType": t.LogicalType}, nil
		}
		return "long", nil
	default:
		return t.Name, nil
	}
}

func (t *avroType) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		t.Name = bare
		return nil
	}
	var union []json.RawMessage
	if err := json.Unmarshal(data, &union); err == nil {
		if len(union) != 2 {
			return model.New(model.ErrUnsupportedType, "unsupported avro union arity (only nullable unions are supported)")
		}
		var first string
		if err := json.Unmarshal(union[0], &first); err == nil && first == "null" {
			var inner avroType
			if err := json.Unmarshal(union[1], &inner); err != nil {
				return err
			}
			inner.Nullable = true
			*t = inner
			return nil
		}
		return model.New(model.ErrUnsupportedType, "unsupported avro union shape")
	}
	var shape struct {
		Type        string          `json:"type"`
		Name        string          `json:"name"`
		Fields      []avroField     `json:"fields"`
		Items       json.RawMessage `json:"items"`
		Values      json.RawMessage `json:"values"`
		Size        int             `json:"size"`
		Precision   int             `json:"precision"`
		Scale       int             `json:"scale"`
		LogicalType string          `json:"logicalType"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	t.Name = shape.Type
	t.RecordName = shape.Name
	t.Fields = shape.Fields
	t.Size = shape.Size
	t.Precision = shape.Precision
	t.Scale = shape.Scale
	t.LogicalType = shape.LogicalType
	if len(shape.Items) > 0 {
		var items avroType
		if err := json.Unmarshal(shape.Items, &items); err != nil {
			return err
		}
		t.Items = &items
	}
	if len(shape.Values) > 0 {
		var values avroType
		if err := json.Unmarshal(shape.Values, &values); err != nil {
			return err
		}
		t.Values = &values
	}
	return nil
}

// ToAvroSchema converts the canonical model into an Avro record schema
// string, the representation Hudi stores as a table's write/table schema.
func ToAvroSchema(recordName string, schema *model.Schema) (string, error) {
	if schema == nil || schema.Kind != model.KindRecord {
		return "", model.New(model.ErrInvalidSchema, "hudi avro schema requires a RECORD root")
	}
	fields, err := toAvroFields(schema.Fields)
	if err != nil {
		return "", err
	}
	root := avroType{Name: "record", RecordName: recordName, Fields: fields}
	b, err := json.Marshal(root)
	if err != nil {
		return "", model.Wrap(model.ErrInvalidSchema, "encoding hudi avro schema", err)
	}
	if _, err := avro.Parse(string(b)); err != nil {
		return "", model.Wrap(model.ErrInvalidSchema, "hudi avro schema failed to parse", err)
	}
	return string(b), nil
}

func toAvroFields(fields []model.Field) ([]avroField, error) {
	out := make([]avroField, len(fields))
	for i, f := range fields {
		t, err := toAvroType(f.Schema)
		if err != nil {
			return nil, err
		}
		t.Nullable = f.Nullable
		out[i] = avroField{Name: f.Name, Type: t, Doc: f.Schema.Comment}
	}
	return out, nil
}

func toAvroType(s *model.Schema) (avroType, error) {
	switch s.Kind {
	case model.KindEnum, model.KindString:
		return avroType{Name: "string"}, nil
	case model.KindInt:
		return avroType{Name: "int"}, nil
	case model.KindLong:
		return avroType{Name: "long"}, nil
	case model.KindFloat:
		return avroType{Name: "float"}, nil
	case model.KindDouble:
		return avroType{Name: "double"}, nil
	case model.KindBool:
		return avroType{Name: "boolean"}, nil
	case model.KindBytes:
		return avroType{Name: "bytes"}, nil
	case model.KindFixed:
		return avroType{Name: "fixed", RecordName: "fixed_value", Size: s.Metadata.FixedLength}, nil
	case model.KindDecimal:
		return avroType{Name: "bytes", LogicalType: "decimal", Precision: s.Metadata.DecimalPrecision, Scale: s.Metadata.DecimalScale}, nil
	case model.KindDate:
		return avroType{Name: "int", LogicalType: "date"}, nil
	case model.KindTimestamp, model.KindTimestampNTZ:
		logical := "timestamp-micros"
		if s.Metadata.TimestampPrecision == model.TimestampMillis {
			logical = "timestamp-millis"
		}
		return avroType{Name: "long", LogicalType: logical}, nil
	case model.KindRecord:
		fields, err := toAvroFields(s.Fields)
		if err != nil {
			return avroType{}, err
		}
		return avroType{Name: "record", RecordName: "nested_record", Fields: fields}, nil
	case model.KindArray:
		element, err := s.ArrayElement()
		if err != nil {
			return avroType{}, model.Wrap(model.ErrInvalidSchema, "invalid array schema", err)
		}
		items, err := toAvroType(element.Schema)
		if err != nil {
			return avroType{}, err
		}
		items.Nullable = element.Nullable
		return avroType{Name: "array", Items: &items}, nil
	case model.KindMap:
		_, value, err := s.MapKeyAndValue()
		if err != nil {
			return avroType{}, model.Wrap(model.ErrInvalidSchema, "invalid map schema", err)
		}
		values, err := toAvroType(value.Schema)
		if err != nil {
			return avroType{}, err
		}
		values.Nullable = value.Nullable
		return avroType{Name: "map", Values: &values}, nil
	default:
		return avroType{}, model.Newf(model.ErrUnsupportedType, "unsupported type for hudi avro schema: %s", s.Kind)
	}
}

// FromAvroSchema parses an Avro record schema string back into the
// canonical model. Avro carries no field ids, so top-level fields are given
// ids 1..n in declaration order; nested fields carry no id.
func FromAvroSchema(schemaJSON string) (*model.Schema, error) {
	var root avroType
	if err := json.Unmarshal([]byte(schemaJSON), &root); err != nil {
		return nil, model.Wrap(model.ErrInvalidSchema, "parsing hudi avro schema", err)
	}
	if root.Name != "record" {
		return nil, model.New(model.ErrInvalidSchema, "hudi avro schema requires a record root")
	}
	fields, err := fromAvroFields(root.Fields)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		id := int32(i + 1)
		fields[i].FieldID = &id
	}
	return &model.Schema{Kind: model.KindRecord, Fields: fields}, nil
}

func fromAvroFields(fields []avroField) ([]model.Field, error) {
	out := make([]model.Field, len(fields))
	for i, f := range fields {
		s, err := fromAvroType(f.Type)
		if err != nil {
			return nil, err
		}
		s.Comment = f.Doc
		out[i] = model.Field{Name: f.Name, Schema: s, Nullable: f.Type.Nullable}
	}
	return out, nil
}

func fromAvroType(t avroType) (*model.Schema, error) {
	switch t.Name {
	case "string":
		return &model.Schema{Kind: model.KindString}, nil
	case "int":
		if t.LogicalType == "date" {
			return &model.Schema{Kind: model.KindDate}, nil
		}
		return &model.Schema{Kind: model.KindInt}, nil
	case "long":
		switch t.LogicalType {
		case "timestamp-millis":
			return &model.Schema{Kind: model.KindTimestamp, Metadata: model.Metadata{TimestampPrecision: model.TimestampMillis}}, nil
		case "timestamp-micros":
			return &model.Schema{Kind: model.KindTimestamp, Metadata: model.Metadata{TimestampPrecision: model.TimestampMicros}}, nil
		default:
			return &model.Schema{Kind: model.KindLong}, nil
		}
	case "float":
		return &model.Schema{Kind: model.KindFloat}, nil
	case "double":
		return &model.Schema{Kind: model.KindDouble}, nil
	case "boolean":
		return &model.Schema{Kind: model.KindBool}, nil
	case "bytes":
		if t.LogicalType == "decimal" {
			return &model.Schema{Kind: model.KindDecimal, Metadata: model.Metadata{DecimalPrecision: t.Precision, DecimalScale: t.Scale}}, nil
		}
		return &model.Schema{Kind: model.KindBytes}, nil
	case "fixed":
		return &model.Schema{Kind: model.KindFixed, Metadata: model.Metadata{FixedLength: t.Size}}, nil
	case "record":
		fields, err := fromAvroFields(t.Fields)
		if err != nil {
			return nil, err
		}
		return &model.Schema{Kind: model.KindRecord, Fields: fields}, nil
	case "array":
		element, err := fromAvroType(*t.Items)
		if err != nil {
			return nil, err
		}
		return model.NewArraySchema(t.Items.Nullable, model.Field{Schema: element}), nil
	case "map":
		value, err := fromAvroType(*t.Values)
		if err != nil {
			return nil, err
		}
		return model.NewMapSchema(
			model.Field{Schema: &model.Schema{Kind: model.KindString}},
			model.Field{Schema: value, Nullable: t.Values.Nullable},
		), nil
	default:
		return nil, model.Newf(model.ErrUnsupportedType, "unsupported avro type for hudi schema: %s", t.Name)
	}
}
