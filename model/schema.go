package model

import "strings"

// Kind is the canonical type tag for a schema node.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
	KindBytes
	KindFixed
	KindDecimal
	KindDate
	KindTimestamp    // instant, UTC-normalized
	KindTimestampNTZ // local/naive, no timezone adjustment
	KindEnum
	KindRecord
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "BOOL"
	case KindInt:
		return "INT"
	case KindLong:
		return "LONG"
	case KindFloat:
		return "FLOAT"
	case KindDouble:
		return "DOUBLE"
	case KindString:
		return "STRING"
	case KindBytes:
		return "BYTES"
	case KindFixed:
		return "FIXED"
	case KindDecimal:
		return "DECIMAL"
	case KindDate:
		return "DATE"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindTimestampNTZ:
		return "TIMESTAMP_NTZ"
	case KindEnum:
		return "ENUM"
	case KindRecord:
		return "RECORD"
	case KindArray:
		return "ARRAY"
	case KindMap:
		return "MAP"
	default:
		return "INVALID"
	}
}

// TimestampPrecision distinguishes microsecond from millisecond timestamp
// storage; absence defaults to TimestampMicros.
type TimestampPrecision int

const (
	TimestampMicros TimestampPrecision = iota
	TimestampMillis
)

// Metadata carries the logical-type annotations that don't fit in Kind
// alone: decimal precision/scale, fixed-width byte length, timestamp
// precision. Zero value means "not applicable to this node".
type Metadata struct {
	DecimalPrecision   int
	DecimalScale       int
	FixedLength        int
	TimestampPrecision TimestampPrecision
}

// Synthesized path segment names used for composite children, per the
// canonical model's uniform path-lookup rule: an array element is reached
// via "array_field.element", a map entry via "map_field.key_value.key" or
// "map_field.key_value.value".
const (
	ArrayElementSegment = "element"
	MapKeyValueSegment  = "key_value"
	MapKeySegment       = "key"
	MapValueSegment     = "value"
)

// Schema is a node in the canonical schema tree: either a primitive leaf or
// a composite (RECORD/ARRAY/MAP) with Fields. Composite kinds are
// represented uniformly as a RECORD-shaped Fields list so that a single
// path-lookup algorithm handles all three: ARRAY has one field named
// "element"; MAP has one field named "key_value" whose own Schema is a
// two-field RECORD ("key", "value").
type Schema struct {
	Kind     Kind
	Comment  string
	Metadata Metadata
	Fields   []Field
}

// Field is one member of a RECORD-shaped Schema (including the synthetic
// RECORD/ARRAY/MAP wrapper fields above). FieldID is nil when the source
// format does not carry persistent field identity (e.g. Delta before
// canonicalization assigns one).
type Field struct {
	Name     string
	FieldID  *int32
	Schema   *Schema
	Nullable bool
	Default  any
}

// NewArraySchema builds a composite ARRAY schema wrapping element; nullable
// sets whether the element may be null.
func NewArraySchema(nullable bool, element Field) *Schema {
	element.Name = ArrayElementSegment
	element.Nullable = nullable
	return &Schema{Kind: KindArray, Fields: []Field{element}}
}

// NewMapSchema builds a composite MAP schema wrapping key and value under
// the synthetic "key_value" grouping field.
func NewMapSchema(key, value Field) *Schema {
	key.Name = MapKeySegment
	value.Name = MapValueSegment
	kv := &Schema{Kind: KindRecord, Fields: []Field{key, value}}
	return &Schema{Kind: KindMap, Fields: []Field{{Name: MapKeyValueSegment, Schema: kv, Nullable: false}}}
}

// MapKeyValue returns the synthetic "key_value" record field of a MAP
// schema, or false if s is not a well-formed MAP.
func (s *Schema) MapKeyValue() (Field, bool) {
	if s == nil || s.Kind != KindMap || len(s.Fields) != 1 || s.Fields[0].Name != MapKeyValueSegment {
		return Field{}, false
	}
	return s.Fields[0], true
}

// MapKeyAndValue returns the key and value fields of a well-formed MAP
// schema. Returns an InvalidSchema error if the map doesn't carry exactly
// a key and a value child.
func (s *Schema) MapKeyAndValue() (key, value Field, err error) {
	kv, ok := s.MapKeyValue()
	if !ok || kv.Schema == nil || len(kv.Schema.Fields) != 2 {
		return Field{}, Field{}, New(ErrInvalidSchema, "map schema without exactly key and value children")
	}
	var k, v *Field
	for i := range kv.Schema.Fields {
		f := kv.Schema.Fields[i]
		switch f.Name {
		case MapKeySegment:
			k = &kv.Schema.Fields[i]
		case MapValueSegment:
			v = &kv.Schema.Fields[i]
		}
	}
	if k == nil || v == nil {
		return Field{}, Field{}, New(ErrInvalidSchema, "map schema without exactly key and value children")
	}
	return *k, *v, nil
}

// ArrayElement returns the element field of a well-formed ARRAY schema.
// Returns an InvalidSchema error if the array doesn't carry exactly one
// "element" child.
func (s *Schema) ArrayElement() (Field, error) {
	if s == nil || s.Kind != KindArray || len(s.Fields) != 1 || s.Fields[0].Name != ArrayElementSegment {
		return Field{}, New(ErrInvalidSchema, "array schema without element child")
	}
	return s.Fields[0], nil
}

// FieldIndex maps a persistent field id to the dotted path it resolves to
// within one schema. Built once per schema per the canonical model's design
// note: schemas are acyclic trees, field-id lookup uses an auxiliary index
// rather than back-pointers.
type FieldIndex map[int32]string

// BuildFieldIndex walks root and records the path of every field that
// carries a FieldID.
func BuildFieldIndex(root *Schema) FieldIndex {
	idx := FieldIndex{}
	var walk func(s *Schema, prefix string)
	walk = func(s *Schema, prefix string) {
		if s == nil {
			return
		}
		for _, f := range s.Fields {
			path := f.Name
			if prefix != "" {
				path = prefix + "." + f.Name
			}
			if f.FieldID != nil {
				idx[*f.FieldID] = path
			}
			walk(f.Schema, path)
		}
	}
	walk(root, "")
	return idx
}

// FieldByPath resolves a dotted path (accepting the synthesized "element"
// and "key_value.key"/"key_value.value" segments uniformly) against root
// and returns the field, or false if the path doesn't resolve.
func FieldByPath(root *Schema, path string) (Field, bool) {
	if path == "" {
		return Field{}, false
	}
	segments := strings.Split(path, ".")
	cur := root
	var field Field
	for i, seg := range segments {
		found := false
		for _, f := range cur.Fields {
			if f.Name == seg {
				field = f
				found = true
				break
			}
		}
		if !found {
			return Field{}, false
		}
		if i == len(segments)-1 {
			return field, true
		}
		cur = field.Schema
		if cur == nil {
			return Field{}, false
		}
	}
	return Field{}, false
}
