package schema

import (
	"github.com/getkin/kin-openapi/openapi3"
)

const uuidPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`

// Field describes one object property.
type Field struct {
	Name     string
	Schema   *openapi3.Schema
	Optional bool
}

// Required declares a property that must be present.
func Required(name string, s *openapi3.Schema) Field {
	return Field{Name: name, Schema: s}
}

// Optional declares a property that may be absent.
func Optional(name string, s *openapi3.Schema) Field {
	return Field{Name: name, Schema: s, Optional: true}
}

// Object builds an object schema. Unknown properties are tolerated.
func Object(fields ...Field) *openapi3.Schema {
	obj := openapi3.NewObjectSchema()
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		obj.WithProperty(f.Name, f.Schema)
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	return obj.WithRequired(required)
}

func String() *openapi3.Schema { return openapi3.NewStringSchema() }

func NonEmptyString() *openapi3.Schema { return openapi3.NewStringSchema().WithMinLength(1) }

// UUID matches the canonical textual UUID form.
func UUID() *openapi3.Schema { return openapi3.NewStringSchema().WithPattern(uuidPattern) }

func Number() *openapi3.Schema { return openapi3.NewFloat64Schema() }

func Integer() *openapi3.Schema { return openapi3.NewIntegerSchema() }

func Bool() *openapi3.Schema { return openapi3.NewBoolSchema() }

// Enum restricts a string to the given literals.
func Enum(values ...string) *openapi3.Schema {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return openapi3.NewStringSchema().WithEnum(vs...)
}

// Literal is a single-valued Enum, used for union tags.
func Literal(value string) *openapi3.Schema { return Enum(value) }

func ArrayOf(item *openapi3.Schema) *openapi3.Schema {
	return openapi3.NewArraySchema().WithItems(item)
}

// Nullable marks s as accepting JSON null. s is modified and returned.
func Nullable(s *openapi3.Schema) *openapi3.Schema { return s.WithNullable() }

// Union accepts exactly one of the branches, selected by the tag property.
func Union(tag string, branches ...*openapi3.Schema) *openapi3.Schema {
	u := openapi3.NewOneOfSchema(branches...)
	u.Discriminator = &openapi3.Discriminator{PropertyName: tag}
	return u
}

// Pair is the record schema for a resource collection together with the
// schema of a not-yet-created record, which lacks the server-assigned key.
type Pair struct {
	Record *Schema
	New    *Schema
}

// NewPair derives New from record by omitting idField.
func NewPair(record *Schema, idField string) Pair {
	return Pair{Record: record, New: record.Omit(idField)}
}

// IDResponse is the body returned when a record is created.
var IDResponse = New("created", Object(Required("id", String())))
