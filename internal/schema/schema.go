// Package schema validates every payload crossing the resource API boundary
// against a declared shape. Values are checked in their JSON-decoded form
// before they are bound to Go types, so a payload that fails validation is
// never observed by callers.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ErrViolation matches every validation failure.
var ErrViolation = errors.New("schema violation")

// Direction tells whether a value was leaving or entering the client.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// ViolationError reports which schema rejected which payload.
type ViolationError struct {
	Schema    string
	Direction Direction
	// Index is the element position for list payloads, -1 otherwise.
	Index int
	Err   error
}

func (e *ViolationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s payload", e.Direction, e.Schema)
	if e.Index >= 0 {
		fmt.Fprintf(&b, " [%d]", e.Index)
	}
	b.WriteString(" does not match schema: ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ViolationError) Unwrap() []error { return []error{ErrViolation, e.Err} }

// Schema is an immutable named shape.
type Schema struct {
	name string
	s    *openapi3.Schema
}

// New wraps an openapi3 schema. The schema must not be mutated afterwards.
func New(name string, s *openapi3.Schema) *Schema {
	return &Schema{name: name, s: s}
}

func (s *Schema) Name() string { return s.name }

// OpenAPI exposes the underlying definition, e.g. for documentation.
func (s *Schema) OpenAPI() *openapi3.Schema { return s.s }

func conciseMessage(err *openapi3.SchemaError) string {
	if err.Origin != nil {
		return ""
	}
	path := "/" + strings.Join(err.JSONPointer(), "/")
	reason := err.Reason
	if reason == "" {
		reason = fmt.Sprintf("doesn't match %q", err.SchemaField)
	}
	return fmt.Sprintf("at %s: %s", path, reason)
}

// Validate checks a JSON-decoded value (map[string]any, []any, string,
// float64, bool or nil).
func (s *Schema) Validate(v any) error {
	return s.s.VisitJSON(v, openapi3.SetSchemaErrorMessageCustomizer(conciseMessage))
}

// Omit returns a copy without the named properties. Union branches are
// rewritten too.
func (s *Schema) Omit(props ...string) *Schema {
	return &Schema{name: s.name, s: omit(s.s, props)}
}

func omit(src *openapi3.Schema, props []string) *openapi3.Schema {
	if src == nil {
		return nil
	}
	dst := *src

	if src.Properties != nil {
		dst.Properties = make(openapi3.Schemas, len(src.Properties))
		for name, ref := range src.Properties {
			if !slices.Contains(props, name) {
				dst.Properties[name] = ref
			}
		}
	}
	if src.Required != nil {
		dst.Required = make([]string, 0, len(src.Required))
		for _, name := range src.Required {
			if !slices.Contains(props, name) {
				dst.Required = append(dst.Required, name)
			}
		}
	}
	dst.OneOf = omitRefs(src.OneOf, props)
	dst.AnyOf = omitRefs(src.AnyOf, props)
	dst.AllOf = omitRefs(src.AllOf, props)
	return &dst
}

func omitRefs(refs openapi3.SchemaRefs, props []string) openapi3.SchemaRefs {
	if refs == nil {
		return nil
	}
	out := make(openapi3.SchemaRefs, len(refs))
	for i, ref := range refs {
		out[i] = &openapi3.SchemaRef{Ref: ref.Ref, Value: omit(ref.Value, props)}
	}
	return out
}

// Array returns a schema for a list of s.
func (s *Schema) Array() *Schema {
	return &Schema{
		name: s.name + "[]",
		s:    openapi3.NewArraySchema().WithItems(s.s),
	}
}

func (s *Schema) violation(dir Direction, index int, err error) error {
	return &ViolationError{Schema: s.name, Direction: dir, Index: index, Err: err}
}

// Decode validates raw JSON and binds it to T.
func Decode[T any](s *Schema, data []byte, dir Direction) (T, error) {
	var out T
	if err := decodeInto(s, data, dir, -1, &out); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeList validates each element of a JSON array independently. One
// invalid element fails the whole list.
func DecodeList[T any](s *Schema, data []byte, dir Direction) ([]T, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, s.violation(dir, -1, fmt.Errorf("expected a JSON array: %w", err))
	}

	out := make([]T, len(raw))
	for i, item := range raw {
		if err := decodeInto(s, item, dir, i, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeInto(s *Schema, data []byte, dir Direction, index int, out any) error {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return s.violation(dir, index, fmt.Errorf("invalid JSON: %w", err))
	}
	if err := s.Validate(generic); err != nil {
		return s.violation(dir, index, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(out); err != nil {
		return s.violation(dir, index, fmt.Errorf("binding %T: %w", out, err))
	}
	return nil
}

// Encode marshals v and validates the result. The returned bytes are what
// goes on the wire.
func Encode(s *Schema, v any, dir Direction) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", s.name, err)
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("re-reading %s: %w", s.name, err)
	}
	if err := s.Validate(generic); err != nil {
		return nil, s.violation(dir, -1, err)
	}
	return data, nil
}
