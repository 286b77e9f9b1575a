package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thing struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags"`
	Rating   *float64 `json:"rating"`
	Favorite bool     `json:"favorite"`
}

var thingSchema = New("thing", Object(
	Required("id", UUID()),
	Required("title", NonEmptyString()),
	Required("tags", ArrayOf(String())),
	Required("rating", Nullable(Number())),
	Optional("favorite", Bool()),
))

const validThing = `{"id":"6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b","title":"Dune","tags":["scifi"],"rating":null}`

func TestDecode(t *testing.T) {
	got, err := Decode[thing](thingSchema, []byte(validThing), Incoming)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.Nil(t, got.Rating)
	assert.Equal(t, []string{"scifi"}, got.Tags)
}

func TestDecode_Violations(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantMsg string
	}{
		{name: "missing title", payload: `{"id":"6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b","tags":[],"rating":1}`, wantMsg: "title"},
		{name: "bad uuid", payload: `{"id":"nope","title":"x","tags":[],"rating":1}`, wantMsg: "/id"},
		{name: "wrong element type", payload: `{"id":"6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b","title":"x","tags":[1],"rating":1}`, wantMsg: "/tags/0"},
		{name: "not json", payload: `{`, wantMsg: "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode[thing](thingSchema, []byte(tt.payload), Incoming)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrViolation)

			var verr *ViolationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, Incoming, verr.Direction)
			assert.Equal(t, -1, verr.Index)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestDecodeList_OneBadElementFailsAll(t *testing.T) {
	payload := `[` + validThing + `,{"id":"bad","title":"x","tags":[],"rating":null}]`

	_, err := DecodeList[thing](thingSchema, []byte(payload), Incoming)
	var verr *ViolationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 1, verr.Index)

	list, err := DecodeList[thing](thingSchema, []byte(`[`+validThing+`]`), Incoming)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = DecodeList[thing](thingSchema, []byte(`{"not":"array"}`), Incoming)
	assert.ErrorIs(t, err, ErrViolation)
}

func TestEncode(t *testing.T) {
	pair := NewPair(thingSchema, "id")

	data, err := Encode(pair.New, map[string]any{"title": "Dune", "tags": []string{}, "rating": 4.5}, Outgoing)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Dune","tags":[],"rating":4.5}`, string(data))

	_, err = Encode(pair.New, map[string]any{"title": "", "tags": []string{}, "rating": nil}, Outgoing)
	assert.ErrorIs(t, err, ErrViolation)
	assert.Contains(t, err.Error(), "outgoing thing payload")
}

func TestOmit_DoesNotMutateOriginal(t *testing.T) {
	newThing := thingSchema.Omit("id")

	assert.NoError(t, newThing.Validate(map[string]any{"title": "x", "tags": []any{}, "rating": nil}))
	assert.Error(t, thingSchema.Validate(map[string]any{"title": "x", "tags": []any{}, "rating": nil}))
	assert.Contains(t, thingSchema.OpenAPI().Required, "id")
	assert.NotContains(t, newThing.OpenAPI().Required, "id")
}

func TestUnion(t *testing.T) {
	union := New("item", Union("kind",
		Object(Required("kind", Literal("Book")), Required("id", String()), Optional("translator", String())),
		Object(Required("kind", Literal("Game")), Required("id", String())),
	))

	assert.NoError(t, union.Validate(map[string]any{"kind": "Book", "id": "1"}))
	assert.NoError(t, union.Validate(map[string]any{"kind": "Game", "id": "2"}))
	assert.Error(t, union.Validate(map[string]any{"kind": "Film", "id": "3"}))
	assert.Error(t, union.Validate(map[string]any{"id": "4"}))

	withoutID := union.Omit("id")
	assert.NoError(t, withoutID.Validate(map[string]any{"kind": "Book"}))
	assert.Error(t, union.Validate(map[string]any{"kind": "Book"}))
}

func TestArrayAndIDResponse(t *testing.T) {
	list := thingSchema.Array()
	assert.Equal(t, "thing[]", list.Name())
	assert.Error(t, list.Validate(map[string]any{}))

	assert.NoError(t, IDResponse.Validate(map[string]any{"id": "abc"}))
	assert.Error(t, IDResponse.Validate(map[string]any{"id": 7}))
}
