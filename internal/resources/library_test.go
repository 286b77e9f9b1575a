package resources

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasteikko/webclient/internal/schema"
)

func TestMapping_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		item Item
	}{
		{name: "book", item: Book{ID: "b1", Title: "Kalevala", Author: "Lönnrot", Translator: "Crawford", ActivatedChallengeIDs: []string{"c1"}, Favorite: true}},
		{name: "game", item: Game{ID: "g1", Title: "Alan Wake", Creator: "Remedy", ActivatedChallengeIDs: []string{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := mapToAPI(tt.item)
			require.NoError(t, err)

			back, err := mapFromAPI(apiItem{ID: tt.item.ItemID(), newAPIItem: wire})
			require.NoError(t, err)
			assert.Equal(t, tt.item, back)
		})
	}
}

func TestMapping_GameCreatorIsAuthor(t *testing.T) {
	wire, err := mapToAPI(Game{Title: "Control", Creator: "Remedy"})
	require.NoError(t, err)
	assert.Equal(t, KindGame, wire.Kind)
	assert.Equal(t, "Remedy", wire.Author)
	assert.Equal(t, []string{}, wire.ActivatedChallengeIDs)

	_, err = mapToAPI(nil)
	assert.Error(t, err)

	_, err = mapFromAPI(apiItem{newAPIItem: newAPIItem{Kind: "Film"}})
	assert.Error(t, err)
}

func TestLibrary_AddAndFetch(t *testing.T) {
	fake, clients := setup(t)
	ctx := context.Background()

	bookID, err := clients.Library.AddLibraryItem(ctx, Book{Title: "Seitsemän veljestä", Author: "Kivi"})
	require.NoError(t, err)
	gameID, err := clients.Library.AddLibraryItem(ctx, Game{Title: "Max Payne", Creator: "Remedy", Favorite: true})
	require.NoError(t, err)

	stored := fake.Records("library")
	require.Len(t, stored, 2)
	assert.Equal(t, "Remedy", stored[1]["author"])
	assert.NotContains(t, stored[1], "creator")

	items, err := clients.Library.FetchLibraryItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, Book{ID: bookID, Title: "Seitsemän veljestä", Author: "Kivi", ActivatedChallengeIDs: []string{}}, items[0])
	assert.Equal(t, Game{ID: gameID, Title: "Max Payne", Creator: "Remedy", ActivatedChallengeIDs: []string{}, Favorite: true}, items[1])
}

func TestLibrary_GetLibraryItem(t *testing.T) {
	fake, clients := setup(t)
	fake.SeedRaw("library", `{"kind":"Game","id":"g1","title":"Quantum Break","author":"Remedy","activatedChallengeIds":["c1"],"favorite":false}`)
	ctx := context.Background()

	item, err := clients.Library.GetLibraryItem(ctx, "g1")
	require.NoError(t, err)
	game, ok := item.(Game)
	require.True(t, ok)
	assert.Equal(t, "Remedy", game.Creator)

	missing, err := clients.Library.GetLibraryItem(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLibrary_UpdateAndDelete(t *testing.T) {
	fake, clients := setup(t)
	fake.SeedRaw("library", `{"kind":"Book","id":"b1","title":"Sinuhe","author":"Waltari","activatedChallengeIds":[],"favorite":false}`)
	ctx := context.Background()

	require.NoError(t, clients.Library.UpdateLibraryItem(ctx, Book{ID: "b1", Title: "Sinuhe", Author: "Waltari", Favorite: true}))
	assert.Equal(t, true, fake.Records("library")[0]["favorite"])

	require.NoError(t, clients.Library.DeleteItem(ctx, "b1"))
	assert.Empty(t, fake.Records("library"))
}

func TestLibrary_RejectsUnknownKind(t *testing.T) {
	fake, clients := setup(t)
	fake.SeedRaw("library", `{"kind":"Film","id":"f1","title":"Rare Exports","author":"Helander","activatedChallengeIds":[],"favorite":false}`)

	_, err := clients.Library.FetchLibraryItems(context.Background())
	assert.ErrorIs(t, err, schema.ErrViolation)
}

func TestParseItem(t *testing.T) {
	data, err := json.Marshal(Game{ID: "g1", Title: "Control", Creator: "Remedy", ActivatedChallengeIDs: []string{}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"Game"`)

	item, err := ParseItem(data)
	require.NoError(t, err)
	assert.Equal(t, Game{ID: "g1", Title: "Control", Creator: "Remedy", ActivatedChallengeIDs: []string{}}, item)

	item, err = ParseItem([]byte(`{"kind":"Book","title":"Tuntematon sotilas","author":"Linna"}`))
	require.NoError(t, err)
	assert.Equal(t, KindBook, item.Kind())

	_, err = ParseItem([]byte(`{"kind":"Film"}`))
	assert.Error(t, err)
	_, err = ParseItem([]byte(`[`))
	assert.Error(t, err)
}
