package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haasteikko/webclient/internal/api"
)

type ItemKind string

const (
	KindBook ItemKind = "Book"
	KindGame ItemKind = "Game"
)

// Item is a library entry: either a Book or a Game.
type Item interface {
	Kind() ItemKind
	ItemID() string
	sealed()
}

type Book struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	Author                string   `json:"author"`
	Translator            string   `json:"translator,omitempty"`
	ActivatedChallengeIDs []string `json:"activatedChallengeIds"`
	Favorite              bool     `json:"favorite"`
}

type Game struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	Creator               string   `json:"creator"`
	ActivatedChallengeIDs []string `json:"activatedChallengeIds"`
	Favorite              bool     `json:"favorite"`
}

func (Book) Kind() ItemKind   { return KindBook }
func (b Book) ItemID() string { return b.ID }
func (Book) sealed()          {}

func (Game) Kind() ItemKind   { return KindGame }
func (g Game) ItemID() string { return g.ID }
func (Game) sealed()          {}

// MarshalJSON adds the kind tag so clients can tell the variants apart.
func (b Book) MarshalJSON() ([]byte, error) {
	type plain Book
	return json.Marshal(struct {
		Kind ItemKind `json:"kind"`
		plain
	}{KindBook, plain(b)})
}

func (g Game) MarshalJSON() ([]byte, error) {
	type plain Game
	return json.Marshal(struct {
		Kind ItemKind `json:"kind"`
		plain
	}{KindGame, plain(g)})
}

// ParseItem decodes a tagged Book or Game as produced by MarshalJSON.
func ParseItem(data []byte) (Item, error) {
	var head struct {
		Kind ItemKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Kind {
	case KindBook:
		var b Book
		err := json.Unmarshal(data, &b)
		return b, err
	case KindGame:
		var g Game
		err := json.Unmarshal(data, &g)
		return g, err
	}
	return nil, fmt.Errorf("unknown library item kind %q", head.Kind)
}

// newAPIItem is the wire form shared by both kinds. Games carry their
// creator in the author field.
type newAPIItem struct {
	Kind                  ItemKind `json:"kind"`
	Title                 string   `json:"title"`
	Author                string   `json:"author"`
	Translator            string   `json:"translator,omitempty"`
	ActivatedChallengeIDs []string `json:"activatedChallengeIds"`
	Favorite              bool     `json:"favorite"`
}

type apiItem struct {
	ID string `json:"id"`
	newAPIItem
}

var errNilItem = errors.New("library item is nil")

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func mapFromAPI(item apiItem) (Item, error) {
	switch item.Kind {
	case KindBook:
		return Book{
			ID:                    item.ID,
			Title:                 item.Title,
			Author:                item.Author,
			Translator:            item.Translator,
			ActivatedChallengeIDs: nonNil(item.ActivatedChallengeIDs),
			Favorite:              item.Favorite,
		}, nil
	case KindGame:
		return Game{
			ID:                    item.ID,
			Title:                 item.Title,
			Creator:               item.Author,
			ActivatedChallengeIDs: nonNil(item.ActivatedChallengeIDs),
			Favorite:              item.Favorite,
		}, nil
	}
	return nil, fmt.Errorf("unknown library item kind %q", item.Kind)
}

func mapToAPI(item Item) (newAPIItem, error) {
	switch it := item.(type) {
	case Book:
		return newAPIItem{
			Kind:                  KindBook,
			Title:                 it.Title,
			Author:                it.Author,
			Translator:            it.Translator,
			ActivatedChallengeIDs: nonNil(it.ActivatedChallengeIDs),
			Favorite:              it.Favorite,
		}, nil
	case Game:
		return newAPIItem{
			Kind:                  KindGame,
			Title:                 it.Title,
			Author:                it.Creator,
			ActivatedChallengeIDs: nonNil(it.ActivatedChallengeIDs),
			Favorite:              it.Favorite,
		}, nil
	case nil:
		return newAPIItem{}, errNilItem
	}
	return newAPIItem{}, fmt.Errorf("unsupported library item %T", item)
}

// LibraryClient manages the user's books and games.
type LibraryClient struct {
	client *api.Client[apiItem, newAPIItem]
}

func NewLibraryClient(proxy *api.Proxy) *LibraryClient {
	return &LibraryClient{client: api.NewClient[apiItem, newAPIItem](proxy, "library", librarySchemas)}
}

func (c *LibraryClient) FetchLibraryItems(ctx context.Context) ([]Item, error) {
	records, err := c.client.FetchEntities(ctx, nil)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(records))
	for _, r := range records {
		item, err := mapFromAPI(r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// GetLibraryItem returns nil when no item has the id.
func (c *LibraryClient) GetLibraryItem(ctx context.Context, id string) (Item, error) {
	record, err := c.client.FetchEntity(ctx, id)
	if err != nil || record == nil {
		return nil, err
	}
	return mapFromAPI(*record)
}

// AddLibraryItem creates item and returns the new id. Any id on item is
// ignored.
func (c *LibraryClient) AddLibraryItem(ctx context.Context, item Item) (string, error) {
	payload, err := mapToAPI(item)
	if err != nil {
		return "", err
	}
	return c.client.AddEntity(ctx, payload)
}

func (c *LibraryClient) UpdateLibraryItem(ctx context.Context, item Item) error {
	payload, err := mapToAPI(item)
	if err != nil {
		return err
	}
	return c.client.UpdateEntity(ctx, item.ItemID(), apiItem{ID: item.ItemID(), newAPIItem: payload})
}

func (c *LibraryClient) DeleteItem(ctx context.Context, id string) error {
	return c.client.DeleteEntity(ctx, id)
}
