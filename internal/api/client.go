package api

import (
	"context"
	"errors"
	"net/url"

	"github.com/haasteikko/webclient/internal/schema"
)

// Client is CRUD over one resource collection. T is the stored record and
// N the payload that creates one.
type Client[T, N any] struct {
	proxy      *Proxy
	collection string
	schemas    schema.Pair
}

func NewClient[T, N any](proxy *Proxy, collection string, schemas schema.Pair) *Client[T, N] {
	return &Client[T, N]{proxy: proxy, collection: collection, schemas: schemas}
}

// FetchEntities lists the collection. One invalid record fails the call.
func (c *Client[T, N]) FetchEntities(ctx context.Context, query url.Values) ([]T, error) {
	target, err := c.proxy.Endpoint(c.collection)
	if err != nil {
		return nil, err
	}
	data, err := c.proxy.Get(ctx, target, query)
	if err != nil {
		return nil, err
	}
	return schema.DecodeList[T](c.schemas.Record, data, schema.Incoming)
}

// FetchEntity returns nil without error when the record does not exist.
func (c *Client[T, N]) FetchEntity(ctx context.Context, id string) (*T, error) {
	target, err := c.proxy.Endpoint(c.collection, id)
	if err != nil {
		return nil, err
	}
	data, err := c.proxy.Get(ctx, target, nil)
	if errors.Is(err, ErrResourceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	record, err := schema.Decode[T](c.schemas.Record, data, schema.Incoming)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

type created struct {
	ID string `json:"id"`
}

// AddEntity creates a record and returns its server-assigned id. The
// payload is validated before anything is sent.
func (c *Client[T, N]) AddEntity(ctx context.Context, payload N) (string, error) {
	body, err := schema.Encode(c.schemas.New, payload, schema.Outgoing)
	if err != nil {
		return "", err
	}
	target, err := c.proxy.Endpoint(c.collection)
	if err != nil {
		return "", err
	}
	data, err := c.proxy.Post(ctx, target, body)
	if err != nil {
		return "", err
	}

	reply, err := schema.Decode[created](schema.IDResponse, data, schema.Incoming)
	if err != nil {
		return "", err
	}
	return reply.ID, nil
}

// UpdateEntity replaces the record stored under id.
func (c *Client[T, N]) UpdateEntity(ctx context.Context, id string, payload T) error {
	body, err := schema.Encode(c.schemas.Record, payload, schema.Outgoing)
	if err != nil {
		return err
	}
	target, err := c.proxy.Endpoint(c.collection, id)
	if err != nil {
		return err
	}
	return c.proxy.Put(ctx, target, body)
}

func (c *Client[T, N]) DeleteEntity(ctx context.Context, id string) error {
	target, err := c.proxy.Endpoint(c.collection, id)
	if err != nil {
		return err
	}
	return c.proxy.Delete(ctx, target)
}
