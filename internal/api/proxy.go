// Package api reaches the remote resource API on behalf of the signed-in
// user. Every request carries a fresh bearer token and every payload is
// checked against its schema on the way out and on the way in.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/haasteikko/webclient/internal/ioutil"
	"github.com/haasteikko/webclient/internal/log"
	"github.com/haasteikko/webclient/internal/schema"
	"github.com/haasteikko/webclient/internal/urlutil"
)

const (
	defaultTimeout  = 30 * time.Second
	maxErrorBody    = 4 << 10
	maxResponseBody = 10 << 20
)

// TokenSource supplies the access token for each request. Errors are
// returned to the caller unchanged.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	// RequestsPerSecond throttles outgoing requests. Zero disables it.
	RequestsPerSecond float64
	Burst             int
}

// Proxy sends authenticated JSON requests to the resource API.
type Proxy struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
	limiter *rate.Limiter
}

func NewProxy(tokens TokenSource, opts Options) (*Proxy, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", opts.BaseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(opts.Burst, 1))
	}

	return &Proxy{
		baseURL: opts.BaseURL,
		client:  client,
		tokens:  tokens,
		limiter: limiter,
	}, nil
}

// Endpoint resolves a route under the base URL. Each id is appended as one
// escaped path segment.
func (p *Proxy) Endpoint(route string, ids ...string) (string, error) {
	target, err := urlutil.JoinPath(p.baseURL, route)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", route, err)
	}
	for _, id := range ids {
		if id == "" {
			return "", fmt.Errorf("empty identifier for %s", route)
		}
		if target, err = urlutil.AppendSegment(target, id); err != nil {
			return "", fmt.Errorf("resolving %s: %w", route, err)
		}
	}
	return target, nil
}

// Get returns the body of a successful GET.
func (p *Proxy) Get(ctx context.Context, target string, query url.Values) ([]byte, error) {
	if len(query) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return nil, err
		}
		u.RawQuery = query.Encode()
		target = u.String()
	}
	return p.do(ctx, http.MethodGet, target, nil)
}

// Post sends body and returns the response body.
func (p *Proxy) Post(ctx context.Context, target string, body []byte) ([]byte, error) {
	return p.do(ctx, http.MethodPost, target, body)
}

func (p *Proxy) Put(ctx context.Context, target string, body []byte) error {
	_, err := p.do(ctx, http.MethodPut, target, body)
	return err
}

func (p *Proxy) Delete(ctx context.Context, target string) error {
	_, err := p.do(ctx, http.MethodDelete, target, nil)
	return err
}

func (p *Proxy) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}

	token, err := p.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	log.LogTraceWithFields("api", "Request completed", map[string]any{
		"method":    method,
		"url":       target,
		"status":    resp.StatusCode,
		"requestId": requestID,
		"duration":  time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       ioutil.Snippet(resp.Body, maxErrorBody),
		}
	}

	data, err := ioutil.ReadBounded(resp.Body, maxResponseBody)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: fmt.Errorf("reading response: %w", err)}
	}
	return data, nil
}

// GetJSON fetches target and decodes it through s.
func GetJSON[T any](ctx context.Context, p *Proxy, target string, query url.Values, s *schema.Schema) (T, error) {
	data, err := p.Get(ctx, target, query)
	if err != nil {
		var zero T
		return zero, err
	}
	return schema.Decode[T](s, data, schema.Incoming)
}

// PostJSON validates body against in, sends it, and decodes the reply
// through out.
func PostJSON[T any](ctx context.Context, p *Proxy, target string, body any, in, out *schema.Schema) (T, error) {
	var zero T
	payload, err := schema.Encode(in, body, schema.Outgoing)
	if err != nil {
		return zero, err
	}
	data, err := p.Post(ctx, target, payload)
	if err != nil {
		return zero, err
	}
	return schema.Decode[T](out, data, schema.Incoming)
}

// PutJSON validates body against s and sends it.
func PutJSON(ctx context.Context, p *Proxy, target string, body any, s *schema.Schema) error {
	payload, err := schema.Encode(s, body, schema.Outgoing)
	if err != nil {
		return err
	}
	return p.Put(ctx, target, payload)
}
