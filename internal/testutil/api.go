package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// RecordedRequest is what FakeAPI saw of one request.
type RecordedRequest struct {
	Method  string
	Path    string
	RawPath string
	Query   url.Values
	Header  http.Header
	Body    []byte
}

// FakeAPI is an in-memory resource API under /api. Collections support
// list (filtered by query parameters), get, create, replace and delete.
// Singleton documents such as preferences support get and replace.
type FakeAPI struct {
	Server *httptest.Server
	// Token, when set, is the only bearer token accepted.
	Token string

	mux *http.ServeMux

	mu          sync.Mutex
	collections map[string][]map[string]any
	documents   map[string]json.RawMessage
	requests    []RecordedRequest
}

func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()
	a := &FakeAPI{
		mux:         http.NewServeMux(),
		collections: make(map[string][]map[string]any),
		documents:   make(map[string]json.RawMessage),
	}
	a.mux.HandleFunc("/api/", a.serveGeneric)
	a.Server = httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(a.Server.Close)
	return a
}

// BaseURL is the API root clients are configured with.
func (a *FakeAPI) BaseURL() string {
	return a.Server.URL + "/api"
}

// Handle overrides a route, e.g. "POST /api/solution/{challengeId}".
func (a *FakeAPI) Handle(pattern string, h http.HandlerFunc) {
	a.mux.HandleFunc(pattern, h)
}

// Seed stores records in a collection as-is.
func (a *FakeAPI) Seed(collection string, records ...map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.collections[collection] = append(a.collections[collection], records...)
}

// SeedRaw stores raw JSON records, including ones a client should reject.
func (a *FakeAPI) SeedRaw(collection string, records ...string) {
	for _, r := range records {
		var m map[string]any
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			panic(err)
		}
		a.Seed(collection, m)
	}
}

// SetDocument stores a singleton document.
func (a *FakeAPI) SetDocument(name, raw string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.documents[name] = json.RawMessage(raw)
}

// Document returns a singleton document.
func (a *FakeAPI) Document(name string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return string(a.documents[name])
}

// Records returns a copy of a collection.
func (a *FakeAPI) Records(collection string) []map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.collections[collection])
}

// Requests returns every request received so far.
func (a *FakeAPI) Requests() []RecordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.requests)
}

func (a *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(strings.NewReader(string(body)))

	a.mu.Lock()
	a.requests = append(a.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		RawPath: r.URL.EscapedPath(),
		Query:   r.URL.Query(),
		Header:  r.Header.Clone(),
		Body:    body,
	})
	a.mu.Unlock()

	if a.Token != "" && r.Header.Get("Authorization") != "Bearer "+a.Token {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	a.mux.ServeHTTP(w, r)
}

func (a *FakeAPI) serveGeneric(w http.ResponseWriter, r *http.Request) {
	var segments []string
	for _, s := range strings.Split(strings.TrimPrefix(r.URL.EscapedPath(), "/api/"), "/") {
		unescaped, err := url.PathUnescape(s)
		if err != nil {
			http.Error(w, "bad path", http.StatusBadRequest)
			return
		}
		segments = append(segments, unescaped)
	}

	switch len(segments) {
	case 1:
		a.serveCollection(w, r, segments[0])
	case 2:
		a.serveRecord(w, r, segments[0], segments[1])
	default:
		http.NotFound(w, r)
	}
}

func (a *FakeAPI) serveCollection(w http.ResponseWriter, r *http.Request, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		if doc, ok := a.documents[name]; ok {
			writeRaw(w, http.StatusOK, doc)
			return
		}
		out := []map[string]any{}
		for _, rec := range a.collections[name] {
			if matchesQuery(rec, r.URL.Query()) {
				out = append(out, rec)
			}
		}
		WriteJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var rec map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		id := uuid.NewString()
		rec["id"] = id
		a.collections[name] = append(a.collections[name], rec)
		WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		a.documents[name] = json.RawMessage(body)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *FakeAPI) serveRecord(w http.ResponseWriter, r *http.Request, name, id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	records := a.collections[name]
	idx := slices.IndexFunc(records, func(rec map[string]any) bool { return rec["id"] == id })

	switch r.Method {
	case http.MethodGet:
		if idx < 0 {
			WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		WriteJSON(w, http.StatusOK, records[idx])
	case http.MethodPut:
		if idx < 0 {
			WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		var rec map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec["id"] = id
		records[idx] = rec
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if idx < 0 {
			WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		a.collections[name] = slices.Delete(records, idx, idx+1)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func matchesQuery(rec map[string]any, q url.Values) bool {
	for k := range q {
		if v, ok := rec[k].(string); !ok || v != q.Get(k) {
			return false
		}
	}
	return true
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
