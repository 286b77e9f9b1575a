package navigation

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextBinding(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	rec := &Recorder{}
	n, ok := FromContext(WithNavigator(context.Background(), rec))
	require.True(t, ok)
	assert.Same(t, rec, n)
}

func TestResponseNavigator(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/library", nil)
	nav := NewResponseNavigator(w, r)
	ctx := context.Background()

	require.NoError(t, nav.Assign(ctx, "https://auth.example.com/authorize?x=1"))
	require.NoError(t, nav.Assign(ctx, "/ignored"))
	require.NoError(t, nav.Replace(ctx, "/auth/callback"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://auth.example.com/authorize?x=1", w.Header().Get("Location"))
	assert.Equal(t, "https://auth.example.com/authorize?x=1", nav.Assigned())
	assert.Equal(t, "/auth/callback", nav.Replaced())
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	assert.Empty(t, rec.LastAssign())

	ctx := context.Background()
	_ = rec.Assign(ctx, "/a")
	_ = rec.Assign(ctx, "/b")
	_ = rec.Replace(ctx, "/c")

	assert.Equal(t, []string{"/a", "/b"}, rec.Assigns())
	assert.Equal(t, []string{"/c"}, rec.Replaces())
	assert.Equal(t, "/b", rec.LastAssign())
}

func TestBrowserNavigator_FallsBackToPrinting(t *testing.T) {
	var out bytes.Buffer
	nav := NewBrowserNavigator(&out)
	nav.command = func(ctx context.Context, target string) *exec.Cmd {
		return exec.CommandContext(ctx, "/nonexistent/opener", target)
	}

	require.NoError(t, nav.Assign(context.Background(), "https://auth.example.com/authorize"))
	assert.Contains(t, out.String(), "https://auth.example.com/authorize")
	assert.NoError(t, nav.Replace(context.Background(), "/x"))
}
