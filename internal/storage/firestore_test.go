package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirestoreStoreConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("missing GCP project ID", func(t *testing.T) {
		_, err := NewFirestoreStore(ctx, "", "(default)", "sessions")
		assert.ErrorContains(t, err, "projectID is required")
	})

	t.Run("missing collection", func(t *testing.T) {
		_, err := NewFirestoreStore(ctx, "test-project", "(default)", "")
		assert.ErrorContains(t, err, "collection is required")
	})
}

func TestDocIDIsPathSafe(t *testing.T) {
	id := docID(UserKey("https://auth.haasteikko.eu/", "web"))
	assert.NotContains(t, id, "/")
	assert.NotEqual(t, docID("a"), docID("b"))
}
