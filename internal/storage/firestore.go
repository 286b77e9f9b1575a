package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/haasteikko/webclient/internal/log"
)

var (
	_ Store   = (*FirestoreStore)(nil)
	_ Sweeper = (*FirestoreStore)(nil)
)

// FirestoreStore keeps the session in a Firestore collection, one document
// per key. Document IDs are the base64url form of the key since keys embed
// the authority URL.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

type entryDoc struct {
	Key       string     `firestore:"key"`
	Value     string     `firestore:"value"`
	ExpiresAt *time.Time `firestore:"expires_at,omitempty"`
	UpdatedAt time.Time  `firestore:"updated_at"`
}

// NewFirestoreStore creates a new Firestore storage instance
func NewFirestoreStore(ctx context.Context, projectID, database, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var (
		client *firestore.Client
		err    error
	)
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreStore{client: client, collection: collection, now: time.Now}, nil
}

func docID(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(docID(key))
}

func (s *FirestoreStore) Get(ctx context.Context, key string) (string, error) {
	snap, err := s.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s from Firestore: %w", key, err)
	}

	var entry entryDoc
	if err := snap.DataTo(&entry); err != nil {
		return "", fmt.Errorf("decoding %s: %w", key, err)
	}
	if entry.ExpiresAt != nil && !s.now().Before(*entry.ExpiresAt) {
		return "", ErrNotFound
	}
	return entry.Value, nil
}

func (s *FirestoreStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := s.now()
	entry := entryDoc{Key: key, Value: value, UpdatedAt: now}
	if exp := expiry(now, ttl); !exp.IsZero() {
		entry.ExpiresAt = &exp
	}

	if _, err := s.doc(key).Set(ctx, entry); err != nil {
		return fmt.Errorf("writing %s to Firestore: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) Remove(ctx context.Context, key string) error {
	_, err := s.doc(key).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("removing %s from Firestore: %w", key, err)
	}
	return nil
}

// Take reads and deletes inside a transaction.
func (s *FirestoreStore) Take(ctx context.Context, key string) (string, error) {
	var (
		value string
		live  bool
	)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.doc(key)
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var entry entryDoc
		if err := snap.DataTo(&entry); err != nil {
			return err
		}
		value = entry.Value
		live = entry.ExpiresAt == nil || s.now().Before(*entry.ExpiresAt)
		return tx.Delete(ref)
	})
	if status.Code(err) == codes.NotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("taking %s from Firestore: %w", key, err)
	}
	if !live {
		return "", ErrNotFound
	}
	return value, nil
}

// CleanupExpired deletes documents whose expires_at has passed. Individual
// delete failures are logged and skipped.
func (s *FirestoreStore) CleanupExpired(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.collection).
		Where("expires_at", "<=", s.now()).
		Documents(ctx)
	defer iter.Stop()

	removed := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return removed, fmt.Errorf("iterating expired documents: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			log.LogErrorWithFields("storage", "Failed to delete expired document", map[string]any{
				"doc":   snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *FirestoreStore) Close() error { return s.client.Close() }
