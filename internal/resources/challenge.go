package resources

import (
	"context"

	"github.com/haasteikko/webclient/internal/api"
)

type QuestionKind string

const (
	QuestionBoolean   QuestionKind = "Boolean"
	QuestionTextInput QuestionKind = "TextInput"
)

type ChallengeStatus string

const (
	StatusActive   ChallengeStatus = "active"
	StatusInactive ChallengeStatus = "inactive"
)

type Question struct {
	Kind                QuestionKind `json:"kind"`
	ID                  string       `json:"id"`
	Question            string       `json:"question"`
	Number              int          `json:"number"`
	QuestionClusterSize int          `json:"questionClusterSize"`
}

// NewChallenge is a challenge before the API has assigned it an id.
type NewChallenge struct {
	Name        string          `json:"name"`
	Status      ChallengeStatus `json:"status"`
	TargetMedia ItemKind        `json:"targetMedia"`
	Questions   []Question      `json:"questions"`
	Kind        string          `json:"kind"`
}

type Challenge struct {
	ID string `json:"id"`
	NewChallenge
}

type ChallengeClient struct {
	client *api.Client[Challenge, NewChallenge]
}

func NewChallengeClient(proxy *api.Proxy) *ChallengeClient {
	return &ChallengeClient{client: api.NewClient[Challenge, NewChallenge](proxy, "challenge", challengeSchemas)}
}

func (c *ChallengeClient) FetchChallenges(ctx context.Context) ([]Challenge, error) {
	return c.client.FetchEntities(ctx, nil)
}

// GetChallenge returns nil when no challenge has the id.
func (c *ChallengeClient) GetChallenge(ctx context.Context, id string) (*Challenge, error) {
	return c.client.FetchEntity(ctx, id)
}

func (c *ChallengeClient) AddChallenge(ctx context.Context, challenge NewChallenge) (string, error) {
	if challenge.Questions == nil {
		challenge.Questions = []Question{}
	}
	return c.client.AddEntity(ctx, challenge)
}

func (c *ChallengeClient) UpdateChallenge(ctx context.Context, challenge Challenge) error {
	if challenge.Questions == nil {
		challenge.Questions = []Question{}
	}
	return c.client.UpdateEntity(ctx, challenge.ID, challenge)
}
