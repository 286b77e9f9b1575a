package resources

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/haasteikko/webclient/internal/api"
)

// ErrAmbiguousAnswers is returned when more than one answer set exists
// for a challenge and item.
var ErrAmbiguousAnswers = errors.New("more than one answer set")

type Answer struct {
	Kind       QuestionKind `json:"kind"`
	ID         string       `json:"id"`
	QuestionID string       `json:"questionId"`
	Answered   bool         `json:"answered"`
	// Answer is "yes" or "no" for boolean questions, free text otherwise.
	Answer string `json:"answer"`
	ItemID string `json:"itemId"`
}

type NewAnswerSet struct {
	ChallengeID string   `json:"challengeId"`
	ItemID      string   `json:"itemId"`
	Answers     []Answer `json:"answers"`
}

// AnswerSet holds one item's answers to one challenge.
type AnswerSet struct {
	ID string `json:"id"`
	NewAnswerSet
}

// ItemAnswers is the answer set for a challenge and item. ID is empty
// when nothing has been answered yet.
type ItemAnswers struct {
	ID      string   `json:"id,omitempty"`
	Answers []Answer `json:"answers"`
}

type AnswerClient struct {
	client *api.Client[AnswerSet, NewAnswerSet]
}

func NewAnswerClient(proxy *api.Proxy) *AnswerClient {
	return &AnswerClient{client: api.NewClient[AnswerSet, NewAnswerSet](proxy, "answer", answerSetSchemas)}
}

func (c *AnswerClient) GetAnswer(ctx context.Context, challengeID, itemID string) (ItemAnswers, error) {
	sets, err := c.client.FetchEntities(ctx, url.Values{
		"challengeId": {challengeID},
		"itemId":      {itemID},
	})
	if err != nil {
		return ItemAnswers{}, err
	}

	switch len(sets) {
	case 0:
		return ItemAnswers{Answers: []Answer{}}, nil
	case 1:
		return ItemAnswers{ID: sets[0].ID, Answers: nonNilAnswers(sets[0].Answers)}, nil
	}
	return ItemAnswers{}, fmt.Errorf("challenge %s item %s: %w (%d)", challengeID, itemID, ErrAmbiguousAnswers, len(sets))
}

// GetChallengeAnswers returns every answer given to the challenge across
// all items.
func (c *AnswerClient) GetChallengeAnswers(ctx context.Context, challengeID string) ([]Answer, error) {
	sets, err := c.client.FetchEntities(ctx, url.Values{"challengeId": {challengeID}})
	if err != nil {
		return nil, err
	}
	answers := []Answer{}
	for _, s := range sets {
		answers = append(answers, s.Answers...)
	}
	return answers, nil
}

func (c *AnswerClient) AddAnswer(ctx context.Context, answers []Answer, challengeID, itemID string) (string, error) {
	return c.client.AddEntity(ctx, NewAnswerSet{
		ChallengeID: challengeID,
		ItemID:      itemID,
		Answers:     nonNilAnswers(answers),
	})
}

func (c *AnswerClient) UpdateAnswer(ctx context.Context, id string, answers []Answer, challengeID, itemID string) error {
	return c.client.UpdateEntity(ctx, id, AnswerSet{
		ID: id,
		NewAnswerSet: NewAnswerSet{
			ChallengeID: challengeID,
			ItemID:      itemID,
			Answers:     nonNilAnswers(answers),
		},
	})
}

func nonNilAnswers(a []Answer) []Answer {
	if a == nil {
		return []Answer{}
	}
	return a
}
