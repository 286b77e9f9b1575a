package resources

import (
	"context"
	"net/url"

	"github.com/haasteikko/webclient/internal/api"
)

type SolutionKind string

const (
	SinglePartSolution SolutionKind = "SinglePartSolution"
	MultiPartSolution  SolutionKind = "MultiPartSolution"
)

// Solution records which library items answer a question. Absent or null
// item ids arrive as the zero value.
type Solution struct {
	Kind                  SolutionKind `json:"kind"`
	QuestionID            string       `json:"questionId"`
	SingleAnswerItemID    string       `json:"singleAnswerItemId,omitempty"`
	MultipleAnswerItemIDs []string     `json:"multipleAnswerItemIds"`
}

type solutionEnvelope struct {
	Solutions []Solution `json:"solutions"`
}

func (e solutionEnvelope) normalized() []Solution {
	out := make([]Solution, len(e.Solutions))
	for i, s := range e.Solutions {
		if s.MultipleAnswerItemIDs == nil {
			s.MultipleAnswerItemIDs = []string{}
		}
		out[i] = s
	}
	return out
}

// SolutionQuery narrows SearchSolutions. The zero value matches everything.
type SolutionQuery struct {
	ChallengeID string
}

type SolutionClient struct {
	proxy *api.Proxy
}

func NewSolutionClient(proxy *api.Proxy) *SolutionClient {
	return &SolutionClient{proxy: proxy}
}

func (c *SolutionClient) SearchSolutions(ctx context.Context, query SolutionQuery) ([]Solution, error) {
	target, err := c.proxy.Endpoint("solution")
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if query.ChallengeID != "" {
		params.Set("challengeId", query.ChallengeID)
	}

	res, err := api.GetJSON[solutionEnvelope](ctx, c.proxy, target, params, solutionsSchema)
	if err != nil {
		return nil, err
	}
	return res.normalized(), nil
}

// UpsertSolutions replaces the solutions of a challenge and returns what
// the API stored.
func (c *SolutionClient) UpsertSolutions(ctx context.Context, solutions []Solution, challengeID string) ([]Solution, error) {
	target, err := c.proxy.Endpoint("solution", challengeID)
	if err != nil {
		return nil, err
	}

	req := solutionEnvelope{Solutions: solutionEnvelope{Solutions: solutions}.normalized()}
	res, err := api.PostJSON[solutionEnvelope](ctx, c.proxy, target, req, solutionsSchema, solutionsSchema)
	if err != nil {
		return nil, err
	}
	return res.normalized(), nil
}
