// Package resources holds the typed clients for each collection of the
// haasteikko API.
package resources

import "github.com/haasteikko/webclient/internal/api"

// Clients groups every resource client over one proxy.
type Clients struct {
	Library     *LibraryClient
	Challenges  *ChallengeClient
	Answers     *AnswerClient
	Solutions   *SolutionClient
	Preferences *PreferencesClient
}

func New(proxy *api.Proxy) *Clients {
	return &Clients{
		Library:     NewLibraryClient(proxy),
		Challenges:  NewChallengeClient(proxy),
		Answers:     NewAnswerClient(proxy),
		Solutions:   NewSolutionClient(proxy),
		Preferences: NewPreferencesClient(proxy),
	}
}
