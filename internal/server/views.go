package server

import (
	"encoding/json"
	"io"
	"net/http"
	"slices"

	jsonwriter "github.com/haasteikko/webclient/internal/json"
	"github.com/haasteikko/webclient/internal/resources"
)

const maxRequestBody = 1 << 20

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		jsonwriter.WriteBadRequest(w, "unreadable request body")
		return nil, false
	}
	return data, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	data, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		jsonwriter.WriteBadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

type homeView struct {
	User        any                       `json:"user"`
	Preferences resources.UserPreferences `json:"preferences"`
}

func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.resources.Preferences.GetPreferences(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, homeView{User: h.sessions.Session().User, Preferences: prefs})
}

type libraryView struct {
	Items       []resources.Item          `json:"items"`
	Preferences resources.UserPreferences `json:"preferences"`
}

func (h *Handlers) Library(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.resources.Library.FetchLibraryItems(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	prefs, err := h.resources.Preferences.GetPreferences(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, libraryView{Items: items, Preferences: prefs})
}

type libraryItemView struct {
	Item       resources.Item        `json:"item"`
	Challenges []resources.Challenge `json:"challenges"`
}

func activatedChallenges(item resources.Item) []string {
	switch it := item.(type) {
	case resources.Book:
		return it.ActivatedChallengeIDs
	case resources.Game:
		return it.ActivatedChallengeIDs
	}
	return nil
}

func (h *Handlers) LibraryItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := h.resources.Library.GetLibraryItem(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil {
		jsonwriter.WriteNotFound(w, "library item not found")
		return
	}

	all, err := h.resources.Challenges.FetchChallenges(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ids := activatedChallenges(item)
	challenges := []resources.Challenge{}
	for _, c := range all {
		if slices.Contains(ids, c.ID) {
			challenges = append(challenges, c)
		}
	}
	writeJSON(w, http.StatusOK, libraryItemView{Item: item, Challenges: challenges})
}

func (h *Handlers) AddLibraryItem(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	item, err := resources.ParseItem(data)
	if err != nil {
		jsonwriter.WriteBadRequest(w, err.Error())
		return
	}
	id, err := h.resources.Library.AddLibraryItem(r.Context(), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// withID returns item addressed by id, whatever id the body carried.
func withID(item resources.Item, id string) resources.Item {
	switch it := item.(type) {
	case resources.Book:
		it.ID = id
		return it
	case resources.Game:
		it.ID = id
		return it
	}
	return item
}

func (h *Handlers) UpdateLibraryItem(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	item, err := resources.ParseItem(data)
	if err != nil {
		jsonwriter.WriteBadRequest(w, err.Error())
		return
	}
	if err := h.resources.Library.UpdateLibraryItem(r.Context(), withID(item, r.PathValue("id"))); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DeleteLibraryItem(w http.ResponseWriter, r *http.Request) {
	if err := h.resources.Library.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs resources.UserPreferences
	if !decodeBody(w, r, &prefs) {
		return
	}
	if err := h.resources.Preferences.UpdatePreferences(r.Context(), prefs); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ManageChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.resources.Challenges.FetchChallenges(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": challenges})
}

func (h *Handlers) AddChallenge(w http.ResponseWriter, r *http.Request) {
	var challenge resources.NewChallenge
	if !decodeBody(w, r, &challenge) {
		return
	}
	id, err := h.resources.Challenges.AddChallenge(r.Context(), challenge)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handlers) UpdateChallenge(w http.ResponseWriter, r *http.Request) {
	var challenge resources.Challenge
	if !decodeBody(w, r, &challenge) {
		return
	}
	challenge.ID = r.PathValue("id")
	if err := h.resources.Challenges.UpdateChallenge(r.Context(), challenge); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Challenges lists the challenges open for answering.
func (h *Handlers) Challenges(w http.ResponseWriter, r *http.Request) {
	all, err := h.resources.Challenges.FetchChallenges(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	active := []resources.Challenge{}
	for _, c := range all {
		if c.Status == resources.StatusActive {
			active = append(active, c)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": active})
}

type challengeView struct {
	Challenge resources.Challenge  `json:"challenge"`
	Answers   []resources.Answer   `json:"answers"`
	Solutions []resources.Solution `json:"solutions"`
}

func (h *Handlers) Challenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	challenge, err := h.resources.Challenges.GetChallenge(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if challenge == nil {
		jsonwriter.WriteNotFound(w, "challenge not found")
		return
	}
	answers, err := h.resources.Answers.GetChallengeAnswers(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	solutions, err := h.resources.Solutions.SearchSolutions(ctx, resources.SolutionQuery{ChallengeID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challengeView{Challenge: *challenge, Answers: answers, Solutions: solutions})
}

// SaveAnswers creates or replaces one item's answers to a challenge.
func (h *Handlers) SaveAnswers(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Answers []resources.Answer `json:"answers"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	ctx := r.Context()
	challengeID, itemID := r.PathValue("id"), r.PathValue("itemId")

	current, err := h.resources.Answers.GetAnswer(ctx, challengeID, itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := current.ID
	if id == "" {
		id, err = h.resources.Answers.AddAnswer(ctx, body.Answers, challengeID, itemID)
	} else {
		err = h.resources.Answers.UpdateAnswer(ctx, id, body.Answers, challengeID, itemID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handlers) SaveSolutions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Solutions []resources.Solution `json:"solutions"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	saved, err := h.resources.Solutions.UpsertSolutions(r.Context(), body.Solutions, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"solutions": saved})
}
