package resources

import (
	"context"
	"strconv"

	"github.com/haasteikko/webclient/internal/api"
)

// YearFilterAll is the library year filter that shows every year.
const YearFilterAll = "all"

type UserPreferences struct {
	LibraryYearFilter *string `json:"libraryYearFilter,omitempty"`
}

// YearFilter interprets LibraryYearFilter. ok is false when the filter is
// unset, "all" or not a year.
func (p UserPreferences) YearFilter() (year int, ok bool) {
	if p.LibraryYearFilter == nil || *p.LibraryYearFilter == YearFilterAll {
		return 0, false
	}
	year, err := strconv.Atoi(*p.LibraryYearFilter)
	if err != nil {
		return 0, false
	}
	return year, true
}

type PreferencesClient struct {
	proxy *api.Proxy
}

func NewPreferencesClient(proxy *api.Proxy) *PreferencesClient {
	return &PreferencesClient{proxy: proxy}
}

func (c *PreferencesClient) GetPreferences(ctx context.Context) (UserPreferences, error) {
	target, err := c.proxy.Endpoint("preferences")
	if err != nil {
		return UserPreferences{}, err
	}
	return api.GetJSON[UserPreferences](ctx, c.proxy, target, nil, preferencesSchema)
}

func (c *PreferencesClient) UpdatePreferences(ctx context.Context, prefs UserPreferences) error {
	target, err := c.proxy.Endpoint("preferences")
	if err != nil {
		return err
	}
	return api.PutJSON(ctx, c.proxy, target, prefs, preferencesSchema)
}
