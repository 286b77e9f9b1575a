package resources

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haasteikko/webclient/internal/api"
	"github.com/haasteikko/webclient/internal/testutil"
)

func setup(t *testing.T) (*testutil.FakeAPI, *Clients) {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	fake.Token = "tok"

	tokens := &testutil.MockTokenSource{}
	tokens.On("AccessToken", mock.Anything).Return("tok", nil)

	proxy, err := api.NewProxy(tokens, api.Options{BaseURL: fake.BaseURL()})
	require.NoError(t, err)
	return fake, New(proxy)
}
