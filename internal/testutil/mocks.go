package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockTokenSource hands out access tokens to the API layer.
type MockTokenSource struct {
	mock.Mock
}

func (m *MockTokenSource) AccessToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockStore is a key/value store whose failures a test can script.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockNavigator records navigation requests.
type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) Assign(ctx context.Context, target string) error {
	args := m.Called(ctx, target)
	return args.Error(0)
}

func (m *MockNavigator) Replace(ctx context.Context, target string) error {
	args := m.Called(ctx, target)
	return args.Error(0)
}
