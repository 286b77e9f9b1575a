package ioutil

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBounded(t *testing.T) {
	data, err := ReadBounded(strings.NewReader(`{"id":"b1"}`), 11)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"b1"}`, string(data))

	_, err = ReadBounded(strings.NewReader(`{"id":"b1"}`), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = ReadBounded(iotest.ErrReader(errors.New("connection reset")), 10)
	assert.EqualError(t, err, "connection reset")
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		limit int64
		want  string
	}{
		{name: "whole body", body: "upstream exploded\n", limit: 1024, want: "upstream exploded"},
		{name: "truncated", body: "upstream exploded", limit: 8, want: "upstream"},
		{name: "empty", body: "", limit: 1024, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Snippet(strings.NewReader(tt.body), tt.limit))
		})
	}

	assert.Equal(t, "<unreadable: connection reset>", Snippet(iotest.ErrReader(errors.New("connection reset")), 10))
}
