package envutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDev(t *testing.T) {
	for value, want := range map[string]bool{
		"":            false,
		"production":  false,
		"dev":         true,
		"Development": true,
	} {
		t.Setenv(EnvName, value)
		assert.Equal(t, want, IsDev(), "value %q", value)
	}
}
