package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "dev (commit: none, built: unknown)", String())

	old := Version
	Version = "v1.2.0"
	t.Cleanup(func() { Version = old })
	assert.Contains(t, String(), "v1.2.0 (commit:")
}
