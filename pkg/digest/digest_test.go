package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf(t *testing.T) {
	// Known SHA-256 of the empty string.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Of(nil))
}

func TestMatches(t *testing.T) {
	data := []byte("hutch")
	d := Of(data)

	assert.True(t, Matches(data, d))
	assert.False(t, Matches(data, "not-a-real-digest"))
	assert.False(t, Matches([]byte("other"), d))
}
