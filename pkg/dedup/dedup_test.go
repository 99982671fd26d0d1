package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := New()
	assert.False(t, s.Seen("https://example.com/a.jpg"))
	assert.Equal(t, 0, s.Len())

	s.MarkSeen("https://example.com/a.jpg")
	s.MarkSeen("https://example.com/a.jpg")

	assert.True(t, s.Seen("https://example.com/a.jpg"))
	assert.Equal(t, 1, s.Len())

	// No canonicalization: a different query string is a different key.
	assert.False(t, s.Seen("https://example.com/a.jpg?x=1"))
}
