package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitByBytes(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitByBytes("short", 10))

	parts := splitByBytes(strings.Repeat("ab", 5), 4)
	assert.Equal(t, []string{"abab", "abab", "ab"}, parts)

	// multi-byte runes are never split
	parts = splitByBytes("ééé", 4)
	assert.Equal(t, []string{"éé", "é"}, parts)
}

func TestTruncateByBytes(t *testing.T) {
	assert.Equal(t, "abc", truncateByBytes("abc", 5))
	assert.Equal(t, "é", truncateByBytes("éé", 3))
	assert.Equal(t, "abc", truncateByBytes("abc", 0))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", contentType("image/png; charset=binary", nil))
	assert.Equal(t, "image/png", contentType("application/octet-stream", []byte("\x89PNG\r\n\x1a\n0000")))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "logo.webp", fileName("logo.webp", "image/png"))
	assert.Equal(t, "banner.png", fileName("banner", "application/x-unknown-type"))
	assert.True(t, strings.HasPrefix(fileName("banner", "image/jpeg"), "banner."))
}
