package digest

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("me@gmail.com", "you@example.com", "【要約】テスト", "plain body", "<p>html body</p>"))

	assert.Contains(t, msg, "From: me@gmail.com\r\n")
	assert.Contains(t, msg, "To: you@example.com\r\n")
	assert.Contains(t, msg, "MIME-Version: 1.0\r\n")
	assert.Contains(t, msg, "multipart/alternative")

	// Non-ASCII subject must be RFC 2047 encoded, never raw.
	assert.NotContains(t, msg, "Subject: 【要約】テスト")
	assert.Contains(t, msg, "Subject: =?UTF-8?")

	// Both parts present, base64 encoded.
	assert.Contains(t, msg, base64.StdEncoding.EncodeToString([]byte("plain body")))
	assert.Contains(t, msg, base64.StdEncoding.EncodeToString([]byte("<p>html body</p>")))
	assert.True(t, strings.HasSuffix(msg, "--godigest-alt-boundary--\r\n"))
}

func TestBuildMessageSkipsEmptyHTML(t *testing.T) {
	msg := string(buildMessage("a@b.c", "d@e.f", "s", "text only", ""))
	assert.Equal(t, 1, strings.Count(msg, "Content-Type: text/plain"))
	assert.NotContains(t, msg, "text/html")
}

func TestWrapBase64(t *testing.T) {
	long := strings.Repeat("A", 200)
	wrapped := wrapBase64(long)

	for _, line := range strings.Split(wrapped, "\r\n") {
		require.LessOrEqual(t, len(line), 76)
	}
	assert.Equal(t, long, strings.ReplaceAll(wrapped, "\r\n", ""))
}

func TestWrapBase64Short(t *testing.T) {
	assert.Equal(t, "abc", wrapBase64("abc"))
}
