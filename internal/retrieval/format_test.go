package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatChunks_EmptyInput(t *testing.T) {
	require.Equal(t, "", FormatChunks(nil))
	require.Equal(t, "", FormatChunks([]Chunk{}))
}

func TestFormatChunks_OrderPreservingAndPure(t *testing.T) {
	chunks := []Chunk{
		{Text: "first chunk"},
		{Text: "second chunk"},
		{Text: "third chunk"},
	}

	out := FormatChunks(chunks)

	// Each chunk appears exactly once, in input order.
	last := -1
	for _, c := range chunks {
		idx := strings.Index(out, c.Text)
		require.Greater(t, idx, last, "chunk %q out of order", c.Text)
		require.Equal(t, 1, strings.Count(out, c.Text))
		last = idx
	}
	require.Equal(t, len(chunks), strings.Count(out, "<doc>"))
	require.Equal(t, len(chunks), strings.Count(out, "</doc>"))

	// Deterministic: a second call yields identical output.
	require.Equal(t, out, FormatChunks(chunks))
}
