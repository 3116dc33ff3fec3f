package retrieval

import "strings"

// FormatChunks serializes retrieved chunks into a prompt-ready context block.
// Each chunk is wrapped in a <doc> delimiter, input order is preserved, and
// an empty input yields an empty string.
func FormatChunks(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		parts = append(parts, "<doc>\n"+chunk.Text+"\n</doc>")
	}
	return strings.Join(parts, "\n")
}
