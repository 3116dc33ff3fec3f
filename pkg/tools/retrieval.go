package tools

import (
	"context"

	"github.com/bankteller/teller-go/internal/retrieval"
)

// RetrieverTool exposes the document retriever to the model as a regular
// tool: the model sends a natural-language query and receives the formatted
// context block. Index failure propagates as an error, which the agent loop
// treats as fatal for the request.
type RetrieverTool struct {
	retriever *retrieval.Retriever
}

// NewRetrieverTool creates a new RetrieverTool
func NewRetrieverTool(retriever *retrieval.Retriever) *RetrieverTool {
	return &RetrieverTool{retriever: retriever}
}

// Name returns the name of the tool
func (t *RetrieverTool) Name() string { return "bank_teller_qna" }

// Description returns the description of the tool
func (t *RetrieverTool) Description() string {
	return "Useful when you need to answer questions about the banking system."
}

// Run runs the tool
func (t *RetrieverTool) Run(ctx context.Context, args string) (string, error) {
	chunks, err := t.retriever.Retrieve(ctx, args, 0)
	if err != nil {
		return "", err
	}
	return retrieval.FormatChunks(chunks), nil
}
