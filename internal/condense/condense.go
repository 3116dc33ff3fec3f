// Package condense rewrites a follow-up question into a standalone one so
// retrieval is not confused by pronouns referring to earlier turns.
package condense

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bankteller/teller-go/internal/history"
	"github.com/bankteller/teller-go/internal/llm"
)

const condenseInstruction = "Given the following conversation and a follow up question, " +
	"rephrase the follow up question to be a standalone question. " +
	"Answer with the standalone question only, on a single line."

// Condenser produces standalone questions from chat history.
type Condenser struct {
	client llm.Client
	model  string
}

// New creates a Condenser bound to a model.
func New(client llm.Client, model string) *Condenser {
	return &Condenser{client: client, model: model}
}

// Condense returns the latest question rewritten to be self-contained. An
// empty history skips the model call and returns the question unchanged.
func (c *Condenser) Condense(ctx context.Context, msgs []history.Message, question string) (string, error) {
	if len(msgs) == 0 {
		return question, nil
	}

	var block strings.Builder
	for _, m := range msgs {
		block.WriteString(m.Role)
		block.WriteString(": ")
		block.WriteString(m.Content)
		block.WriteString("\n")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: condenseInstruction},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Chat history:\n%s\nFollow up question: %s", block.String(), question)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrGenerationUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", llm.ErrGenerationUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
