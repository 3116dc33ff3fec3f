package agent

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/bankteller/teller-go/internal/llm"
)

const directPromptTemplate = `Use the following context to answer the question. If the context does not contain the answer, say so.

<context>
%s
</context>

Question: %s`

// Generator is the direct answer mode: one prompt embedding the retrieved
// context and the standalone question, streamed with no tool loop.
type Generator struct {
	llmClient    llm.Client
	model        string
	systemPrompt string
}

// NewGenerator creates a direct-mode generator.
func NewGenerator(llmClient llm.Client, model, systemPrompt string) *Generator {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &Generator{llmClient: llmClient, model: model, systemPrompt: systemPrompt}
}

// Generate streams the answer to question grounded in contextBlock. Events
// end with Done, or with a single Error after which nothing else is emitted.
func (g *Generator) Generate(ctx context.Context, contextBlock, question string) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		emit := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		stream, err := g.llmClient.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Temperature: 0,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: g.systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(directPromptTemplate, contextBlock, question)},
			},
		})
		if err != nil {
			emit(StreamEvent{Kind: EventError, Err: fmt.Errorf("%w: %v", llm.ErrGenerationUnavailable, err)})
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				emit(StreamEvent{Kind: EventError, Err: fmt.Errorf("%w: %v", llm.ErrGenerationUnavailable, err)})
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if text := resp.Choices[0].Delta.Content; text != "" {
				if !emit(StreamEvent{Kind: EventToken, Text: text}) {
					return
				}
			}
		}

		emit(StreamEvent{Kind: EventDone})
	}()

	return events
}
