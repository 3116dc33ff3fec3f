package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

// ErrGenerationUnavailable marks failures of the text-generation service:
// unreachable, erroring, or rate-limited. Callers surface it before streaming
// starts and swallow it after.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// ChatStream is the incremental output of one streaming completion.
// *openai.ChatCompletionStream satisfies it; tests script their own.
type ChatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// Client is the minimal subset of the OpenAI client used by this service;
// it is easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error)
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}
