package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/bankteller/teller-go/internal/config"
)

// NewClient creates a new OpenAI-backed client
func NewClient(cfg config.LLMConfig) Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	return &client{api: openai.NewClientWithConfig(apiConfig)}
}

type client struct {
	api *openai.Client
}

func (c *client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return c.api.CreateChatCompletion(ctx, req)
}

func (c *client) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (c *client) CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return c.api.CreateEmbeddings(ctx, req)
}
