package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/bankteller/teller-go/internal/config"
	"github.com/bankteller/teller-go/internal/history"
	"github.com/bankteller/teller-go/internal/llm"
	"github.com/bankteller/teller-go/internal/retrieval"
	"github.com/bankteller/teller-go/pkg/tools"
)

type scriptedStream struct {
	responses []openai.ChatCompletionStreamResponse
	pos       int
}

func (s *scriptedStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	if s.pos >= len(s.responses) {
		return openai.ChatCompletionStreamResponse{}, io.EOF
	}
	resp := s.responses[s.pos]
	s.pos++
	return resp, nil
}

func (s *scriptedStream) Close() error { return nil }

type mockLLM struct {
	streams []*scriptedStream
	apiKey  string
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "standalone question"}}},
	}, nil
}

func (m *mockLLM) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (llm.ChatStream, error) {
	if len(m.streams) == 0 {
		return nil, fmt.Errorf("no scripted streams left")
	}
	stream := m.streams[0]
	m.streams = m.streams[1:]
	return stream, nil
}

func (m *mockLLM) CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	panic("not used")
}

func contentStream(chunks ...string) *scriptedStream {
	var responses []openai.ChatCompletionStreamResponse
	for _, chunk := range chunks {
		responses = append(responses, openai.ChatCompletionStreamResponse{
			Choices: []openai.ChatCompletionStreamChoice{{
				Delta: openai.ChatCompletionStreamChoiceDelta{Content: chunk},
			}},
		})
	}
	return &scriptedStream{responses: responses}
}

func toolCallStream(name, args string) *scriptedStream {
	idx := 0
	return &scriptedStream{responses: []openai.ChatCompletionStreamResponse{
		{Choices: []openai.ChatCompletionStreamChoice{{
			Delta: openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{{
				Index:    &idx,
				ID:       "call_1",
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: name, Arguments: args},
			}}},
		}}},
	}}
}

type recordingTool struct {
	name   string
	output string
	calls  []string
}

func (r *recordingTool) Name() string        { return r.name }
func (r *recordingTool) Description() string { return "records calls" }
func (r *recordingTool) Run(ctx context.Context, args string) (string, error) {
	r.calls = append(r.calls, args)
	return r.output, nil
}

type stubRetriever struct {
	chunks []retrieval.Chunk
	err    error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, k int) ([]retrieval.Chunk, error) {
	return s.chunks, s.err
}

func testConfig(mode string) config.Config {
	return config.Config{
		LLM:   config.LLMConfig{Model: "gpt", APIKey: "base-key"},
		Index: config.IndexConfig{TopK: 4},
		Agent: config.AgentConfig{Mode: mode, MaxTurns: 5, StreamDelayMS: 0},
	}
}

func newTestServer(cfg config.Config, client *mockLLM, registry *tools.ToolManager, retr DocumentRetriever) (*Server, *history.Store) {
	store := history.NewStore("", 0)
	factory := func(llmCfg config.LLMConfig) llm.Client {
		client.apiKey = llmCfg.APIKey
		return client
	}
	return New(cfg, client, factory, store, registry, retr), store
}

func postChat(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// End-to-end agent-mode scenario: a tool call followed by the answer. The
// streamed body is exactly the answer text and the tool ran exactly once
// with the parsed argument.
func TestChat_AgentToolScenario(t *testing.T) {
	balance := &recordingTool{name: "get_balance", output: "42133"}
	registry := tools.NewToolManager()
	registry.RegisterTool(balance)

	client := &mockLLM{streams: []*scriptedStream{
		toolCallStream("get_balance", `{"input":"123"}`),
		contentStream("Your balance is X"),
	}}
	srv, store := newTestServer(testConfig("agent"), client, registry, &stubRetriever{})

	rec := postChat(t, srv.Handler(), `{"messages":[{"role":"user","content":"What is my balance for account 123?"}],"sessionId":"s1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Your balance is X", rec.Body.String())
	require.Equal(t, []string{"123"}, balance.calls)

	msgs := store.Get("s1")
	require.Len(t, msgs, 2)
	require.Equal(t, "user", msgs[0].Role)
	require.Equal(t, "assistant", msgs[1].Role)
	require.Equal(t, "Your balance is X", msgs[1].Content)
}

// Session history is append-only: N requests leave exactly 2N entries in
// chronological order.
func TestChat_SessionAppendOnly(t *testing.T) {
	registry := tools.NewToolManager()
	client := &mockLLM{streams: []*scriptedStream{
		contentStream("answer one"),
		contentStream("answer two"),
		contentStream("answer three"),
	}}
	srv, store := newTestServer(testConfig("agent"), client, registry, &stubRetriever{})
	handler := srv.Handler()

	for i := 1; i <= 3; i++ {
		body := fmt.Sprintf(`{"messages":[{"role":"user","content":"question %d"}],"sessionId":"s1"}`, i)
		rec := postChat(t, handler, body)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	msgs := store.Get("s1")
	require.Len(t, msgs, 6)
	require.Equal(t, "question 1", msgs[0].Content)
	require.Equal(t, "answer one", msgs[1].Content)
	require.Equal(t, "question 3", msgs[4].Content)
	require.Equal(t, "answer three", msgs[5].Content)
}

// Direct-mode happy path: condense, retrieve, generate.
func TestChat_DirectMode(t *testing.T) {
	client := &mockLLM{streams: []*scriptedStream{contentStream("Grounded ", "answer")}}
	retr := &stubRetriever{chunks: []retrieval.Chunk{{Text: "doc text"}}}
	srv, _ := newTestServer(testConfig("direct"), client, tools.NewToolManager(), retr)

	rec := postChat(t, srv.Handler(), `{"messages":[{"role":"user","content":"hello"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Grounded answer", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

// Retrieval failure before any token yields exactly 500 with the opaque body.
func TestChat_RetrievalFailureIs500(t *testing.T) {
	client := &mockLLM{}
	retr := &stubRetriever{err: retrieval.ErrUnavailable}
	srv, _ := newTestServer(testConfig("direct"), client, tools.NewToolManager(), retr)

	rec := postChat(t, srv.Handler(), `{"messages":[{"role":"user","content":"hello"}]}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Failed to process request", rec.Body.String())
}

// Generation failure before the first byte also maps to the opaque 500.
func TestChat_GenerationFailureIs500(t *testing.T) {
	client := &mockLLM{} // no scripted streams: the stream call fails
	srv, _ := newTestServer(testConfig("agent"), client, tools.NewToolManager(), &stubRetriever{})

	rec := postChat(t, srv.Handler(), `{"messages":[{"role":"user","content":"hello"}]}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Failed to process request", rec.Body.String())
}

func TestChat_MalformedRequests(t *testing.T) {
	client := &mockLLM{}
	srv, _ := newTestServer(testConfig("agent"), client, tools.NewToolManager(), &stubRetriever{})
	handler := srv.Handler()

	for name, body := range map[string]string{
		"not json":        `{"messages": [`,
		"empty messages":  `{"messages":[]}`,
		"no user turn":    `{"messages":[{"role":"assistant","content":"hi"}]}`,
		"empty content":   `{"messages":[{"role":"user","content":""}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := postChat(t, handler, body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

// A previewToken mints a per-request client carrying the override key.
func TestChat_PreviewTokenOverridesCredential(t *testing.T) {
	client := &mockLLM{streams: []*scriptedStream{contentStream("ok")}}
	srv, _ := newTestServer(testConfig("agent"), client, tools.NewToolManager(), &stubRetriever{})

	rec := postChat(t, srv.Handler(), `{"messages":[{"role":"user","content":"hi"}],"previewToken":"preview-key"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "preview-key", client.apiKey)
}

func TestHealthz(t *testing.T) {
	client := &mockLLM{}
	srv, _ := newTestServer(testConfig("agent"), client, tools.NewToolManager(), &stubRetriever{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
