// Package server exposes the chat pipeline over HTTP: one POST endpoint that
// accepts a conversation and streams the answer back token by token.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/bankteller/teller-go/internal/agent"
	"github.com/bankteller/teller-go/internal/condense"
	"github.com/bankteller/teller-go/internal/config"
	"github.com/bankteller/teller-go/internal/history"
	"github.com/bankteller/teller-go/internal/llm"
	"github.com/bankteller/teller-go/internal/logger"
	"github.com/bankteller/teller-go/internal/retrieval"
	"github.com/bankteller/teller-go/pkg/tools"
)

// processFailedBody is the opaque pre-stream failure response; no traceback
// ever reaches the client.
const processFailedBody = "Failed to process request"

// ChatMessage is one wire-level conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of the chat endpoint. The last message is the new
// user turn; prior messages form the history unless a sessionId selects
// stored history instead. previewToken overrides the generation credential
// for this request only.
type ChatRequest struct {
	Messages     []ChatMessage `json:"messages"`
	SessionID    string        `json:"sessionId"`
	PreviewToken string        `json:"previewToken"`
}

// DocumentRetriever is the slice of the retriever the server needs.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieval.Chunk, error)
}

// Server wires the chat pipeline behind an http.Handler.
type Server struct {
	cfg       config.Config
	baseLLM   llm.Client
	newClient func(cfg config.LLMConfig) llm.Client
	store     *history.Store
	registry  *tools.ToolManager
	retriever DocumentRetriever
}

// New creates a Server. newClient exists so a previewToken can mint a
// per-request client; pass llm.NewClient outside tests.
func New(cfg config.Config, baseLLM llm.Client, newClient func(config.LLMConfig) llm.Client, store *history.Store, registry *tools.ToolManager, retriever DocumentRetriever) *Server {
	return &Server{
		cfg:       cfg,
		baseLLM:   baseLLM,
		newClient: newClient,
		store:     store,
		registry:  registry,
		retriever: retriever,
	}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleChat)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}

// clientFor returns the request's generation client, honoring the preview
// token override.
func (s *Server) clientFor(previewToken string) llm.Client {
	if previewToken == "" {
		return s.baseLLM
	}
	llmCfg := s.cfg.LLM
	llmCfg.APIKey = previewToken
	return s.newClient(llmCfg)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages must not be empty", http.StatusBadRequest)
		return
	}
	latest := req.Messages[len(req.Messages)-1]
	if latest.Role != "user" || latest.Content == "" {
		http.Error(w, "last message must be a non-empty user turn", http.StatusBadRequest)
		return
	}
	question := latest.Content

	// With a sessionId the store is authoritative; without one, the inline
	// prior messages are the history and a fresh session tracks this exchange.
	sessionID := req.SessionID
	var priorMsgs []history.Message
	if sessionID != "" {
		priorMsgs = s.store.Get(sessionID)
	} else {
		sessionID = uuid.NewString()
		for _, m := range req.Messages[:len(req.Messages)-1] {
			priorMsgs = append(priorMsgs, history.Message{SessionID: sessionID, Role: m.Role, Content: m.Content})
		}
	}

	logger.L.Info("chat request", "sessionId", sessionID, "mode", s.cfg.Agent.Mode, "historyLen", len(priorMsgs))
	s.store.Append(sessionID, history.Message{Role: "user", Content: question})

	client := s.clientFor(req.PreviewToken)

	ctx := r.Context()
	events, err := s.generate(ctx, client, priorMsgs, question)
	if err != nil {
		logger.L.Error("failed before streaming", "error", err, "sessionId", sessionID)
		s.writeProcessFailed(w)
		return
	}

	delay := time.Duration(s.cfg.Agent.StreamDelayMS) * time.Millisecond
	answer, err := streamTokens(ctx, w, events, delay)
	if err != nil {
		logger.L.Error("failed to process request", "error", err, "sessionId", sessionID)
		s.writeProcessFailed(w)
		return
	}

	s.store.Append(sessionID, history.Message{Role: "assistant", Content: answer})
	logger.L.Info("chat request completed", "sessionId", sessionID, "answerLen", len(answer))
}

// generate starts answer generation in the configured mode and returns its
// event stream. Direct mode performs condensation and retrieval up front, so
// their failures surface here, before any byte is written.
func (s *Server) generate(ctx context.Context, client llm.Client, priorMsgs []history.Message, question string) (<-chan agent.StreamEvent, error) {
	if s.cfg.Agent.Mode == "direct" {
		condensed, err := condense.New(client, s.cfg.LLM.Model).Condense(ctx, priorMsgs, question)
		if err != nil {
			return nil, err
		}
		chunks, err := s.retriever.Retrieve(ctx, condensed, s.cfg.Index.TopK)
		if err != nil {
			return nil, err
		}
		generator := agent.NewGenerator(client, s.cfg.LLM.Model, s.cfg.LLM.SystemPrompt)
		return generator.Generate(ctx, retrieval.FormatChunks(chunks), condensed), nil
	}

	historyMsgs := make([]openai.ChatCompletionMessage, 0, len(priorMsgs))
	for _, m := range priorMsgs {
		historyMsgs = append(historyMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	a := agent.New(client, s.registry, s.cfg.LLM.Model, s.cfg.LLM.SystemPrompt, s.cfg.Agent.MaxTurns)
	return a.Stream(ctx, historyMsgs, question), nil
}

// writeProcessFailed sends the exact failure body with no trailing newline.
func (s *Server) writeProcessFailed(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(processFailedBody))
}
