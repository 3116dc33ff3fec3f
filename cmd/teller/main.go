package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/bankteller/teller-go/internal/config"
	"github.com/bankteller/teller-go/internal/history"
	"github.com/bankteller/teller-go/internal/llm"
	"github.com/bankteller/teller-go/internal/logger"
	"github.com/bankteller/teller-go/internal/retrieval"
	"github.com/bankteller/teller-go/internal/server"
	"github.com/bankteller/teller-go/pkg/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	llmClient := llm.NewClient(cfg.LLM)

	embed := retrieval.NewEmbeddingFunc(llmClient, cfg.Embedding.Model)
	retriever, err := retrieval.Open(cfg.Index.Path, cfg.Index.Namespace, cfg.Index.TopK, embed)
	if err != nil {
		logger.L.Error("failed to open vector index", "error", err, "path", cfg.Index.Path)
		os.Exit(1)
	}

	registry := tools.NewToolManager()
	registry.RegisterTool(&tools.BalanceTool{})
	registry.RegisterTool(&tools.StatementTool{})
	registry.RegisterTool(&tools.TransferTool{})
	registry.RegisterTool(tools.NewRetrieverTool(retriever))
	tools.RegisterMCPServers(context.Background(), registry, cfg.MCPServers)

	store := history.NewStore(cfg.History.DBPath, cfg.History.MaxSessions)

	srv := server.New(*cfg, llmClient, llm.NewClient, store, registry, retriever)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", addr, "mode", cfg.Agent.Mode)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		logger.L.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}
