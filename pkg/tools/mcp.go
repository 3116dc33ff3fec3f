package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bankteller/teller-go/internal/config"
	"github.com/bankteller/teller-go/internal/logger"
)

// MCPCaller is the subset of an MCP client needed to invoke a tool.
type MCPCaller interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// MCPTool adapts a tool hosted on an MCP server to the registry's Tool
// interface. The string input travels as the "input" argument.
type MCPTool struct {
	caller      MCPCaller
	name        string
	description string
}

// NewMCPTool wraps a remote tool.
func NewMCPTool(caller MCPCaller, name, description string) *MCPTool {
	return &MCPTool{caller: caller, name: name, description: description}
}

// Name returns the name of the tool
func (t *MCPTool) Name() string { return t.name }

// Description returns the description of the tool
func (t *MCPTool) Description() string { return t.description }

// Run runs the tool
func (t *MCPTool) Run(ctx context.Context, args string) (string, error) {
	result, err := t.caller.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      t.name,
			Arguments: map[string]any{"input": args},
		},
	})
	if err != nil {
		return "", fmt.Errorf("mcp call %s: %w", t.name, err)
	}
	return mcpResultText(result), nil
}

// mcpResultText extracts the first text content from a tool result, falling
// back to the marshaled result.
func mcpResultText(result *mcp.CallToolResult) string {
	for _, contentItem := range result.Content {
		if textContent, ok := contentItem.(mcp.TextContent); ok {
			return textContent.Text
		}
	}
	if result.IsError {
		return "Tool execution resulted in an error without specific text."
	}
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return "Tool executed successfully, but result could not be formatted."
	}
	return string(resultBytes)
}

// RegisterMCPServers connects to the configured MCP servers and registers
// every discovered tool into the manager. Failures are logged and skipped;
// a misconfigured server never prevents startup.
func RegisterMCPServers(ctx context.Context, m *ToolManager, servers []config.MCPServerConfig) {
	for _, serverCfg := range servers {
		var mcpC *client.Client
		var err error

		switch serverCfg.Type {
		case config.ClientTypeSSE:
			var sseOpts []transport.ClientOption
			if len(serverCfg.Headers) > 0 {
				sseOpts = append(sseOpts, transport.WithHeaders(serverCfg.Headers))
			}
			mcpC, err = client.NewSSEMCPClient(serverCfg.URL, sseOpts...)
		case config.ClientTypeStreamableHTTP:
			var httpOpts []transport.StreamableHTTPCOption
			if len(serverCfg.Headers) > 0 {
				httpOpts = append(httpOpts, transport.WithHTTPHeaders(serverCfg.Headers))
			}
			mcpC, err = client.NewStreamableHttpClient(serverCfg.URL, httpOpts...)
		case config.ClientTypeStdio:
			var env []string
			for k, v := range serverCfg.Env {
				env = append(env, fmt.Sprintf("%s=%s", k, v))
			}
			mcpC, err = client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
		default:
			logger.L.Warn("unsupported MCP server type, skipping. Supported types are 'sse', 'streamable_http' or 'stdio'.", "type", serverCfg.Type, "name", serverCfg.Name)
			continue
		}
		if err != nil {
			logger.L.Error("failed to create MCP client", "name", serverCfg.Name, "error", err)
			continue
		}

		// stdio transports start internally
		if serverCfg.Type != config.ClientTypeStdio {
			if err := mcpC.Start(ctx); err != nil {
				logger.L.Error("failed to start MCP client transport", "name", serverCfg.Name, "error", err)
				if cerr := mcpC.Close(); cerr != nil {
					logger.L.Warn("MCP client close error after start failure", "error", cerr)
				}
				continue
			}
		}

		if _, err := mcpC.Initialize(ctx, mcp.InitializeRequest{
			Params: mcp.InitializeParams{Capabilities: mcp.ClientCapabilities{}},
		}); err != nil {
			logger.L.Error("failed to initialize MCP client", "name", serverCfg.Name, "error", err)
			if cerr := mcpC.Close(); cerr != nil {
				logger.L.Warn("MCP client close error after init failure", "error", cerr)
			}
			continue
		}

		serverTools, err := mcpC.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			logger.L.Warn("failed to list tools for MCP client", "name", serverCfg.Name, "error", err)
			continue
		}

		for _, mcpTool := range serverTools.Tools {
			if _, err := m.GetTool(mcpTool.Name); err == nil {
				logger.L.Warn("tool already registered, skipping MCP duplicate", "tool", mcpTool.Name, "name", serverCfg.Name)
				continue
			}
			m.RegisterTool(NewMCPTool(mcpC, mcpTool.Name, mcpTool.Description))
			logger.L.Info("registered tool from MCP server", "tool", mcpTool.Name, "name", serverCfg.Name)
		}
	}
}
