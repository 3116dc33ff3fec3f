package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/sashabaranov/go-openai"
)

// ErrUnknownTool is returned when the requested tool name is not registered.
// The agent loop treats it as recoverable and feeds it back to the model.
var ErrUnknownTool = errors.New("unknown tool")

// Every tool takes a single free-form string, mirroring the
// string-in/string-out invocation contract.
var inputSchema = json.RawMessage(`{"type":"object","properties":{"input":{"type":"string","description":"The input to the tool"}},"required":["input"]}`)

// ToolManager manages the available tools. It is populated once at startup
// and read-only afterwards, so it is safe for unsynchronized concurrent use.
type ToolManager struct {
	tools map[string]Tool
}

// NewToolManager creates a new ToolManager
func NewToolManager() *ToolManager {
	return &ToolManager{
		tools: make(map[string]Tool),
	}
}

// RegisterTool registers a new tool
func (m *ToolManager) RegisterTool(tool Tool) {
	m.tools[tool.Name()] = tool
}

// GetTool retrieves a tool by name
func (m *ToolManager) GetTool(name string) (Tool, error) {
	tool, ok := m.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return tool, nil
}

// List returns all registered tools
func (m *ToolManager) List() []Tool {
	ts := make([]Tool, 0, len(m.tools))
	for _, t := range m.tools {
		ts = append(ts, t)
	}
	return ts
}

// Definitions renders the registered tools as OpenAI function definitions,
// in stable name order.
func (m *ToolManager) Definitions() []openai.Tool {
	names := make([]string, 0, len(m.tools))
	for name := range m.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		t := m.tools[name]
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  inputSchema,
			},
		})
	}
	return defs
}
