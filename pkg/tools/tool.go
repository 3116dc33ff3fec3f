package tools

import "context"

// Tool is the interface for all tools. Run receives the single string input
// extracted from the model's function call and returns a string for the
// model's scratchpad.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, args string) (string, error)
}
