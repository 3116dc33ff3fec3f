package agent

// EventKind tags a StreamEvent.
type EventKind string

const (
	EventToken      EventKind = "token"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
)

// StreamEvent is one increment of answer generation. Token events carry
// user-visible text; tool events are internal bookkeeping that must never
// reach the wire; Done and Error terminate the sequence.
type StreamEvent struct {
	Kind     EventKind
	Text     string
	ToolName string
	Input    string
	Output   string
	Err      error
}
