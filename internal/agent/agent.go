// Package agent generates streamed answers, either directly from a prompt or
// through a bounded tool-calling loop driven by a finite state machine.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/bankteller/teller-go/internal/llm"
	"github.com/bankteller/teller-go/internal/logger"
	"github.com/bankteller/teller-go/pkg/tools"
)

// FSM States
type FSMState stateless.State

var (
	StateReadyToCallLLM FSMState = "ReadyToCallLLM"
	StateExecutingTools FSMState = "ExecutingTools"
	StateDone           FSMState = "Done"  // Terminal: successful completion
	StateError          FSMState = "Error" // Terminal: error state
)

// FSM Triggers
type FSMTrigger stateless.Trigger

var (
	TriggerProcessInput            FSMTrigger = "ProcessInput"
	TriggerLLMRespondedWithContent FSMTrigger = "LLMRespondedWithContent"
	TriggerLLMRequestedTools       FSMTrigger = "LLMRequestedTools"
	TriggerToolsExecutionCompleted FSMTrigger = "ToolsExecutionCompleted"
	TriggerTurnBudgetExhausted     FSMTrigger = "TurnBudgetExhausted"
	TriggerErrorOccurred           FSMTrigger = "ErrorOccurred"
)

const defaultSystemPrompt = "You are a helpful assistant, that answers questions about the banking system based on the provided chat history"

const defaultMaxTurns = 5

// Agent runs the tool-calling loop. Stateless after construction and safe
// for concurrent use; per-request state lives in the FSM context.
type Agent struct {
	llmClient    llm.Client
	registry     *tools.ToolManager
	model        string
	systemPrompt string
	maxTurns     int
}

// New creates an agent over the given client and tool registry.
func New(llmClient llm.Client, registry *tools.ToolManager, model, systemPrompt string, maxTurns int) *Agent {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &Agent{
		llmClient:    llmClient,
		registry:     registry,
		model:        model,
		systemPrompt: systemPrompt,
		maxTurns:     maxTurns,
	}
}

// fsmContext carries the per-request loop state between FSM actions.
type fsmContext struct {
	messages     []openai.ChatCompletionMessage
	pendingCalls []openai.ToolCall
	currentTurn  int
	lastError    error
}

// Stream answers the question with the full history as context, emitting
// events in generation order. The channel is closed after a terminal Done or
// Error event. The consumer cancels by cancelling ctx and dropping the
// channel; the loop notices on its next emission and unwinds.
func (a *Agent) Stream(ctx context.Context, history []openai.ChatCompletionMessage, question string) <-chan StreamEvent {
	events := make(chan StreamEvent)

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: a.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})

	go a.run(ctx, messages, events)
	return events
}

func (a *Agent) run(ctx context.Context, messages []openai.ChatCompletionMessage, events chan<- StreamEvent) {
	defer close(events)

	fsmCtx := &fsmContext{messages: messages}

	emit := func(ev StreamEvent) error {
		select {
		case events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	fsm := stateless.NewStateMachine(StateReadyToCallLLM)

	// State: ReadyToCallLLM
	// Action: stream one completion. Non-empty content deltas become token
	// events; tool-call deltas are accumulated per index.
	// Transitions:
	//   - On LLMRequestedTools -> StateExecutingTools
	//   - On LLMRespondedWithContent -> StateDone
	//   - On TurnBudgetExhausted -> StateDone (partial content stands)
	//   - On ErrorOccurred -> StateError
	fsm.Configure(StateReadyToCallLLM).
		PermitReentry(TriggerProcessInput).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.currentTurn >= a.maxTurns {
				logger.L.Warn("max interaction turns reached", "maxTurns", a.maxTurns)
				return fsm.FireCtx(ctx, TriggerTurnBudgetExhausted)
			}
			fsmCtx.currentTurn++
			logger.L.Debug("agent turn", "turn", fsmCtx.currentTurn)

			stream, err := a.llmClient.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
				Model:       a.model,
				Messages:    fsmCtx.messages,
				Tools:       a.registry.Definitions(),
				Temperature: 0,
			})
			if err != nil {
				fsmCtx.lastError = fmt.Errorf("%w: %v", llm.ErrGenerationUnavailable, err)
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			defer stream.Close()

			var content strings.Builder
			var calls []openai.ToolCall
			for {
				resp, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					fsmCtx.lastError = fmt.Errorf("%w: %v", llm.ErrGenerationUnavailable, err)
					return fsm.FireCtx(ctx, TriggerErrorOccurred)
				}
				if len(resp.Choices) == 0 {
					continue
				}
				delta := resp.Choices[0].Delta
				for _, tc := range delta.ToolCalls {
					mergeToolCallDelta(&calls, tc)
				}
				// Empty content means the model is asking for a tool to be
				// invoked, so only non-empty content is emitted.
				if delta.Content != "" {
					content.WriteString(delta.Content)
					if err := emit(StreamEvent{Kind: EventToken, Text: delta.Content}); err != nil {
						fsmCtx.lastError = err
						return fsm.FireCtx(ctx, TriggerErrorOccurred)
					}
				}
			}

			if len(calls) > 0 {
				fsmCtx.messages = append(fsmCtx.messages, openai.ChatCompletionMessage{
					Role:      openai.ChatMessageRoleAssistant,
					Content:   content.String(),
					ToolCalls: calls,
				})
				fsmCtx.pendingCalls = calls
				return fsm.FireCtx(ctx, TriggerLLMRequestedTools)
			}

			fsmCtx.messages = append(fsmCtx.messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content.String(),
			})
			return fsm.FireCtx(ctx, TriggerLLMRespondedWithContent)
		}).
		Permit(TriggerLLMRequestedTools, StateExecutingTools).
		Permit(TriggerLLMRespondedWithContent, StateDone).
		Permit(TriggerTurnBudgetExhausted, StateDone).
		Permit(TriggerErrorOccurred, StateError)

	// State: ExecutingTools
	// Action: resolve and invoke each requested tool sequentially, feeding
	// outputs back as tool messages. Unknown tools become corrective tool
	// messages rather than request failures; tool errors (the retrieval tool
	// reaching an unavailable index) are fatal.
	// Transitions:
	//   - On ToolsExecutionCompleted -> StateReadyToCallLLM
	//   - On ErrorOccurred -> StateError
	fsm.Configure(StateExecutingTools).
		OnEntry(func(ctx context.Context, args ...any) error {
			for _, toolCall := range fsmCtx.pendingCalls {
				name := toolCall.Function.Name
				input := parseToolInput(toolCall.Function.Arguments)

				if err := emit(StreamEvent{Kind: EventToolCall, ToolName: name, Input: input}); err != nil {
					fsmCtx.lastError = err
					return fsm.FireCtx(ctx, TriggerErrorOccurred)
				}

				var output string
				tool, err := a.registry.GetTool(name)
				switch {
				case errors.Is(err, tools.ErrUnknownTool):
					logger.L.Warn("model requested unregistered tool", "tool", name)
					output = fmt.Sprintf("Error: unknown tool %q. Use only the provided tools.", name)
				case err != nil:
					fsmCtx.lastError = err
					return fsm.FireCtx(ctx, TriggerErrorOccurred)
				default:
					output, err = tool.Run(ctx, input)
					if err != nil {
						fsmCtx.lastError = err
						return fsm.FireCtx(ctx, TriggerErrorOccurred)
					}
				}

				if err := emit(StreamEvent{Kind: EventToolResult, ToolName: name, Output: output}); err != nil {
					fsmCtx.lastError = err
					return fsm.FireCtx(ctx, TriggerErrorOccurred)
				}

				fsmCtx.messages = append(fsmCtx.messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    output,
					ToolCallID: toolCall.ID,
					Name:       name,
				})
			}
			fsmCtx.pendingCalls = nil
			return fsm.FireCtx(ctx, TriggerToolsExecutionCompleted)
		}).
		Permit(TriggerToolsExecutionCompleted, StateReadyToCallLLM).
		Permit(TriggerErrorOccurred, StateError)

	// Terminal states carry no actions; the driver below inspects them.
	fsm.Configure(StateDone)
	fsm.Configure(StateError).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.lastError == nil {
				fsmCtx.lastError = errors.New("agent reached error state without a specific error")
			}
			return nil
		})

	if err := fsm.FireCtx(ctx, TriggerProcessInput); err != nil {
		logger.L.Warn("fsm fire error", "error", err)
	}

	currentState, err := fsm.State(ctx)
	if err != nil {
		logger.L.Error("fsm state error", "error", err)
		currentState = StateError
		if fsmCtx.lastError == nil {
			fsmCtx.lastError = err
		}
	}

	switch currentState {
	case StateDone:
		_ = emit(StreamEvent{Kind: EventDone})
	default:
		logger.L.Error("agent loop failed", "error", fsmCtx.lastError)
		_ = emit(StreamEvent{Kind: EventError, Err: fsmCtx.lastError})
	}
}

// mergeToolCallDelta folds a streamed tool-call fragment into the
// accumulated calls, keyed by the delta's index. Argument fragments are
// concatenated.
func mergeToolCallDelta(calls *[]openai.ToolCall, delta openai.ToolCall) {
	idx := 0
	if delta.Index != nil {
		idx = *delta.Index
	}
	for len(*calls) <= idx {
		*calls = append(*calls, openai.ToolCall{})
	}
	tc := &(*calls)[idx]
	if delta.ID != "" {
		tc.ID = delta.ID
	}
	if delta.Type != "" {
		tc.Type = delta.Type
	}
	if delta.Function.Name != "" {
		tc.Function.Name += delta.Function.Name
	}
	tc.Function.Arguments += delta.Function.Arguments
}

// parseToolInput extracts the single string argument from the model's
// function-call JSON, falling back to the raw payload.
func parseToolInput(raw string) string {
	var payload struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err == nil && payload.Input != "" {
		return payload.Input
	}
	var plain string
	if err := json.Unmarshal([]byte(raw), &plain); err == nil {
		return plain
	}
	return raw
}
