package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bankteller/teller-go/internal/retrieval"
	"github.com/bankteller/teller-go/pkg/tools"
)

// failingTool simulates the retrieval tool hitting an unreachable index.
type failingTool struct{}

func (f *failingTool) Name() string        { return "bank_teller_qna" }
func (f *failingTool) Description() string { return "always fails" }
func (f *failingTool) Run(ctx context.Context, args string) (string, error) {
	return "", retrieval.ErrUnavailable
}

func TestStream_ToolFailureIsFatal(t *testing.T) {
	registry := tools.NewToolManager()
	registry.RegisterTool(&failingTool{})

	mock := &mockLLM{streams: []*scriptedStream{
		toolCallStream("bank_teller_qna", `{"input":"account types"}`),
	}}
	a := New(mock, registry, "gpt", "", 5)

	events := collect(t, a.Stream(context.Background(), nil, "what account types exist?"))

	last := events[len(events)-1]
	require.Equal(t, EventError, last.Kind)
	require.ErrorIs(t, last.Err, retrieval.ErrUnavailable)
	require.Empty(t, tokenText(events))
	require.Len(t, mock.requests, 1, "no further model calls after a fatal tool failure")
}

func TestStream_CancelledConsumerUnwinds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := &mockLLM{streams: []*scriptedStream{contentStream("a", "b", "c")}}
	a := New(mock, tools.NewToolManager(), "gpt", "", 5)

	events := a.Stream(ctx, nil, "hi")
	<-events // read one event, then walk away
	cancel()

	// The channel must close; the goroutine must not hang on emission.
	for range events {
	}
}
