package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bankteller/teller-go/internal/agent"
	"github.com/bankteller/teller-go/internal/logger"
)

// streamTokens forwards token events to the response as flushed chunks,
// dropping all tool bookkeeping, and returns the concatenated text that went
// out. An error event before the first byte returns the error with nothing
// written so the caller can still send a status code; after the first byte
// the stream simply ends. A disconnected client stops the pull; the
// generator unwinds through the request context.
func streamTokens(ctx context.Context, w http.ResponseWriter, events <-chan agent.StreamEvent, delay time.Duration) (string, error) {
	flusher, _ := w.(http.Flusher)

	var written strings.Builder
	for {
		select {
		case <-ctx.Done():
			logger.L.Info("client disconnected mid-stream")
			return written.String(), nil
		case ev, ok := <-events:
			if !ok {
				return written.String(), nil
			}
			switch ev.Kind {
			case agent.EventToken:
				if written.Len() == 0 {
					w.Header().Set("Content-Type", "text/plain; charset=utf-8")
					w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
				}
				if _, err := w.Write([]byte(ev.Text)); err != nil {
					logger.L.Warn("write to client failed", "error", err)
					return written.String(), nil
				}
				written.WriteString(ev.Text)
				if flusher != nil {
					flusher.Flush()
				}
				if delay > 0 {
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						return written.String(), nil
					}
				}
			case agent.EventDone:
				return written.String(), nil
			case agent.EventError:
				if written.Len() > 0 {
					// The status line is committed; the client sees a
					// truncated but valid stream.
					logger.L.Error("stream failed after first byte", "error", ev.Err)
					return written.String(), nil
				}
				return "", ev.Err
			}
		}
	}
}
