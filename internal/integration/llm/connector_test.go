package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malykhin/ragchat-backend/internal/config"
	"github.com/malykhin/ragchat-backend/internal/entity"
)

func chunkFrame(content string) string {
	return fmt.Sprintf(
		`data: {"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":%q}}]}`+"\n\n",
		content)
}

// streamServer serves an OpenAI-compatible streaming completion endpoint.
func streamServer(t *testing.T, handler http.HandlerFunc) *Connector {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewConnector(config.LLMConfig{
		BaseURL: srv.URL + "/v1",
		Model:   "test-model",
	})
}

func TestCompleteStream_DeliversDeltasAndDone(t *testing.T) {
	conn := streamServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		for _, word := range []string{"Hello", " world"} {
			fmt.Fprint(w, chunkFrame(word))
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})

	deltas, err := conn.CompleteStream(context.Background(),
		[]entity.ChatMessage{{Role: entity.MessageRoleUser, Content: "hi"}},
		entity.CompletionOptions{})
	require.NoError(t, err)

	var buf strings.Builder
	var done bool
	for d := range deltas {
		require.NoError(t, d.Err)
		if d.Done {
			done = true
			continue
		}
		buf.WriteString(d.Content)
	}

	assert.True(t, done, "stream must end with a terminal delta")
	assert.Equal(t, "Hello world", buf.String())
}

func TestCompleteStream_CancelledConsumerReleasesStream(t *testing.T) {
	conn := streamServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		// Keep producing until the client hangs up.
		for i := 0; ; i++ {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			fmt.Fprint(w, chunkFrame(fmt.Sprintf("chunk-%d ", i)))
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deltas, err := conn.CompleteStream(ctx,
		[]entity.ChatMessage{{Role: entity.MessageRoleUser, Content: "hi"}},
		entity.CompletionOptions{})
	require.NoError(t, err)

	// Take one delta, then walk away without draining the channel.
	first := <-deltas
	require.NoError(t, first.Err)
	cancel()

	// The producer goroutine must notice the cancellation on its own and
	// close the channel even though nothing is receiving.
	time.Sleep(200 * time.Millisecond)

	select {
	case _, ok := <-deltas:
		assert.False(t, ok, "channel must be closed after cancellation, not holding a pending send")
	case <-time.After(time.Second):
		t.Fatal("stream channel still open after cancellation")
	}
}
