package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halyard-ai/halyard/chat"
)

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeEvent writes one SSE record and flushes it to the client.
func writeEvent(t *testing.T, w http.ResponseWriter, payload string) {
	t.Helper()
	_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
	require.NoError(t, err)
	w.(http.Flusher).Flush()
}

func TestSendFullTurn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations/c-1/chat", r.URL.Path)
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		writeEvent(t, w, `{"type":"thinking"}`)
		writeEvent(t, w, `{"content":"The answer "}`)
		writeEvent(t, w, `{"content":"is 42."}`)
		writeEvent(t, w, `{"type":"tool_start","tool_name":"calc","arguments":"6*7"}`)
		writeEvent(t, w, `{"type":"tool_stream","tool_name":"calc","chunk":"42"}`)
		writeEvent(t, w, `{"type":"tool_result","tool_name":"calc","result":42}`)
		writeEvent(t, w, `{"done":true}`)
	}))
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{ConversationID: "c-1"})
	msg, err := sess.Send(context.Background(), "what is the answer?")
	require.NoError(t, err)

	require.Equal(t, chat.RoleAssistant, msg.Role)
	require.Equal(t, "The answer is 42.", msg.Content)
	require.Len(t, msg.Blocks, 2)
	tool := msg.Blocks[1].(*chat.ToolBlock)
	require.Equal(t, chat.ToolStatusCompleted, tool.Status)
	require.Equal(t, "42", tool.StreamingContent)
	require.Equal(t, float64(42), tool.Result)

	// Transient state is reset after finalization.
	require.Equal(t, "", sess.Turn().StatusLabel)
}

func TestSendCreatesConversation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"c-new"}`)
	})
	mux.HandleFunc("POST /api/conversations/c-new/chat", func(w http.ResponseWriter, r *http.Request) {
		writeEvent(t, w, `{"content":"hi"}`)
		writeEvent(t, w, `{"done":true}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{})
	msg, err := sess.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "hi", msg.Content)
	require.Equal(t, "c-new", sess.ConversationID())
}

func TestSendConversationCreationFailure(t *testing.T) {
	streamed := atomic.Bool{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		streamed.Store(true)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{})
	msg, err := sess.Send(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "conversation creation failed")
	require.Nil(t, msg)
	require.False(t, streamed.Load(), "no stream request should have been made")
}

func TestCancelCommitsStoppedMessage(t *testing.T) {
	cancelCalled := atomic.Bool{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations/c-1/chat", func(w http.ResponseWriter, r *http.Request) {
		writeEvent(t, w, `{"content":"partial text"}`)
		<-r.Context().Done()
	})
	mux.HandleFunc("POST /api/conversations/c-1/cancel", func(w http.ResponseWriter, r *http.Request) {
		cancelCalled.Store(true)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	firstDelta := make(chan struct{})
	var once sync.Once

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{
		ConversationID: "c-1",
		OnEvent: func(event chat.Event, turn *chat.Turn) {
			if _, ok := event.(*chat.TextDeltaEvent); ok {
				once.Do(func() { close(firstDelta) })
			}
		},
	})

	go func() {
		<-firstDelta
		sess.Cancel()
		sess.Cancel() // idempotent
	}()

	msg, err := sess.Send(context.Background(), "go")
	require.NoError(t, err)
	require.Equal(t, chat.RoleAssistant, msg.Role)
	require.True(t, strings.HasPrefix(msg.Content, chat.StoppedMarker))
	require.Contains(t, msg.Content, "partial text")
	require.Equal(t, chat.StoppedMarker, msg.Blocks[0].(*chat.TextBlock).Content)

	require.Eventually(t, cancelCalled.Load, 2*time.Second, 10*time.Millisecond,
		"server-side cancel endpoint should be called best-effort")
}

func TestCancelBeforeAnyOutput(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations/c-1/chat", func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	mux.HandleFunc("POST /api/conversations/c-1/cancel", func(w http.ResponseWriter, r *http.Request) {})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{ConversationID: "c-1"})

	go func() {
		time.Sleep(50 * time.Millisecond)
		sess.Cancel()
	}()

	msg, err := sess.Send(context.Background(), "go")
	require.NoError(t, err)

	// A stop with nothing streamed still commits exactly one marker message.
	require.Equal(t, chat.RoleAssistant, msg.Role)
	require.Equal(t, chat.StoppedMarker, msg.Content)
	require.Len(t, msg.Blocks, 1)
}

func TestCancelAfterCompletionIsNoOp(t *testing.T) {
	cancelCalled := atomic.Bool{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations/c-1/chat", func(w http.ResponseWriter, r *http.Request) {
		writeEvent(t, w, `{"content":"all done"}`)
		writeEvent(t, w, `{"done":true}`)
	})
	mux.HandleFunc("POST /api/conversations/c-1/cancel", func(w http.ResponseWriter, r *http.Request) {
		cancelCalled.Store(true)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{ConversationID: "c-1"})
	msg, err := sess.Send(context.Background(), "go")
	require.NoError(t, err)
	require.Equal(t, chat.RoleAssistant, msg.Role)

	select {
	case <-sess.Done():
	default:
		t.Fatal("session should report completion once Send returns")
	}

	// A late Cancel, such as a signal watcher winding down after the turn,
	// must not mark the session stopped or reach the server.
	sess.Cancel()
	require.False(t, sess.Stopped())
	require.Never(t, cancelCalled.Load, 200*time.Millisecond, 20*time.Millisecond,
		"a completed turn must not trigger a server-side cancel")
}

func TestCompletedTurnAtDeadlineCommits(t *testing.T) {
	c := New("http://localhost:0")
	sess := c.NewStreamSession(StreamSessionOptions{ConversationID: "c-1"})
	sess.turn.Apply(&chat.TextDeltaEvent{Content: "finished just in time"})
	sess.turn.Apply(&chat.DoneEvent{})

	// The deadline expired, but the stream ended cleanly first; the finished
	// turn wins over the stale deadline.
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Minute))
	defer cancel()
	msg := sess.finalize(ctx, nil)
	require.Equal(t, chat.RoleAssistant, msg.Role)
	require.Equal(t, "finished just in time", msg.Content)
}

func TestTimeoutCommitsErrorMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations/c-1/chat", func(w http.ResponseWriter, r *http.Request) {
		writeEvent(t, w, `{"content":"0123456789012345678901234567890123456789"}`)
		<-r.Context().Done()
	})
	mux.HandleFunc("POST /api/conversations/c-1/cancel", func(w http.ResponseWriter, r *http.Request) {})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{
		ConversationID: "c-1",
		Timeout:        100 * time.Millisecond,
	})
	msg, err := sess.Send(context.Background(), "go")
	require.NoError(t, err)

	// A timeout is a failure, never a partial success.
	require.Equal(t, chat.RoleError, msg.Role)
	require.Contains(t, msg.Content, "timed out")
	require.NotContains(t, msg.Content, "0123456789")
}

func TestServerErrorDiscardsPartialTurn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvent(t, w, `{"content":"some partial text"}`)
		writeEvent(t, w, `{"error":"model exploded"}`)
	}))
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{ConversationID: "c-1"})
	msg, err := sess.Send(context.Background(), "go")
	require.NoError(t, err)

	require.Equal(t, chat.RoleError, msg.Role)
	require.Equal(t, "model exploded", msg.Content)
	require.NotContains(t, msg.Content, "partial")
	require.Empty(t, msg.Blocks)
}

func TestMalformedRecordSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {definitely not json\n\n")
		w.(http.Flusher).Flush()
		writeEvent(t, w, `{"content":"ok"}`)
		writeEvent(t, w, `{"done":true}`)
	}))
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{ConversationID: "c-1"})
	msg, err := sess.Send(context.Background(), "go")
	require.NoError(t, err)
	require.Equal(t, chat.RoleAssistant, msg.Role)
	require.Equal(t, "ok", msg.Content)
}

func TestEmptyTurnCommitsPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvent(t, w, `{"done":true}`)
	}))
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{ConversationID: "c-1"})
	msg, err := sess.Send(context.Background(), "go")
	require.NoError(t, err)
	require.Equal(t, chat.RoleAssistant, msg.Role)
	require.Equal(t, chat.EmptyResponsePlaceholder, msg.Content)
}

func TestChatRequestFailureCommitsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{ConversationID: "c-1"})
	msg, err := sess.Send(context.Background(), "go")
	require.NoError(t, err)
	require.Equal(t, chat.RoleError, msg.Role)
	require.Contains(t, msg.Content, "500")
}

func TestSessionIsSingleUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvent(t, w, `{"done":true}`)
	}))
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{ConversationID: "c-1"})
	_, err := sess.Send(context.Background(), "one")
	require.NoError(t, err)

	_, err = sess.Send(context.Background(), "two")
	require.ErrorIs(t, err, ErrStreamStarted)
}

func TestRegenerateRequestBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, jsonDecode(r, &body))
		require.Equal(t, true, body["regenerate"])
		require.Equal(t, float64(2), body["after_user_index"])
		require.NotContains(t, body, "message")

		writeEvent(t, w, `{"content":"regenerated"}`)
		writeEvent(t, w, `{"done":true}`)
	}))
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	sess := c.NewStreamSession(StreamSessionOptions{ConversationID: "c-1"})
	msg, err := sess.Regenerate(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "regenerated", msg.Content)
}

func TestConversationIDLearnedMidStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvent(t, w, `{"conversation_id":"c-learned","content":"hi"}`)
		writeEvent(t, w, `{"conversation_id":"c-learned","done":true}`)
	}))
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	// The id is already known here, so repeated occurrences must not change it.
	sess := c.NewStreamSession(StreamSessionOptions{ConversationID: "c-1"})
	_, err := sess.Send(context.Background(), "go")
	require.NoError(t, err)
	require.Equal(t, "c-1", sess.ConversationID())
}
