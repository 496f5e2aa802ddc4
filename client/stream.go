package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/halyard-ai/halyard/chat"
	"github.com/halyard-ai/halyard/slogger"
)

// DefaultStreamTimeout is the hard ceiling on one streamed turn, measured
// from stream start. Expiry aborts the turn like a cancellation but is not
// flagged as manually stopped, so it finalizes as an error.
const DefaultStreamTimeout = 300 * time.Second

// ErrStreamStarted is returned when Send or Regenerate is called on a
// session that already ran. A StreamSession drives exactly one turn.
var ErrStreamStarted = errors.New("stream session already started")

// StreamSessionOptions configures a StreamSession.
type StreamSessionOptions struct {
	// ConversationID of the turn. Empty means a new conversation is created
	// before streaming begins.
	ConversationID string

	// Timeout overrides DefaultStreamTimeout when positive.
	Timeout time.Duration

	// OnEvent, when set, is invoked after each semantic event has been
	// applied to the turn. It runs on the streaming goroutine; keep it fast.
	OnEvent func(event chat.Event, turn *chat.Turn)

	Logger slogger.Logger
}

// StreamSession orchestrates one streamed conversational turn end to end:
// it opens the network stream, drives decode, interpret, and accumulate, and
// finalizes the turn into a committed message.
//
// A session is single-use. At most one session may be active per
// conversation; starting a new session supersedes the previous one, whose
// Turn must no longer be consulted by callers that reuse a shared reference.
// The session does not itself serialize overlapping starts — cancel the old
// session first.
type StreamSession struct {
	client  *Client
	turn    *chat.Turn
	timeout time.Duration
	onEvent func(event chat.Event, turn *chat.Turn)
	logger  slogger.Logger

	done chan struct{}

	mu             sync.Mutex
	started        bool
	finished       bool
	manualStop     bool
	cancel         context.CancelFunc
	cancelSent     bool
	conversationID string
}

// NewStreamSession creates a session for one turn.
func (c *Client) NewStreamSession(opts StreamSessionOptions) *StreamSession {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultStreamTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = c.logger
	}
	return &StreamSession{
		client:         c,
		turn:           chat.NewTurn(opts.ConversationID),
		timeout:        timeout,
		onEvent:        opts.OnEvent,
		logger:         logger,
		done:           make(chan struct{}),
		conversationID: opts.ConversationID,
	}
}

// Done returns a channel that is closed once the session's turn has
// finalized. Watchers that translate external signals into Cancel should
// select on it so they stand down when the turn ends on its own.
func (s *StreamSession) Done() <-chan struct{} {
	return s.done
}

// Turn returns the session's turn. While the stream runs it is owned by the
// streaming goroutine; read it from OnEvent or after Send returns.
func (s *StreamSession) Turn() *chat.Turn {
	return s.turn
}

// ConversationID returns the conversation id, which may have been created or
// learned mid-stream. Safe to call from any goroutine.
func (s *StreamSession) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// setConversationID records an id created or learned mid-stream. The first
// id wins; later occurrences are ignored.
func (s *StreamSession) setConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversationID == "" {
		s.conversationID = id
	}
}

// Stopped reports whether the session was manually cancelled.
func (s *StreamSession) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manualStop
}

// chatRequest is the body of the chat POST.
type chatRequest struct {
	Message        string `json:"message,omitempty"`
	Regenerate     bool   `json:"regenerate,omitempty"`
	AfterUserIndex *int   `json:"after_user_index,omitempty"`
}

// Send streams one turn for the given user message and returns the committed
// message, which is assistant-role on success or manual stop and error-role
// on timeout, server error, or transport failure.
//
// An error is returned only for failures before streaming begins: a failed
// conversation creation, or reuse of an already-started session.
func (s *StreamSession) Send(ctx context.Context, message string) (*chat.Message, error) {
	return s.run(ctx, chatRequest{Message: message})
}

// Regenerate streams a reconstruction of the turn after the given 0-based
// count of prior user turns, instead of sending a new message. Callers
// truncate their local history to match before rendering the result.
func (s *StreamSession) Regenerate(ctx context.Context, afterUserIndex int) (*chat.Message, error) {
	return s.run(ctx, chatRequest{Regenerate: true, AfterUserIndex: &afterUserIndex})
}

// Cancel stops the in-flight turn. It is idempotent and safe to call from
// any goroutine. The server-side cancel endpoint is invoked best-effort;
// its errors are ignored. Cancelling a session whose turn already finalized
// does nothing: there is nothing left to stop, and the server must not see
// a cancel for a turn it completed.
func (s *StreamSession) Cancel() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.manualStop = true
	cancel := s.cancel
	alreadySent := s.cancelSent
	s.cancelSent = true
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if alreadySent {
		return
	}
	if conversationID := s.ConversationID(); conversationID != "" {
		go func() {
			ctx, cancelReq := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelReq()
			if err := s.client.CancelConversation(ctx, conversationID); err != nil {
				s.logger.Debug("server-side cancel failed", "conversation_id", conversationID, "error", err)
			}
		}()
	}
}

func (s *StreamSession) run(ctx context.Context, reqBody chatRequest) (*chat.Message, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, ErrStreamStarted
	}
	s.started = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()
		close(s.done)
	}()

	if s.turn.ConversationID == "" {
		id, err := s.client.CreateConversation(ctx)
		if err != nil {
			return nil, fmt.Errorf("conversation creation failed: %w", err)
		}
		s.turn.ConversationID = id
		s.setConversationID(id)
	}

	streamCtx, cancelTimeout := context.WithTimeout(ctx, s.timeout)
	defer cancelTimeout()
	streamCtx, cancel := context.WithCancel(streamCtx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	stoppedEarly := s.manualStop
	s.mu.Unlock()
	if stoppedEarly {
		cancel()
	}

	streamErr := s.stream(streamCtx, reqBody)
	return s.finalize(streamCtx, streamErr), nil
}

// serverError carries a server-reported error event out of the stream loop.
type serverError struct {
	message string
}

func (e *serverError) Error() string {
	return e.message
}

// stream opens the chat stream and drives decode, interpret, accumulate
// until the turn is done, the server reports an error or cancellation, or
// the stream ends. A nil return means the stream ended cleanly.
func (s *StreamSession) stream(ctx context.Context, reqBody chatRequest) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}
	path := fmt.Sprintf("/api/conversations/%s/chat", s.turn.ConversationID)
	req, err := s.client.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return apiErrorFromResponse(resp)
	}

	reader := chat.NewServerSentEventsReader(resp.Body)
	defer reader.Close()

	for {
		payload, ok := reader.Next()
		if !ok {
			if err := reader.Err(); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			return nil
		}
		events, err := chat.Interpret(payload)
		if err != nil {
			// One malformed record must not abort the turn.
			s.logger.Warn("skipping malformed stream record", "error", err)
			continue
		}
		for _, event := range events {
			switch e := event.(type) {
			case *chat.ErrorEvent:
				return &serverError{message: e.Message}
			case *chat.CancelledEvent:
				return nil
			case *chat.ConversationIDEvent:
				s.setConversationID(e.ID)
			}
			s.turn.Apply(event)
			if s.onEvent != nil {
				s.onEvent(event, s.turn)
			}
			if s.turn.Done {
				return nil
			}
		}
	}
}

// finalize converts the turn into its committed message per the finalization
// policy, then resets the session's transient state.
//
//  1. Clean stream end commits the turn (placeholder text if empty), even
//     when the deadline expired in the same instant.
//  2. A manual stop commits the partial turn behind a stopped marker, even
//     when nothing streamed.
//  3. A timeout or other non-manual abort commits an error message; partial
//     content is not committed.
//  4. A server-reported error commits an error message, discarding the
//     partial turn.
func (s *StreamSession) finalize(ctx context.Context, streamErr error) *chat.Message {
	defer s.turn.Reset()

	var srvErr *serverError
	if errors.As(streamErr, &srvErr) {
		return chat.NewErrorMessage(srvErr.message)
	}
	if s.Stopped() {
		return s.turn.CommitStoppedMessage()
	}
	if streamErr == nil {
		return s.turn.CommitMessage()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return chat.NewErrorMessage("chat request timed out")
	}
	return chat.NewErrorMessage(streamErr.Error())
}
