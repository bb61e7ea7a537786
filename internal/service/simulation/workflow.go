package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danvoulez/lablab/internal/api"
	"github.com/danvoulez/lablab/internal/model/chat"
	"github.com/danvoulez/lablab/internal/model/session"
)

// maxInputLength caps a single operator request, counted in runes so
// accented input is not penalized for its UTF-8 encoding.
const maxInputLength = 4000

var (
	ErrEmptyInput   = errors.New("input is empty")
	ErrInputTooLong = errors.New("input exceeds the maximum length")
	ErrBusy         = errors.New("a request is already in flight")
)

// mutationPattern matches point-mutation tokens such as G12D.
var mutationPattern = regexp.MustCompile(`\b[A-Z]\d+[A-Z]\b`)

// EventType labels workflow events pushed to subscribers.
type EventType string

const (
	EventMessage  EventType = "message"
	EventThinking EventType = "thinking"
	EventSession  EventType = "session"
)

// Event is published whenever observable workflow state changes.
type Event struct {
	Type           EventType        `json:"type"`
	Message        *chat.Message    `json:"message,omitempty"`
	Thinking       *bool            `json:"thinking,omitempty"`
	Session        *session.Session `json:"session,omitempty"`
	Classification *Classification  `json:"classification,omitempty"`
}

// Classification mirrors the triage block returned by the chat endpoint.
type Classification struct {
	Flow       string  `json:"flow"`
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
}

type simulateRequest struct {
	Sequence string `json:"sequence"`
	Mutation string `json:"mutation,omitempty"`
}

type chatRequest struct {
	Message        string `json:"message"`
	Actor          string `json:"actor,omitempty"`
	IncludeContext bool   `json:"include_context"`
}

type chatResponse struct {
	SessionID      string         `json:"session_id"`
	Message        string         `json:"message"`
	Classification Classification `json:"classification"`
	Timestamp      string         `json:"timestamp"`
}

// Workflow drives one conversational simulation session: it owns the
// transcript, the current Session, and the thinking flag, and it is the
// only writer of all three.
type Workflow struct {
	client *api.Client
	logger *zap.Logger

	mu          sync.RWMutex
	transcript  []chat.Message
	session     *session.Session
	thinking    bool
	inFlight    bool
	subscribers map[int]chan Event
	nextSub     int
}

// NewWorkflow bootstraps an in-memory workflow for one console session.
func NewWorkflow(client *api.Client, logger *zap.Logger) *Workflow {
	return &Workflow{
		client:      client,
		logger:      logger,
		transcript:  make([]chat.Message, 0, 16),
		subscribers: make(map[int]chan Event),
	}
}

// Subscribe registers an observer of workflow events. The returned cancel
// function removes the subscription and closes the channel; calling it more
// than once is safe.
func (w *Workflow) Subscribe() (<-chan Event, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextSub
	w.nextSub++
	ch := make(chan Event, 16)
	w.subscribers[id] = ch

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if sub, ok := w.subscribers[id]; ok {
			delete(w.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Subscribers reports the number of active event subscriptions.
func (w *Workflow) Subscribers() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.subscribers)
}

// Submit runs one simulation turn: sanitize, record the user message, call
// the backend, and settle with an assistant message. A settled failure is
// reported through the transcript and returns nil; only validation and busy
// rejections return an error, and those leave the transcript untouched.
func (w *Workflow) Submit(ctx context.Context, rawText string) error {
	text, err := sanitize(rawText)
	if err != nil {
		return err
	}

	if err := w.begin(text); err != nil {
		return err
	}
	defer w.settle()

	request := simulateRequest{Sequence: text}
	if mutation := mutationPattern.FindString(text); mutation != "" {
		request.Mutation = mutation
	}

	raw, err := w.simulateWithRetry(ctx, request)
	if err != nil {
		w.logger.Warn("simulation request failed", zap.Error(err))
		w.appendAssistant(failureMessage(err), nil)
		return nil
	}

	sess, err := session.Normalize(raw)
	if err != nil {
		w.logger.Warn("simulation response failed to normalize", zap.Error(err))
		w.appendAssistant(failureMessage(err), nil)
		return nil
	}

	w.mu.Lock()
	w.session = &sess
	w.mu.Unlock()
	w.publish(Event{Type: EventSession, Session: &sess})

	summary := fmt.Sprintf("Simulation %s completed with %v%% overall confidence.", sess.SessionID, sess.Confidence.Overall)
	w.appendAssistant(summary, nil)
	return nil
}

// SendChatMessage runs a free-form chat turn against the backend agent. It
// follows the same sanitize/busy/classification contract as Submit but
// never touches the Session.
func (w *Workflow) SendChatMessage(ctx context.Context, rawText string) error {
	text, err := sanitize(rawText)
	if err != nil {
		return err
	}

	if err := w.begin(text); err != nil {
		return err
	}
	defer w.settle()

	raw, err := w.client.Call(ctx, http.MethodPost, "/api/chat", chatRequest{Message: text, IncludeContext: true})
	if err != nil {
		w.logger.Warn("chat request failed", zap.Error(err))
		w.appendAssistant(failureMessage(err), nil)
		return nil
	}

	var reply chatResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		classified := &api.Error{Kind: api.KindMalformed, Message: "chat response did not match the documented schema", Cause: err}
		w.logger.Warn("chat response failed to decode", zap.Error(classified))
		w.appendAssistant(failureMessage(classified), nil)
		return nil
	}

	w.appendAssistant(reply.Message, &reply.Classification)
	return nil
}

// Transcript returns a copy of the ordered transcript.
func (w *Workflow) Transcript() []chat.Message {
	w.mu.RLock()
	defer w.mu.RUnlock()

	copied := make([]chat.Message, len(w.transcript))
	copy(copied, w.transcript)
	return copied
}

// Session returns the current Session, or nil before the first successful
// simulation. Sessions are immutable, so sharing the pointer is safe.
func (w *Workflow) Session() *session.Session {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.session
}

// Thinking reports whether a turn is awaiting the backend.
func (w *Workflow) Thinking() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.thinking
}

// begin claims the single in-flight slot, records the user message, and
// raises the thinking flag. The user message is observable before any
// network activity starts.
func (w *Workflow) begin(text string) error {
	w.mu.Lock()
	if w.inFlight {
		w.mu.Unlock()
		return ErrBusy
	}
	w.inFlight = true
	w.thinking = true
	userMessage := newMessage(chat.RoleUser, text)
	w.transcript = append(w.transcript, userMessage)
	w.mu.Unlock()

	w.publish(Event{Type: EventMessage, Message: &userMessage})
	w.publish(thinkingEvent(true))
	return nil
}

// settle releases the in-flight slot and lowers the thinking flag. It runs
// on every exit path of a turn.
func (w *Workflow) settle() {
	w.mu.Lock()
	w.thinking = false
	w.inFlight = false
	w.mu.Unlock()

	w.publish(thinkingEvent(false))
}

// simulateWithRetry retries a timed-out simulation exactly once. All other
// failures pass through untouched.
func (w *Workflow) simulateWithRetry(ctx context.Context, request simulateRequest) (json.RawMessage, error) {
	raw, err := w.client.Call(ctx, http.MethodPost, "/api/simulate_protein", request)
	if api.KindOf(err) != api.KindTimeout {
		return raw, err
	}

	w.logger.Warn("simulation timed out, retrying once", zap.Error(err))
	return w.client.Call(ctx, http.MethodPost, "/api/simulate_protein", request)
}

func (w *Workflow) appendAssistant(content string, classification *Classification) {
	message := newMessage(chat.RoleAssistant, content)

	w.mu.Lock()
	w.transcript = append(w.transcript, message)
	w.mu.Unlock()

	w.publish(Event{Type: EventMessage, Message: &message, Classification: classification})
}

// publish fans an event out to all subscribers without blocking: a slow
// subscriber misses events rather than stalling the workflow.
func (w *Workflow) publish(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, ch := range w.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func sanitize(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrEmptyInput
	}
	if utf8.RuneCountInString(text) > maxInputLength {
		return "", ErrInputTooLong
	}
	return text, nil
}

func newMessage(role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func thinkingEvent(value bool) Event {
	return Event{Type: EventThinking, Thinking: &value}
}

// failureMessage maps a classified error to the short operator-facing text
// recorded in the transcript. Raw diagnostic detail stays in the logs.
func failureMessage(err error) string {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return "The request failed unexpectedly. Check the console logs."
	}

	switch apiErr.Kind {
	case api.KindTimeout:
		return "The simulation timed out. The backend may still be working; try again in a moment."
	case api.KindNetwork:
		return "Could not reach the simulation backend. Check the connection and the configured base URL."
	case api.KindServer:
		if apiErr.HTTPStatus == http.StatusServiceUnavailable {
			return "The simulation backend is unavailable. Start the backend and try again."
		}
		return fmt.Sprintf("The backend rejected the request (HTTP %d).", apiErr.HTTPStatus)
	case api.KindMalformed:
		return "The backend answered with data the console could not read."
	}
	return "The request failed unexpectedly. Check the console logs."
}
