// Package session keeps the state of the one open conversation: the message
// sequence, the peer's profile, the typing-indicator window and the pending
// status of optimistically sent messages.
//
// At most one session is open at a time; opening a new one discards the
// previous session entirely, including results of its still-running fetches.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playerchat/internal/logger"
	"github.com/playerchat/internal/model"
)

var (
	// ErrNoSession — operation on a closed manager (no conversation open).
	ErrNoSession = errors.New("no open conversation")
	// ErrEmptyMessage — outgoing text is empty after trimming.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrSenderMismatch — inbound message routed to a session whose peer is
	// someone else; state is left untouched.
	ErrSenderMismatch = errors.New("message sender does not match open peer")
	// ErrStaleOpen — an Open was superseded by a newer Open before its
	// fetches completed; the results were discarded.
	ErrStaleOpen = errors.New("conversation open superseded")
)

// Fetcher loads the peer profile and message history.
type Fetcher interface {
	User(ctx context.Context, id int64) (model.User, error)
	Messages(ctx context.Context, userID int64) ([]model.Message, error)
}

// Bumper receives the directory side effect of every successful append.
type Bumper interface {
	Bump(peerID int64, preview string, at time.Time) bool
}

// Listener is invoked after any change to the open session, outside the lock.
type Listener func()

type Manager struct {
	fetch    Fetcher
	dir      Bumper
	selfID   int64
	listener Listener

	confirmWindow time.Duration
	now           func() time.Time

	mu          sync.Mutex
	gen         uint64
	open        bool
	peer        model.User
	messages    []model.Message
	typingUntil time.Time
}

func NewManager(fetch Fetcher, dir Bumper, selfID int64, confirmWindow time.Duration) *Manager {
	if confirmWindow <= 0 {
		confirmWindow = 30 * time.Second
	}
	return &Manager{
		fetch:         fetch,
		dir:           dir,
		selfID:        selfID,
		confirmWindow: confirmWindow,
		now:           time.Now,
	}
}

// SetListener registers the change callback. Must be called before the
// manager is shared between goroutines.
func (m *Manager) SetListener(l Listener) { m.listener = l }

// SetNow replaces the clock; tests only.
func (m *Manager) SetNow(now func() time.Time) { m.now = now }

// Open discards the current session and fetches the peer's profile and the
// message history concurrently. Both fetches must succeed; a partial result
// never becomes a session. Results arriving after a newer Open are dropped
// and reported as ErrStaleOpen.
func (m *Manager) Open(ctx context.Context, peerID int64) error {
	defer logger.DeferLogDuration("session.Open", time.Now())()

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.open = false
	m.messages = nil
	m.typingUntil = time.Time{}
	m.mu.Unlock()
	m.notify()

	type userRes struct {
		user model.User
		err  error
	}
	type histRes struct {
		msgs []model.Message
		err  error
	}
	userCh := make(chan userRes, 1)
	histCh := make(chan histRes, 1)
	go func() {
		u, err := m.fetch.User(ctx, peerID)
		userCh <- userRes{user: u, err: err}
	}()
	go func() {
		msgs, err := m.fetch.Messages(ctx, peerID)
		histCh <- histRes{msgs: msgs, err: err}
	}()
	ur := <-userCh
	hr := <-histCh

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return ErrStaleOpen
	}
	if ur.err != nil {
		m.mu.Unlock()
		return fmt.Errorf("open conversation %d: %w", peerID, ur.err)
	}
	if hr.err != nil {
		m.mu.Unlock()
		return fmt.Errorf("open conversation %d: %w", peerID, hr.err)
	}
	msgs := make([]model.Message, len(hr.msgs))
	copy(msgs, hr.msgs)
	for i := range msgs {
		// History is already durable server-side.
		msgs[i].Status = model.DeliverySent
	}
	m.open = true
	m.peer = ur.user
	m.messages = msgs
	m.mu.Unlock()
	m.notify()
	return nil
}

// Close discards the open session. In-flight Open results become stale.
func (m *Manager) Close() {
	m.mu.Lock()
	m.gen++
	m.open = false
	m.messages = nil
	m.typingUntil = time.Time{}
	m.mu.Unlock()
	m.notify()
}

// AppendOwn validates and appends an outgoing message with the current local
// time and pending delivery status, and returns it for optimistic rendering.
// The send itself is the caller's concern.
func (m *Manager) AppendOwn(text string) (model.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return model.Message{}, ErrEmptyMessage
	}

	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return model.Message{}, ErrNoSession
	}
	msg := model.Message{
		ClientID:   uuid.NewString(),
		SenderID:   m.selfID,
		ReceiverID: m.peer.ID,
		Text:       trimmed,
		Timestamp:  m.now(),
		Own:        true,
		Status:     model.DeliveryPending,
	}
	m.messages = append(m.messages, msg)
	peerID := m.peer.ID
	m.mu.Unlock()

	m.dir.Bump(peerID, trimmed, msg.Timestamp)
	m.notify()
	return msg, nil
}

// AppendIncoming appends a message pushed for the open peer. A sender other
// than the open peer is rejected without touching state; the event router is
// responsible for directing such messages to the directory instead.
func (m *Manager) AppendIncoming(msg model.Message) error {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return ErrNoSession
	}
	if msg.SenderID != m.peer.ID {
		peerID := m.peer.ID
		m.mu.Unlock()
		return fmt.Errorf("sender %d, open peer %d: %w", msg.SenderID, peerID, ErrSenderMismatch)
	}
	msg.Own = false
	msg.Status = model.DeliverySent
	m.messages = append(m.messages, msg)
	peerID := m.peer.ID
	m.mu.Unlock()

	m.dir.Bump(peerID, msg.Text, msg.Timestamp)
	m.notify()
	return nil
}

// ConfirmOwn reconciles the server echo of an optimistic send: the oldest
// pending own message with the same text inside the confirm window is marked
// sent. Returns false when nothing matched (echo for a send from another
// device, or the message already expired to failed).
func (m *Manager) ConfirmOwn(text string, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return false
	}
	for i := range m.messages {
		msg := &m.messages[i]
		if !msg.Own || msg.Status != model.DeliveryPending || msg.Text != text {
			continue
		}
		if at.Sub(msg.Timestamp) > m.confirmWindow || msg.Timestamp.Sub(at) > m.confirmWindow {
			continue
		}
		msg.Status = model.DeliverySent
		return true
	}
	return false
}

// ExpirePending marks pending messages older than the confirm window as
// failed and returns how many were marked. Driven by a periodic sweep.
func (m *Manager) ExpirePending() int {
	m.mu.Lock()
	n := 0
	cutoff := m.now().Add(-m.confirmWindow)
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.Own && msg.Status == model.DeliveryPending && msg.Timestamp.Before(cutoff) {
			msg.Status = model.DeliveryFailed
			n++
		}
	}
	m.mu.Unlock()
	if n > 0 {
		m.notify()
	}
	return n
}

// MarkTyping shows the peer's typing indicator for the given window. The
// indicator is visible while now < deadline; no-op without an open session.
func (m *Manager) MarkTyping(window time.Duration) {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return
	}
	m.typingUntil = m.now().Add(window)
	m.mu.Unlock()
	m.notify()
}

// ClearTyping hides the indicator (explicit stop event).
func (m *Manager) ClearTyping() {
	m.mu.Lock()
	if !m.open || m.typingUntil.IsZero() {
		m.mu.Unlock()
		return
	}
	m.typingUntil = time.Time{}
	m.mu.Unlock()
	m.notify()
}

// TypingActive reports whether the indicator is currently visible.
func (m *Manager) TypingActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open && m.now().Before(m.typingUntil)
}

// Peer returns the open peer's profile.
func (m *Manager) Peer() (model.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peer, m.open
}

// PeerID returns the open peer id, 0 when closed.
func (m *Manager) PeerID() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return 0, false
	}
	return m.peer.ID, true
}

// Messages returns a copy of the message sequence in arrival order.
func (m *Manager) Messages() []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *Manager) notify() {
	if m.listener != nil {
		m.listener()
	}
}
