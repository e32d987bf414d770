// Package hub wires the client core together: it routes inbound push events
// to the presence tracker, the conversation directory, the roster or the
// open session, and carries outbound send/typing requests back onto the
// channel. All inbound routing runs from the single channel read pump, so
// events are applied strictly in arrival order.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/playerchat/internal/directory"
	"github.com/playerchat/internal/logger"
	"github.com/playerchat/internal/model"
	"github.com/playerchat/internal/presence"
	"github.com/playerchat/internal/roster"
	"github.com/playerchat/internal/session"
	"github.com/playerchat/internal/ws"
)

// API is the REST surface the hub consumes. Satisfied by *api.Client.
type API interface {
	Conversations(ctx context.Context) ([]model.Conversation, error)
	User(ctx context.Context, id int64) (model.User, error)
	Messages(ctx context.Context, userID int64) ([]model.Message, error)
	Players(ctx context.Context) ([]model.User, error)
}

// Emitter carries outbound envelopes to the push channel. Satisfied by
// *ws.Client; nil while disconnected.
type Emitter interface {
	Send(env ws.Envelope) error
}

// UpdateKind names which part of the state changed.
type UpdateKind string

const (
	UpdateDirectory UpdateKind = "directory"
	UpdateSession   UpdateKind = "session"
	UpdatePresence  UpdateKind = "presence"
	UpdateRoster    UpdateKind = "roster"
)

// Update is one change notification for the rendering layer. Presence
// updates carry the affected user; the rest are re-read from the components.
type Update struct {
	Kind   UpdateKind
	UserID int64
	Status model.Status
}

// Config groups the behavior knobs the hub needs from config.Config.
type Config struct {
	TypingShowWindow time.Duration // indicator visibility after user_typing
	TypingIdleStop   time.Duration // input pause before stop_typing
	ConfirmTimeout   time.Duration // echo wait for optimistic sends
	PreviewMaxLen    int
}

type Hub struct {
	selfID int64

	presence *presence.Tracker
	dir      *directory.Directory
	session  *session.Manager
	roster   *roster.Roster

	cfg Config

	mu             sync.Mutex
	emitter        Emitter
	lastTypingSent time.Time
	stopTimer      *time.Timer
	indicatorTimer *time.Timer
	now            func() time.Time

	updates chan Update
}

func New(client API, selfID int64, cfg Config) *Hub {
	if cfg.TypingShowWindow <= 0 {
		cfg.TypingShowWindow = 3 * time.Second
	}
	if cfg.TypingIdleStop <= 0 {
		cfg.TypingIdleStop = time.Second
	}

	h := &Hub{
		selfID:  selfID,
		cfg:     cfg,
		now:     time.Now,
		updates: make(chan Update, 256),
	}
	h.presence = presence.NewTracker(func(userID int64, status model.Status) {
		h.publish(Update{Kind: UpdatePresence, UserID: userID, Status: status})
	})
	h.dir = directory.New(client, cfg.PreviewMaxLen, func() {
		h.publish(Update{Kind: UpdateDirectory})
	})
	h.session = session.NewManager(client, h.dir, selfID, cfg.ConfirmTimeout)
	h.session.SetListener(func() {
		h.publish(Update{Kind: UpdateSession})
	})
	h.roster = roster.New(client, func() {
		h.publish(Update{Kind: UpdateRoster})
	})
	return h
}

// SetEmitter attaches (or detaches, with nil) the push-channel sender.
func (h *Hub) SetEmitter(e Emitter) {
	h.mu.Lock()
	h.emitter = e
	h.mu.Unlock()
}

// Bootstrap loads the directory and roster and seeds the presence tracker
// with every known user.
func (h *Hub) Bootstrap(ctx context.Context) error {
	if err := h.dir.Load(ctx); err != nil {
		return err
	}
	if err := h.roster.Load(ctx); err != nil {
		return err
	}
	for _, p := range h.roster.All() {
		h.presence.Track(p.ID, p.Status)
	}
	return nil
}

// Directory exposes the conversation list state.
func (h *Hub) Directory() *directory.Directory { return h.dir }

// Session exposes the open-conversation state.
func (h *Hub) Session() *session.Manager { return h.session }

// Presence exposes the status tracker.
func (h *Hub) Presence() *presence.Tracker { return h.presence }

// Roster exposes the player listing.
func (h *Hub) Roster() *roster.Roster { return h.roster }

// Updates is the change-notification stream for the rendering layer.
// Notifications are dropped, never blocked on, when the consumer lags.
func (h *Hub) Updates() <-chan Update { return h.updates }

// HandleEvent implements ws.Handler: the inbound routing table.
func (h *Hub) HandleEvent(ctx context.Context, env ws.Envelope) {
	if err := h.dispatch(ctx, env); err != nil {
		logger.Errorf("hub: event %s: %v", env.Event, err)
	}
}

func (h *Hub) dispatch(_ context.Context, env ws.Envelope) error {
	switch env.Event {
	case ws.EventNewMessage:
		var msg model.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return err
		}
		h.handleNewMessage(msg)
		return nil

	case ws.EventUserTyping:
		var p ws.TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if peerID, ok := h.session.PeerID(); ok && peerID == p.UserID {
			h.session.MarkTyping(h.cfg.TypingShowWindow)
			h.armIndicatorExpiry()
		}
		return nil

	case ws.EventUserStopTyping:
		var p ws.TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if peerID, ok := h.session.PeerID(); ok && peerID == p.UserID {
			h.session.ClearTyping()
		}
		return nil

	case ws.EventUserStatus:
		var p ws.StatusPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		h.presence.SetStatus(p.UserID, p.Status)
		h.roster.SetStatus(p.UserID, p.Status)
		return nil

	case ws.EventOnlineUsers:
		var ids ws.OnlineUsersPayload
		if err := json.Unmarshal(env.Data, &ids); err != nil {
			return err
		}
		h.presence.SetBulkOnline(ids)
		h.roster.SetBulkOnline(ids)
		return nil

	default:
		logger.Debugf("hub: unknown event %s", env.Event)
		return nil
	}
}

// handleNewMessage routes one inbound message: own echo confirms a pending
// send; a message from the open peer joins the session (which bumps the
// directory); anything else only touches the directory.
func (h *Hub) handleNewMessage(msg model.Message) {
	if msg.SenderID == h.selfID {
		if !h.session.ConfirmOwn(msg.Text, msg.Timestamp) {
			logger.Debugf("hub: unmatched own echo receiver=%d", msg.ReceiverID)
		}
		return
	}

	if peerID, ok := h.session.PeerID(); ok && peerID == msg.SenderID {
		if err := h.session.AppendIncoming(msg); err != nil {
			logger.Errorf("hub: append incoming from %d: %v", msg.SenderID, err)
		}
		return
	}

	h.dir.Bump(msg.SenderID, msg.Text, msg.Timestamp)
	h.dir.IncrementUnread(msg.SenderID)
}

// armIndicatorExpiry schedules a session notification for when the typing
// window lapses with no stop event, so the renderer re-checks visibility.
func (h *Hub) armIndicatorExpiry() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.indicatorTimer != nil {
		h.indicatorTimer.Stop()
	}
	h.indicatorTimer = time.AfterFunc(h.cfg.TypingShowWindow, func() {
		h.publish(Update{Kind: UpdateSession})
	})
}

// OpenConversation clears the peer's unread counter and opens the session.
// A stale open (superseded by a newer one) is not an error for the caller's
// state: the newer open owns the session.
func (h *Hub) OpenConversation(ctx context.Context, peerID int64) error {
	h.dir.ClearUnread(peerID)
	return h.session.Open(ctx, peerID)
}

// CloseConversation discards the open session.
func (h *Hub) CloseConversation() {
	h.session.Close()
}

// Send appends the text optimistically and emits the send request. The
// message stays in the session even if the emit fails; the pending sweep
// marks it failed when no echo arrives.
func (h *Hub) Send(text string) (model.Message, error) {
	msg, err := h.session.AppendOwn(text)
	if err != nil {
		return model.Message{}, err
	}
	h.emit(ws.EventPrivateMessage, ws.PrivateMessagePayload{
		ReceiverID: msg.ReceiverID,
		Message:    msg.Text,
	})
	return msg, nil
}

// TypingInput registers one local keystroke: a typing notice goes out at
// most once per idle window, and a single stop_typing fires after the input
// has been idle for the window.
func (h *Hub) TypingInput() {
	peerID, ok := h.session.PeerID()
	if !ok {
		return
	}

	h.mu.Lock()
	now := h.now()
	sendTyping := now.Sub(h.lastTypingSent) >= h.cfg.TypingIdleStop
	if sendTyping {
		h.lastTypingSent = now
	}
	if h.stopTimer != nil {
		h.stopTimer.Stop()
	}
	h.stopTimer = time.AfterFunc(h.cfg.TypingIdleStop, func() {
		h.mu.Lock()
		h.lastTypingSent = time.Time{}
		h.mu.Unlock()
		h.emit(ws.EventStopTyping, ws.ReceiverPayload{ReceiverID: peerID})
	})
	h.mu.Unlock()

	if sendTyping {
		h.emit(ws.EventTyping, ws.ReceiverPayload{ReceiverID: peerID})
	}
}

// Run drives the pending-confirm sweep until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	interval := h.cfg.ConfirmTimeout / 4
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			if h.stopTimer != nil {
				h.stopTimer.Stop()
			}
			if h.indicatorTimer != nil {
				h.indicatorTimer.Stop()
			}
			h.mu.Unlock()
			return
		case <-ticker.C:
			if n := h.session.ExpirePending(); n > 0 {
				logger.Infof("hub: %d unconfirmed messages marked failed", n)
			}
		}
	}
}

func (h *Hub) emit(ev ws.EventType, payload any) {
	h.mu.Lock()
	emitter := h.emitter
	h.mu.Unlock()
	if emitter == nil {
		logger.Debugf("hub: emit %s: not connected", ev)
		return
	}
	env, err := ws.NewEnvelope(ev, payload)
	if err != nil {
		logger.Errorf("hub: %v", err)
		return
	}
	if err := emitter.Send(env); err != nil {
		logger.Errorf("hub: emit %s: %v", ev, err)
	}
}

func (h *Hub) publish(u Update) {
	select {
	case h.updates <- u:
	default:
		// Консьюмер отстаёт — уведомление теряем, состояние читается заново.
	}
}
