// Package roster holds the player directory: the full user listing behind
// the players view and the "new message" peer picker, with search and
// status filtering and presence-driven updates.
package roster

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playerchat/internal/model"
)

// Fetcher loads the player listing from the service.
type Fetcher interface {
	Players(ctx context.Context) ([]model.User, error)
}

// StatusFilter narrows Filter results by presence.
type StatusFilter int

const (
	FilterAll StatusFilter = iota
	FilterOnline
	FilterOffline
)

// Listener is invoked after any roster mutation, outside the lock.
type Listener func()

type Roster struct {
	mu       sync.RWMutex
	fetch    Fetcher
	players  []model.User
	listener Listener
	now      func() time.Time
}

func New(fetch Fetcher, listener Listener) *Roster {
	return &Roster{fetch: fetch, listener: listener, now: time.Now}
}

// Load replaces the listing with the server's ordering (online first, then
// by name). Prior state is kept on failure.
func (r *Roster) Load(ctx context.Context) error {
	players, err := r.fetch.Players(ctx)
	if err != nil {
		return fmt.Errorf("roster load: %w", err)
	}
	r.mu.Lock()
	r.players = players
	r.mu.Unlock()
	r.notify()
	return nil
}

// SetStatus applies a presence change to one player; unknown ids are ignored.
// The transition also refreshes the player's last-seen time.
func (r *Roster) SetStatus(userID int64, status model.Status) {
	if status != model.StatusOnline {
		status = model.StatusOffline
	}
	r.mu.Lock()
	changed := false
	for i := range r.players {
		if r.players[i].ID == userID {
			if r.players[i].Status != status {
				r.players[i].Status = status
				seen := r.now()
				r.players[i].LastSeen = &seen
				changed = true
			}
			break
		}
	}
	r.mu.Unlock()
	if changed {
		r.notify()
	}
}

// SetBulkOnline resyncs every player's status against the online-id set.
func (r *Roster) SetBulkOnline(ids []int64) {
	online := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		online[id] = struct{}{}
	}
	r.mu.Lock()
	changed := false
	for i := range r.players {
		status := model.StatusOffline
		if _, ok := online[r.players[i].ID]; ok {
			status = model.StatusOnline
		}
		if r.players[i].Status != status {
			r.players[i].Status = status
			changed = true
		}
	}
	r.mu.Unlock()
	if changed {
		r.notify()
	}
}

// All returns a copy of the full listing.
func (r *Roster) All() []model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.User, len(r.players))
	copy(out, r.players)
	return out
}

// Filter returns players whose username contains query (case-insensitive)
// and who match the status filter, preserving listing order.
func (r *Roster) Filter(query string, filter StatusFilter) []model.User {
	q := strings.ToLower(strings.TrimSpace(query))
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.User
	for _, p := range r.players {
		if q != "" && !strings.Contains(strings.ToLower(p.Username), q) {
			continue
		}
		switch filter {
		case FilterOnline:
			if !p.Online() {
				continue
			}
		case FilterOffline:
			if p.Online() {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// Get returns one player by id.
func (r *Roster) Get(userID int64) (model.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p.ID == userID {
			return p, true
		}
	}
	return model.User{}, false
}

func (r *Roster) notify() {
	if r.listener != nil {
		r.listener()
	}
}
