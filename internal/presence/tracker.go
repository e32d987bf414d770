// Package presence tracks online/offline status for known users. The set of
// known users is seeded from roster/directory loads; status events for users
// we have never seen are dropped silently.
package presence

import (
	"sync"
	"time"

	"github.com/playerchat/internal/model"
)

// Listener is invoked after a tracked user's status actually changes.
// Called outside the tracker lock.
type Listener func(userID int64, status model.Status)

type entry struct {
	status   model.Status
	lastSeen time.Time
}

type Tracker struct {
	mu       sync.RWMutex
	users    map[int64]entry
	listener Listener
	now      func() time.Time
}

func NewTracker(listener Listener) *Tracker {
	return &Tracker{
		users:    make(map[int64]entry),
		listener: listener,
		now:      time.Now,
	}
}

// Track registers a user with an initial status. Re-tracking an existing
// user overwrites the status without notifying.
func (t *Tracker) Track(userID int64, status model.Status) {
	if status != model.StatusOnline {
		status = model.StatusOffline
	}
	t.mu.Lock()
	e := t.users[userID]
	e.status = status
	t.users[userID] = e
	t.mu.Unlock()
}

// SetStatus overwrites one user's status. Unknown users are a no-op.
func (t *Tracker) SetStatus(userID int64, status model.Status) {
	if status != model.StatusOnline {
		status = model.StatusOffline
	}
	t.mu.Lock()
	e, ok := t.users[userID]
	if !ok || e.status == status {
		t.mu.Unlock()
		return
	}
	e.status = status
	e.lastSeen = t.now()
	t.users[userID] = e
	t.mu.Unlock()

	if t.listener != nil {
		t.listener(userID, status)
	}
}

// SetBulkOnline replaces the status of the entire known set: member of ids is
// online, everyone else offline. Used for resync after reconnect.
func (t *Tracker) SetBulkOnline(ids []int64) {
	online := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		online[id] = struct{}{}
	}

	type change struct {
		id     int64
		status model.Status
	}
	var changed []change

	t.mu.Lock()
	now := t.now()
	for id, e := range t.users {
		status := model.StatusOffline
		if _, ok := online[id]; ok {
			status = model.StatusOnline
		}
		if e.status == status {
			continue
		}
		e.status = status
		e.lastSeen = now
		t.users[id] = e
		changed = append(changed, change{id: id, status: status})
	}
	t.mu.Unlock()

	if t.listener != nil {
		for _, c := range changed {
			t.listener(c.id, c.status)
		}
	}
}

// Status returns the tracked status; ok is false for unknown users.
func (t *Tracker) Status(userID int64) (model.Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.users[userID]
	if !ok {
		return model.StatusOffline, false
	}
	return e.status, true
}

// LastSeen returns the time of the last observed status transition.
func (t *Tracker) LastSeen(userID int64) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.users[userID]
	if !ok || e.lastSeen.IsZero() {
		return time.Time{}, false
	}
	return e.lastSeen, true
}
