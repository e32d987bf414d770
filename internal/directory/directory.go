// Package directory holds the ordered conversation list: most recently
// active peer first, one entry per peer, with last-message preview and
// unread counters.
package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playerchat/internal/format"
	"github.com/playerchat/internal/model"
)

// Fetcher loads the full conversation list from the service.
type Fetcher interface {
	Conversations(ctx context.Context) ([]model.Conversation, error)
}

// Listener is invoked after any directory mutation, outside the lock.
type Listener func()

type Directory struct {
	mu         sync.RWMutex
	fetch      Fetcher
	list       []model.Conversation
	loaded     bool
	stale      bool
	previewLen int
	listener   Listener
}

func New(fetch Fetcher, previewLen int, listener Listener) *Directory {
	if previewLen <= 0 {
		previewLen = 50
	}
	return &Directory{fetch: fetch, previewLen: previewLen, listener: listener}
}

// Load replaces the list with the server's ordering. On failure prior state
// is kept intact; a 401 surfaces as api.ErrAuthRequired for the shell.
func (d *Directory) Load(ctx context.Context) error {
	list, err := d.fetch.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("directory load: %w", err)
	}
	d.mu.Lock()
	d.list = list
	d.loaded = true
	d.stale = false
	d.mu.Unlock()
	d.notify()
	return nil
}

// Bump updates the peer's preview/time and moves its entry to the front.
// A peer without an entry is not synthesized (the entry carries a username
// and avatar the caller does not have); instead the directory is flagged
// stale so the shell can re-Load. Returns whether an entry was updated.
func (d *Directory) Bump(peerID int64, preview string, at time.Time) bool {
	d.mu.Lock()
	idx := -1
	for i := range d.list {
		if d.list[i].PeerID == peerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.stale = d.loaded
		d.mu.Unlock()
		return false
	}
	conv := d.list[idx]
	conv.LastMessage = format.Preview(preview, d.previewLen)
	t := at
	conv.LastMessageTime = &t
	copy(d.list[1:idx+1], d.list[:idx])
	d.list[0] = conv
	d.mu.Unlock()
	d.notify()
	return true
}

// ClearUnread resets the peer's unread counter (conversation opened).
func (d *Directory) ClearUnread(peerID int64) {
	d.setUnread(peerID, func(n int) int { return 0 })
}

// IncrementUnread bumps the counter for a message arriving outside the
// open conversation.
func (d *Directory) IncrementUnread(peerID int64) {
	d.setUnread(peerID, func(n int) int { return n + 1 })
}

func (d *Directory) setUnread(peerID int64, f func(int) int) {
	d.mu.Lock()
	changed := false
	for i := range d.list {
		if d.list[i].PeerID == peerID {
			if next := f(d.list[i].UnreadCount); next != d.list[i].UnreadCount {
				d.list[i].UnreadCount = next
				changed = true
			}
			break
		}
	}
	d.mu.Unlock()
	if changed {
		d.notify()
	}
}

// Snapshot returns a copy of the ordered list.
func (d *Directory) Snapshot() []model.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Conversation, len(d.list))
	copy(out, d.list)
	return out
}

// Get returns the entry for one peer.
func (d *Directory) Get(peerID int64) (model.Conversation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i := range d.list {
		if d.list[i].PeerID == peerID {
			return d.list[i], true
		}
	}
	return model.Conversation{}, false
}

// Stale reports that activity touched a peer with no entry since the last
// Load, so the list no longer reflects the server.
func (d *Directory) Stale() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stale
}

func (d *Directory) notify() {
	if d.listener != nil {
		d.listener()
	}
}
