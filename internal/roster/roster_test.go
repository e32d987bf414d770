package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playerchat/internal/model"
)

type fakeFetcher struct {
	players []model.User
	err     error
}

func (f *fakeFetcher) Players(context.Context) ([]model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.players, nil
}

func loaded(t *testing.T) *Roster {
	t.Helper()
	f := &fakeFetcher{players: []model.User{
		{ID: 1, Username: "Alice", Status: model.StatusOnline},
		{ID: 2, Username: "Bob", Status: model.StatusOffline},
		{ID: 3, Username: "alina", Status: model.StatusOnline},
	}}
	r := New(f, nil)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return r
}

func TestFilterBySearchAndStatus(t *testing.T) {
	r := loaded(t)

	if got := r.Filter("ali", FilterAll); len(got) != 2 {
		t.Fatalf("search 'ali' matched %d players, want 2", len(got))
	}
	if got := r.Filter("", FilterOnline); len(got) != 2 {
		t.Fatalf("online filter matched %d, want 2", len(got))
	}
	if got := r.Filter("", FilterOffline); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("offline filter = %+v", got)
	}
	if got := r.Filter("ali", FilterOffline); len(got) != 0 {
		t.Fatalf("combined filter = %+v", got)
	}
}

func TestSetStatusUpdatesPlayerAndLastSeen(t *testing.T) {
	r := loaded(t)
	fixed := time.Date(2025, time.July, 2, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	r.SetStatus(2, model.StatusOnline)
	p, ok := r.Get(2)
	if !ok || p.Status != model.StatusOnline {
		t.Fatalf("player = %+v", p)
	}
	if p.LastSeen == nil || !p.LastSeen.Equal(fixed) {
		t.Fatalf("last seen not refreshed: %+v", p.LastSeen)
	}

	// Unknown player: ignored.
	r.SetStatus(99, model.StatusOnline)
	if _, ok := r.Get(99); ok {
		t.Fatalf("status event must not create players")
	}
}

func TestSetBulkOnline(t *testing.T) {
	var fired int
	f := &fakeFetcher{players: []model.User{
		{ID: 1, Status: model.StatusOnline},
		{ID: 2, Status: model.StatusOffline},
	}}
	r := New(f, func() { fired++ })
	_ = r.Load(context.Background())
	fired = 0

	r.SetBulkOnline([]int64{2})
	if p, _ := r.Get(1); p.Online() {
		t.Fatalf("player 1 must be offline after resync")
	}
	if p, _ := r.Get(2); !p.Online() {
		t.Fatalf("player 2 must be online after resync")
	}
	if fired != 1 {
		t.Fatalf("listener fired %d times, want 1", fired)
	}

	// Identical snapshot: no change, no notification.
	r.SetBulkOnline([]int64{2})
	if fired != 1 {
		t.Fatalf("no-op resync must not notify, fired=%d", fired)
	}
}

func TestLoadFailureKeepsPriorState(t *testing.T) {
	f := &fakeFetcher{players: []model.User{{ID: 1}}}
	r := New(f, nil)
	_ = r.Load(context.Background())
	f.err = errors.New("down")
	if err := r.Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(r.All()) != 1 {
		t.Fatalf("prior listing lost")
	}
}
