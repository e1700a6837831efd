package social_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"social/database"
	"social/models"
)

// fakeIdentity is an in-memory Users service.
type fakeIdentity struct {
	mu       sync.Mutex
	users    map[int64]models.Projection
	down     bool
	getCalls int
	batches  [][]int64
}

func newFakeIdentity(ids ...int64) *fakeIdentity {
	f := &fakeIdentity{users: make(map[int64]models.Projection)}
	for _, id := range ids {
		f.add(models.Projection{ID: id, Name: "user " + string(rune('a'+id%26)), Nickname: "nick"})
	}
	return f
}

func (f *fakeIdentity) add(p models.Projection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[p.ID] = p
}

func (f *fakeIdentity) remove(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

func (f *fakeIdentity) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeIdentity) Get(_ context.Context, id int64) (*models.Projection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.down {
		return nil, models.Unavailable("User service", errors.New("down"))
	}
	p, ok := f.users[id]
	if !ok {
		return nil, models.NotFound("User", id)
	}
	return &p, nil
}

func (f *fakeIdentity) GetMany(_ context.Context, ids []int64) ([]models.Projection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]int64(nil), ids...))
	if f.down {
		return nil, models.Unavailable("User service", errors.New("down"))
	}
	out := []models.Projection{}
	for _, id := range ids {
		if p, ok := f.users[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeIdentity) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := f.Get(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeIdentity) Search(_ context.Context, q models.UserSearch) ([]models.Projection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, models.Unavailable("User service", errors.New("down"))
	}
	out := []models.Projection{}
	for _, p := range f.users {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

type sentEvent struct {
	to []int64
	ev models.Event
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (r *recordingNotifier) Notify(to []int64, ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEvent{to: to, ev: ev})
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.ev.Type)
	}
	return out
}

// crashingStore fails the follower-side write to simulate a crash between
// the two graph writes.
type crashingStore struct {
	*database.MemoryStore
}

func (crashingStore) AddFollower(context.Context, int64, int64) (models.Outcome, error) {
	return models.NoOp, models.Unavailable("document store", errors.New("connection reset"))
}

// tickingClock advances by one second on every reading.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}
