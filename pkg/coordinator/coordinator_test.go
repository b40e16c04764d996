package coordinator

import (
	"sync"
	"time"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/storage"
)

// memStore is an in-memory storage.Store used by tests so the
// coordinator's persistence path is exercised without touching disk.
type memStore struct {
	mu       sync.Mutex
	snap     storage.Snapshot
	saves    int
	saveErr  error
	closed   bool
}

func newMemStore() *memStore {
	return &memStore{snap: storage.EmptySnapshot()}
}

func (m *memStore) Load() (storage.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func (m *memStore) Save(snap storage.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snap = snap
	return nil
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

// fakeClock is a deterministic timeutil.Clock for tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCoordinator() (*Coordinator, *memStore) {
	store := newMemStore()
	c, err := New(Config{Store: store, Clock: newFakeClock(time.Unix(0, 0))})
	if err != nil {
		panic(err)
	}
	return c, store
}

func registerIdleBurner(c *Coordinator, name string, images ...string) {
	c.Register(name, "127.0.0.1", 9000, images)
}
