// Package session tracks authentication state server-side. It replaces
// ambient per-process globals with an explicit store: callers read the
// current state or subscribe for changes, and every subscription hands
// back its own unsubscribe func.
package session

import "sync"

// State is the tri-state lifecycle of the session tracker.
type State string

const (
	// StateLoading is the initial state before the first resolution.
	StateLoading State = "loading"

	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Snapshot is what observers receive: the state plus the uid when
// authenticated.
type Snapshot struct {
	State State
	UID   string
}

// Listener receives session snapshots. Called synchronously under no
// lock, in subscription order.
type Listener func(Snapshot)

// Tracker is a thread-safe session state store. The zero value is not
// usable; call NewTracker.
type Tracker struct {
	mu        sync.Mutex
	current   Snapshot
	listeners map[int]Listener
	nextID    int
	active    map[string]struct{}
	onCount   func(int)
}

// NewTracker returns a tracker in the Loading state.
func NewTracker() *Tracker {
	return &Tracker{
		current:   Snapshot{State: StateLoading},
		listeners: make(map[int]Listener),
		active:    make(map[string]struct{}),
	}
}

// OnActiveCountChange registers a callback invoked with the number of
// distinct authenticated uids whenever it changes. Used to feed the
// active-session gauge. Must be set before concurrent use.
func (t *Tracker) OnActiveCountChange(fn func(int)) {
	t.mu.Lock()
	t.onCount = fn
	t.mu.Unlock()
}

// Current returns the latest snapshot.
func (t *Tracker) Current() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Subscribe registers fn and immediately replays the current snapshot
// to it, so late subscribers never miss the resolved state. The
// returned func removes the subscription; calling it twice is safe.
func (t *Tracker) Subscribe(fn Listener) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	snap := t.current
	t.mu.Unlock()

	fn(snap)

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// SetAuthenticated records a successful sign-in for uid and notifies
// subscribers.
func (t *Tracker) SetAuthenticated(uid string) {
	t.mu.Lock()
	t.current = Snapshot{State: StateAuthenticated, UID: uid}
	t.active[uid] = struct{}{}
	listeners, snap := t.copyListeners(), t.current
	count, onCount := len(t.active), t.onCount
	t.mu.Unlock()

	if onCount != nil {
		onCount(count)
	}
	for _, fn := range listeners {
		fn(snap)
	}
}

// SetUnauthenticated records a sign-out for uid and notifies
// subscribers. An empty uid clears only the tracker state.
func (t *Tracker) SetUnauthenticated(uid string) {
	t.mu.Lock()
	t.current = Snapshot{State: StateUnauthenticated}
	if uid != "" {
		delete(t.active, uid)
	}
	listeners, snap := t.copyListeners(), t.current
	count, onCount := len(t.active), t.onCount
	t.mu.Unlock()

	if onCount != nil {
		onCount(count)
	}
	for _, fn := range listeners {
		fn(snap)
	}
}

// ActiveCount returns the number of distinct authenticated uids.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// copyListeners must be called with the lock held. Notification happens
// outside the lock so a listener can unsubscribe from within itself.
func (t *Tracker) copyListeners() []Listener {
	out := make([]Listener, 0, len(t.listeners))
	for id := 0; id < t.nextID; id++ {
		if fn, ok := t.listeners[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
