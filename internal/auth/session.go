package auth

import "sync"

// SessionTracker holds the current session and tells subscribers when it
// changes. A nil session means signed out.
type SessionTracker struct {
	mu      sync.Mutex
	current *Session
	nextID  int
	subs    map[int]func(*Session)
}

// NewSessionTracker creates a tracker with no session.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{subs: make(map[int]func(*Session))}
}

// Subscribe registers fn for session changes and returns a function that
// removes it.
func (t *SessionTracker) Subscribe(fn func(*Session)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// Current returns the session, or nil when signed out.
func (t *SessionTracker) Current() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Set replaces the session and notifies subscribers outside the lock.
func (t *SessionTracker) Set(s *Session) {
	t.mu.Lock()
	t.current = s
	subs := make([]func(*Session), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}
