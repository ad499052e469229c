package game

import (
	"sync"
	"time"
)

// NotificationKind classifies a transient notification.
type NotificationKind string

// Notification kinds.
const (
	KindUnlock  NotificationKind = "unlock"
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
)

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 3 * time.Second

// Notification is a toast shown to the player.
type Notification struct {
	ID      uint64
	Kind    NotificationKind
	Message string
}

// Notifier keeps the visible notifications and dismisses each one after its TTL.
type Notifier struct {
	sched    Scheduler
	ttl      time.Duration
	onChange func([]Notification)

	mu     sync.Mutex
	nextID uint64
	active []Notification
	timers map[uint64]Timer
	closed bool
}

// NewNotifier creates a Notifier. onChange, if set, is called after a
// notification expires.
func NewNotifier(sched Scheduler, ttl time.Duration, onChange func([]Notification)) *Notifier {
	if sched == nil {
		sched = RealScheduler
	}
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Notifier{
		sched:    sched,
		ttl:      ttl,
		onChange: onChange,
		timers:   make(map[uint64]Timer),
	}
}

// Show adds a notification and schedules its dismissal.
func (n *Notifier) Show(kind NotificationKind, message string) Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	note := Notification{ID: n.nextID, Kind: kind, Message: message}
	if n.closed {
		return note
	}
	n.active = append(n.active, note)

	id := note.ID
	n.timers[id] = n.sched.AfterFunc(n.ttl, func() {
		if !n.expire(id) {
			return
		}
		if n.onChange != nil {
			n.onChange(n.Active())
		}
	})
	return note
}

// Dismiss removes a notification before its TTL runs out.
func (n *Notifier) Dismiss(id uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if t, ok := n.timers[id]; ok {
		t.Stop()
	}
	return n.removeLocked(id)
}

// Active returns the visible notifications, oldest first.
func (n *Notifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.active))
	copy(out, n.active)
	return out
}

// Close cancels every pending dismissal and clears the notifications.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, t := range n.timers {
		t.Stop()
		delete(n.timers, id)
	}
	n.active = nil
	n.closed = true
}

func (n *Notifier) expire(id uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return false
	}
	return n.removeLocked(id)
}

func (n *Notifier) removeLocked(id uint64) bool {
	delete(n.timers, id)
	for i, note := range n.active {
		if note.ID == id {
			n.active = append(n.active[:i], n.active[i+1:]...)
			return true
		}
	}
	return false
}
