// Package activity turns bursts of user interaction into pause and resume
// calls on the prefetch scheduler.
//
// Only discrete, high-signal events count (press, tap, key, scroll).
// Continuous pointer movement is ignored.
package activity

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Kind is the class of an interaction event.
type Kind string

const (
	KindPress  Kind = "press"
	KindTap    Kind = "tap"
	KindKey    Kind = "key"
	KindScroll Kind = "scroll"
	KindMove   Kind = "move"
)

// DefaultKinds are the event kinds a Monitor reacts to.
var DefaultKinds = []Kind{KindPress, KindTap, KindKey, KindScroll}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPress, KindTap, KindKey, KindScroll, KindMove:
		return k, nil
	default:
		return "", fmt.Errorf("unknown interaction kind %q", s)
	}
}

// Event is one interaction.
type Event struct {
	Kind Kind
	At   time.Time
}

// Source is a subscribable stream of interaction events.
type Source interface {
	// Subscribe registers fn and returns a func that unregisters it.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Broadcaster is an in-process Source. Publish delivers synchronously to
// every subscriber.
type Broadcaster struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func(Event))}
}

// Subscribe implements Source.
func (b *Broadcaster) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers e to every subscriber.
func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
