package authclient

import (
	"sort"
	"sync"
)

// Signal names a client-wide notification.
type Signal uint8

const (
	// SignalUnauthorized fires once per failed refresh cycle, after the session
	// terminator ran.
	SignalUnauthorized Signal = iota + 1
	// SignalBackendUnavailable fires when an authenticated request to a non-auth
	// endpoint gets no response or a 5xx.
	SignalBackendUnavailable
)

func (s Signal) String() string {
	switch s {
	case SignalUnauthorized:
		return "auth:unauthorized"
	case SignalBackendUnavailable:
		return "auth:backend-unavailable"
	default:
		return "unknown"
	}
}

type subscription struct {
	id      uint64
	signal  Signal
	handler func()
}

// notifier is a per-client observer registry. Handlers run synchronously on the
// goroutine that raised the signal, in subscription order, with no lock held.
type notifier struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscription
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[uint64]subscription)}
}

func (n *notifier) subscribe(signal Signal, handler func()) func() {
	if handler == nil {
		return func() {}
	}

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs[id] = subscription{id: id, signal: signal, handler: handler}
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) publish(signal Signal) int {
	n.mu.RLock()
	matched := make([]subscription, 0, len(n.subs))
	for _, s := range n.subs {
		if s.signal == signal {
			matched = append(matched, s)
		}
	}
	n.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].id < matched[j].id })
	for _, s := range matched {
		s.handler()
	}
	return len(matched)
}
