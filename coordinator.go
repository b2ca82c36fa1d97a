package authclient

import (
	"sync"
	"sync/atomic"
)

// Outcome is the settled result of one refresh cycle.
//
// Exactly one of AccessToken and Err is set.
type Outcome struct {
	AccessToken string
	Err         error
}

// RefreshCoordinator serializes token refreshes for one client.
//
// At most one cycle is open at a time. The first caller of [RefreshCoordinator.Begin]
// leads the cycle and must call [RefreshCoordinator.Settle]; every later caller
// receives a channel that yields the cycle's outcome. The flag and the queue are
// checked and mutated under one lock.
//
// Settled cycles are numbered. A caller that records [RefreshCoordinator.Generation]
// before sending can pass it to [RefreshCoordinator.Join]; a 401 answered after a
// later cycle settled then receives that cycle's outcome instead of opening
// another one.
type RefreshCoordinator struct {
	mu         sync.Mutex
	refreshing bool
	waiters    []chan Outcome
	settled    uint64
	last       Outcome
	cycles     atomic.Uint64
}

// NewRefreshCoordinator returns an idle coordinator.
func NewRefreshCoordinator() *RefreshCoordinator {
	return &RefreshCoordinator{}
}

// Begin opens a cycle or joins the open one.
//
// leader is true when the caller opened the cycle; wait is nil in that case.
// Otherwise wait delivers exactly one Outcome once the leader settles.
func (c *RefreshCoordinator) Begin() (leader bool, wait <-chan Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.join(c.settled)
}

// Join is Begin for a request sent while generation since was current.
//
// When a cycle has settled after since and none is open, wait yields the
// outcome of the most recent cycle immediately and no cycle is opened.
func (c *RefreshCoordinator) Join(since uint64) (leader bool, wait <-chan Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.join(since)
}

func (c *RefreshCoordinator) join(since uint64) (bool, <-chan Outcome) {
	if !c.refreshing && c.settled > since {
		ch := make(chan Outcome, 1)
		ch <- c.last
		return false, ch
	}
	if !c.refreshing {
		c.refreshing = true
		c.cycles.Add(1)
		return true, nil
	}

	ch := make(chan Outcome, 1)
	c.waiters = append(c.waiters, ch)
	return false, ch
}

// Settle delivers out to every queued waiter in arrival order and closes the
// cycle. It returns the number of waiters served. Settling an idle coordinator
// is a no-op.
func (c *RefreshCoordinator) Settle(out Outcome) int {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	if c.refreshing {
		c.settled++
		c.last = out
	}
	c.refreshing = false
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- out
	}
	return len(waiters)
}

// IsRefreshing reports whether a cycle is open.
func (c *RefreshCoordinator) IsRefreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Pending returns the number of callers waiting on the open cycle.
func (c *RefreshCoordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Generation returns the number of cycles settled since construction.
func (c *RefreshCoordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled
}

// Cycles returns the number of cycles opened since construction.
func (c *RefreshCoordinator) Cycles() uint64 {
	return c.cycles.Load()
}
