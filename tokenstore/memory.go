package tokenstore

import (
	"context"
	"errors"
	"sync"

	"github.com/MrEthical07/authclient"
)

// ErrIncompletePair is returned when SetTokens receives a pair missing either token.
var ErrIncompletePair = errors.New("incomplete token pair")

// Memory is a concurrency-safe in-process token store.
type Memory struct {
	mu   sync.RWMutex
	pair authclient.TokenPair
}

var _ authclient.TokenStore = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith returns a store seeded with pair.
func NewMemoryWith(pair authclient.TokenPair) *Memory {
	return &Memory{pair: pair}
}

func (m *Memory) AccessToken(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair.AccessToken, nil
}

func (m *Memory) RefreshToken(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair.RefreshToken, nil
}

// Pair returns a copy of the stored pair.
func (m *Memory) Pair() authclient.TokenPair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair
}

func (m *Memory) SetTokens(_ context.Context, pair authclient.TokenPair) error {
	if !pair.Complete() {
		return ErrIncompletePair
	}
	m.mu.Lock()
	m.pair = pair
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.pair = authclient.TokenPair{}
	m.mu.Unlock()
	return nil
}
