// Package cache хранит токены кассира между перезапусками терминала.
package cache

import (
	"context"
	"sync"

	"github.com/mmeshcher/kassa-terminal/internal/model"
)

// Credentials — сохранённая авторизация кассира.
type Credentials struct {
	Access  string         `json:"access"`
	Refresh string         `json:"refresh"`
	Cashier *model.Cashier `json:"cashier,omitempty"`
}

// TokenStore сохраняет и восстанавливает авторизацию кассира.
type TokenStore interface {
	Load(ctx context.Context) (*Credentials, bool, error)
	Save(ctx context.Context, creds *Credentials) error
	Clear(ctx context.Context) error
}

// MemoryTokenStore хранит авторизацию в памяти процесса.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	creds *Credentials
}

// NewMemoryTokenStore создаёт пустое хранилище в памяти.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(_ context.Context) (*Credentials, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.creds == nil {
		return nil, false, nil
	}
	return cloneCredentials(s.creds), true, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, creds *Credentials) error {
	if creds == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = cloneCredentials(creds)
	return nil
}

func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = nil
	return nil
}

func cloneCredentials(c *Credentials) *Credentials {
	out := *c
	if c.Cashier != nil {
		cashier := *c.Cashier
		out.Cashier = &cashier
	}
	return &out
}
