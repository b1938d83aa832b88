// Package memory provides an in-memory implementation of storage.Store for
// testing and single-node development. Records are lost when the process
// restarts.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/rhuss/mcplab/pkg/storage"
)

// Store is an in-memory storage.Store.
type Store struct {
	mu           sync.RWMutex
	servers      map[int64]*storage.ServerRecord
	clients      map[string]*storage.OAuthClientRecord
	nextServerID int64
	nextClientID int64

	// nowFunc is overridden in tests.
	nowFunc func() time.Time
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		servers: make(map[int64]*storage.ServerRecord),
		clients: make(map[string]*storage.OAuthClientRecord),
		nowFunc: time.Now,
	}
}

// CreateServer inserts a new server record and assigns its ID.
func (s *Store) CreateServer(_ context.Context, rec *storage.ServerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextServerID++
	now := s.nowFunc()
	rec.ID = s.nextServerID
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.servers[rec.ID] = cloneServer(rec)
	return nil
}

// GetServer returns the server with the given id if owner owns it.
func (s *Store) GetServer(_ context.Context, owner string, id int64) (*storage.ServerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.servers[id]
	if !ok || rec.Owner != owner {
		return nil, storage.ErrNotFound
	}
	return cloneServer(rec), nil
}

// ListServers returns the servers owned by owner in creation order.
func (s *Store) ListServers(_ context.Context, owner string) ([]*storage.ServerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.ServerRecord
	for _, rec := range s.servers {
		if rec.Owner == owner {
			out = append(out, cloneServer(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateServer replaces the identity fields of an existing record.
func (s *Store) UpdateServer(_ context.Context, rec *storage.ServerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.servers[rec.ID]
	if !ok || cur.Owner != rec.Owner {
		return storage.ErrNotFound
	}
	if cur.URL != rec.URL {
		cur.Token = nil
	}
	cur.Name = rec.Name
	cur.Description = rec.Description
	cur.URL = rec.URL
	cur.Transport = rec.Transport
	cur.Headers = maps.Clone(rec.Headers)
	cur.UpdatedAt = s.nowFunc()

	rec.Token = cloneToken(cur.Token)
	rec.CreatedAt = cur.CreatedAt
	rec.UpdatedAt = cur.UpdatedAt
	return nil
}

// DeleteServer removes the record and its token.
func (s *Store) DeleteServer(_ context.Context, owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.servers[id]
	if !ok || rec.Owner != owner {
		return storage.ErrNotFound
	}
	delete(s.servers, id)
	return nil
}

// SaveServerToken replaces the token fields of a record.
func (s *Store) SaveServerToken(_ context.Context, owner string, id int64, token storage.ServerToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.servers[id]
	if !ok || rec.Owner != owner {
		return storage.ErrNotFound
	}
	rec.Token = cloneToken(&token)
	rec.UpdatedAt = s.nowFunc()
	return nil
}

// GetOAuthClient returns the client registered for issuer.
func (s *Store) GetOAuthClient(_ context.Context, issuer string) (*storage.OAuthClientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.clients[issuer]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneClient(rec), nil
}

// CreateOAuthClient inserts a client record. A second record for the same
// issuer is rejected with storage.ErrConflict.
func (s *Store) CreateOAuthClient(_ context.Context, rec *storage.OAuthClientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[rec.Issuer]; exists {
		return storage.ErrConflict
	}
	s.nextClientID++
	now := s.nowFunc()
	rec.ID = s.nextClientID
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.clients[rec.Issuer] = cloneClient(rec)
	return nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func cloneServer(rec *storage.ServerRecord) *storage.ServerRecord {
	c := *rec
	c.Headers = maps.Clone(rec.Headers)
	c.Token = cloneToken(rec.Token)
	return &c
}

func cloneToken(t *storage.ServerToken) *storage.ServerToken {
	if t == nil {
		return nil
	}
	c := *t
	if t.ExpiresAt != nil {
		exp := *t.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

func cloneClient(rec *storage.OAuthClientRecord) *storage.OAuthClientRecord {
	c := *rec
	if rec.ClientSecret != nil {
		secret := *rec.ClientSecret
		c.ClientSecret = &secret
	}
	c.RegistrationPayload = append([]byte(nil), rec.RegistrationPayload...)
	return &c
}
