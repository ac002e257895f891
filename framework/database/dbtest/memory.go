// Package dbtest provides an in-memory database.Store for tests that need
// the data-access contracts without PostgreSQL.
package dbtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/km-arc/coreapi/framework/container"
	"github.com/km-arc/coreapi/framework/database"
)

// Memory holds committed entities shared by every session.
type Memory struct {
	mu    sync.Mutex
	sets  map[string]map[string][]byte
	saves int
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{sets: map[string]map[string][]byte{}}
}

// Saves reports how many sessions committed.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Len returns the number of committed entities in set.
func (m *Memory) Len(set string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sets[set])
}

// Bind registers a scoped Session over m as database.Store and
// database.UnitOfWork, the way the PostgreSQL data context is bound.
func Bind(c *container.Container, m *Memory) {
	container.Register(c, container.Scoped, func(container.Resolver) (*Session, error) {
		return m.Session(), nil
	})
	container.Alias[database.Store, *Session](c)
	container.Alias[database.UnitOfWork, *Session](c)
}

// Session is one unit of work: writes stay pending until SaveChanges and
// are dropped by Rollback or Close.
type Session struct {
	m       *Memory
	mu      sync.Mutex
	pending map[string]map[string][]byte
	deleted map[string]map[string]bool
}

// Session starts a unit of work over m.
func (m *Memory) Session() *Session {
	s := &Session{m: m}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.pending = map[string]map[string][]byte{}
	s.deleted = map[string]map[string]bool{}
}

// lookup must be called with both locks held.
func (s *Session) lookup(set, id string) ([]byte, bool) {
	if b, ok := s.pending[set][id]; ok {
		return b, true
	}
	if s.deleted[set][id] {
		return nil, false
	}
	b, ok := s.m.sets[set][id]
	return b, ok
}

func (s *Session) lock() func() {
	s.mu.Lock()
	s.m.mu.Lock()
	return func() {
		s.m.mu.Unlock()
		s.mu.Unlock()
	}
}

func (s *Session) Find(_ context.Context, set, id string) ([]byte, error) {
	defer s.lock()()
	b, ok := s.lookup(set, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", database.ErrNotFound, set, id)
	}
	return b, nil
}

func (s *Session) List(_ context.Context, set string) ([]database.Row, error) {
	defer s.lock()()
	ids := map[string]bool{}
	for id := range s.m.sets[set] {
		ids[id] = true
	}
	for id := range s.pending[set] {
		ids[id] = true
	}
	var rows []database.Row
	for id := range ids {
		if b, ok := s.lookup(set, id); ok {
			rows = append(rows, database.Row{ID: id, Body: b})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (s *Session) Upsert(_ context.Context, set, id string, body []byte) error {
	defer s.lock()()
	if s.pending[set] == nil {
		s.pending[set] = map[string][]byte{}
	}
	s.pending[set][id] = body
	delete(s.deleted[set], id)
	return nil
}

func (s *Session) Delete(_ context.Context, set, id string) error {
	defer s.lock()()
	if _, ok := s.lookup(set, id); !ok {
		return fmt.Errorf("%w: %s/%s", database.ErrNotFound, set, id)
	}
	delete(s.pending[set], id)
	if s.deleted[set] == nil {
		s.deleted[set] = map[string]bool{}
	}
	s.deleted[set][id] = true
	return nil
}

func (s *Session) SaveChanges(context.Context) error {
	defer s.lock()()
	for set, ids := range s.deleted {
		for id := range ids {
			delete(s.m.sets[set], id)
		}
	}
	for set, rows := range s.pending {
		if s.m.sets[set] == nil {
			s.m.sets[set] = map[string][]byte{}
		}
		for id, b := range rows {
			s.m.sets[set][id] = b
		}
	}
	s.reset()
	s.m.saves++
	return nil
}

func (s *Session) Rollback(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// Close discards unsaved work.
func (s *Session) Close() error { return s.Rollback(context.Background()) }
