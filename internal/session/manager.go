package session

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"pdf-qa/internal/helper"
	"pdf-qa/internal/rag"
)

// Manager keeps sessions alive while they are used. A session idle for
// longer than the TTL is evicted and its index discarded.
type Manager struct {
	sessions    *cache.Cache
	ttl         time.Duration
	uploadDir   string
	newPipeline func() *rag.RAG
}

func NewManager(ttl time.Duration, uploadDir string, newPipeline func() *rag.RAG) *Manager {
	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(id string, v interface{}) {
		s, ok := v.(*Session)
		if !ok {
			return
		}
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("Error closing session")
		}
		log.Info().Str("session", id).Msg("Session ended")
	})
	return &Manager{
		sessions:    c,
		ttl:         ttl,
		uploadDir:   uploadDir,
		newPipeline: newPipeline,
	}
}

// Create starts a new session.
func (m *Manager) Create() (*Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s := New(id, m.newPipeline(), m.uploadDir)
	m.sessions.Set(id, s, m.ttl)
	log.Info().Str("session", id).Msg("Session started")
	return s, nil
}

// Get returns the live session with id and extends its lifetime.
func (m *Manager) Get(id string) (*Session, bool) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	m.sessions.Set(id, s, m.ttl)
	return s, true
}

// End discards the session immediately.
func (m *Manager) End(id string) {
	m.sessions.Delete(id)
}

func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// Close ends every session.
func (m *Manager) Close() {
	for id := range m.sessions.Items() {
		m.sessions.Delete(id)
	}
}
