package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager keeps the live sessions of a server process. Sessions idle for
// longer than idleTimeout are dropped by the sweep loop.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[uuid.UUID]*Session
	gen         Generator
	opts        Options
	speakerFor  func(id uuid.UUID) Speaker
	idleTimeout time.Duration
	stopChan    chan struct{}
	stopOnce    sync.Once
}

func NewManager(gen Generator, opts Options, idleTimeout time.Duration) *Manager {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{
		sessions:    make(map[uuid.UUID]*Session),
		gen:         gen,
		opts:        opts,
		idleTimeout: idleTimeout,
		stopChan:    make(chan struct{}),
	}
}

// WithSpeakers makes every session created afterwards use the speaker
// returned by f for its own id.
func (m *Manager) WithSpeakers(f func(id uuid.UUID) Speaker) *Manager {
	m.mu.Lock()
	m.speakerFor = f
	m.mu.Unlock()
	return m
}

func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	opts := m.opts
	if m.speakerFor != nil {
		opts.Speaker = m.speakerFor(id)
	}
	s := New(id, m.gen, opts)
	m.sessions[s.id] = s
	return s
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	s.publishClosed()
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) Start() {
	if m.idleTimeout <= 0 {
		return
	}
	go m.loop()
	log.Printf("Session sweeper started (idle timeout %s)", m.idleTimeout)
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Manager) loop() {
	interval := m.idleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			if n := m.sweep(m.opts.Clock()); n > 0 {
				log.Printf("Expired %d idle sessions", n)
			}
		}
	}
}

// sweep removes sessions idle since before now-idleTimeout. Sessions with a
// call in flight are kept.
func (m *Manager) sweep(now time.Time) int {
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.expireIfIdle(now, m.idleTimeout) {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.publishClosed()
	}
	return len(expired)
}
