// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"errors"
	"sync"
	"time"

	"github.com/votingday/kiosk/auth"
	"github.com/votingday/kiosk/clock"
)

// Window is how long a voting session stays valid after initiation.
const Window = 30 * time.Minute

var (
	ErrMissing  = errors.New("no active voting session")
	ErrExpired  = errors.New("voting session expired")
	ErrInFlight = errors.New("a vote is already in progress for this session")
)

// Session is one in-progress voting attempt. Secret never leaves the
// server.
type Session struct {
	Token       string
	VoterID     string
	Secret      string
	InitiatedAt time.Time
}

type entry struct {
	session Session
	busy    bool
	// pending marks a reservation that has not been filled yet
	pending bool
}

// Manager stores voting sessions in memory. Expiry is checked lazily on
// every access; nothing runs in the background.
type Manager struct {
	clock clock.Clock

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewManager(clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	return &Manager{
		clock:    clk,
		sessions: make(map[string]*entry),
	}
}

// Open starts a session for voterID. If token names a live session that
// is not in the middle of a cast, the token is kept and the session is
// replaced; otherwise a fresh token is issued.
func (m *Manager) Open(token, voterID, secret string) (Session, error) {
	reserved, err := m.Reserve(token)
	if err != nil {
		return Session{}, err
	}
	return m.Fill(reserved, voterID, secret)
}

// Reserve claims a token for an initiation that has side effects to run
// before the session exists. A live idle session on token is marked busy
// and kept until Fill or Cancel; otherwise a fresh token is reserved.
// It returns ErrInFlight if a cast or another initiation holds token.
func (m *Manager) Reserve(token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.sweepLocked(now)

	if e, ok := m.sessions[token]; ok && token != "" {
		if e.busy {
			return "", ErrInFlight
		}
		e.busy = true
		return token, nil
	}

	fresh, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	m.sessions[fresh] = &entry{
		session: Session{Token: fresh, InitiatedAt: now},
		busy:    true,
		pending: true,
	}
	return fresh, nil
}

// Fill completes a reservation: the session now belongs to voterID with
// a new secret, and its window starts over.
func (m *Manager) Fill(token, voterID, secret string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[token]
	if !ok || !e.busy {
		return Session{}, ErrMissing
	}

	e.session = Session{
		Token:       token,
		VoterID:     voterID,
		Secret:      secret,
		InitiatedAt: m.clock.Now(),
	}
	e.busy = false
	e.pending = false

	return e.session, nil
}

// Cancel abandons a reservation. A session that existed before Reserve
// is left as it was.
func (m *Manager) Cancel(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[token]
	if !ok {
		return
	}
	if e.pending {
		delete(m.sessions, token)
		return
	}
	e.busy = false
}

// Validate returns the live session for token. An expired session is
// destroyed and reported as ErrExpired.
func (m *Manager) Validate(token string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.liveLocked(token)
	if err != nil {
		return Session{}, err
	}
	return e.session, nil
}

// Begin validates the session and marks it busy until Release or
// Consume. A second Begin on a busy session returns ErrInFlight.
func (m *Manager) Begin(token string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.liveLocked(token)
	if err != nil {
		return Session{}, err
	}
	if e.busy {
		return Session{}, ErrInFlight
	}

	e.busy = true
	return e.session, nil
}

// Release clears the busy mark and keeps the session for a retry.
func (m *Manager) Release(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[token]; ok {
		e.busy = false
	}
}

// Consume destroys the session so its secret cannot be reused.
func (m *Manager) Consume(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
}

// CheckLive re-checks expiry for a session that is already busy. It is
// called right before a vote commits so a cast that started inside the
// window cannot commit after it.
func (m *Manager) CheckLive(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.liveLocked(token)
	return err
}

// Len returns the number of stored sessions, expired ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

func (m *Manager) liveLocked(token string) (*entry, error) {
	if token == "" {
		return nil, ErrMissing
	}

	e, ok := m.sessions[token]
	if !ok || e.pending {
		return nil, ErrMissing
	}

	if m.clock.Now().Sub(e.session.InitiatedAt) > Window {
		delete(m.sessions, token)
		return nil, ErrExpired
	}

	return e, nil
}

// sweepLocked drops idle expired sessions so abandoned kiosks do not
// accumulate. Busy sessions are left for their cast to observe.
func (m *Manager) sweepLocked(now time.Time) {
	for token, e := range m.sessions {
		if !e.busy && now.Sub(e.session.InitiatedAt) > Window {
			delete(m.sessions, token)
		}
	}
}
