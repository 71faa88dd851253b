// internal/session/manager.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/motdgate/motdgate/internal/page"
	"github.com/motdgate/motdgate/internal/secrets"
)

// Manager owns every session belonging to one identity and arbitrates which
// of them may drive the data channel. All mutating operations are serialized
// per identity; page callbacks run outside the lock.
type Manager struct {
	externalID string
	store      secrets.Store
	log        logrus.FieldLogger

	mu            sync.Mutex
	secret        string
	ready         bool
	nextSessionID int
	sessions      map[int]*Session
}

// NewManager creates the record for one identity. The manager is not ready
// to present pages until its rotating secret has been loaded (see
// LoadSecret).
func NewManager(externalID string, store secrets.Store, log logrus.FieldLogger) *Manager {
	return &Manager{
		externalID:    externalID,
		store:         store,
		log:           log.WithField("identity", externalID),
		nextSessionID: 1,
		sessions:      make(map[int]*Session),
	}
}

// ExternalID returns the stable external identity string.
func (m *Manager) ExternalID() string { return m.externalID }

// Ready reports whether the rotating secret has been loaded from the store.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// RotatingSecret returns the identity's current rotating secret, or "" if
// none has been stored yet.
func (m *Manager) RotatingSecret() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secret
}

// LoadSecret fetches the persisted rotating secret and marks the identity
// ready. Run off the message-handling path; a load failure leaves the
// identity not ready so no pages get presented with an unverifiable token.
func (m *Manager) LoadSecret(ctx context.Context) {
	secret, ok, err := m.store.Load(ctx, m.externalID)
	if err != nil {
		m.log.WithError(err).Error("failed to load rotating secret")
		return
	}

	m.mu.Lock()
	if ok {
		m.secret = secret
	}
	m.ready = true
	m.mu.Unlock()
}

// ConfirmSecret rotates the identity's secret. The new value is persisted
// before it becomes visible: acknowledging a rotation the store lost would
// leave the client with a token the server can no longer verify after a
// restart.
func (m *Manager) ConfirmSecret(ctx context.Context, newSecret string) error {
	if err := m.store.Save(ctx, m.externalID, newSecret); err != nil {
		return fmt.Errorf("failed to persist rotated secret: %w", err)
	}

	m.mu.Lock()
	m.secret = newSecret
	m.mu.Unlock()
	return nil
}

// CreateSession allocates the next session id and binds a new session to
// def. Fails with ErrNotReady until the rotating secret load completes.
func (m *Manager) CreateSession(def page.Definition) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return nil, ErrNotReady
	}

	s := newSession(m.nextSessionID, m, def)
	m.sessions[m.nextSessionID] = s
	m.nextSessionID++
	return s, nil
}

// AcquireForChannel hands the requested session to a newly attached channel.
// Exactly one channel may drive one identity's interaction, so every other
// tracked session is signalled ErrorTakenOver and discarded; only the
// requested session survives. Returns nil if the session id is unknown
// (already closed, taken over, or never existed).
func (m *Manager) AcquireForChannel(sessionID int) *Session {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil
	}

	victims := make([]*Session, 0, len(m.sessions)-1)
	for id, other := range m.sessions {
		if id != sessionID {
			victims = append(victims, other)
		}
	}
	m.sessions = map[int]*Session{sessionID: s}
	m.mu.Unlock()

	for _, victim := range victims {
		m.evict(victim, page.ErrorTakenOver)
	}
	return s
}

// CloseAll signals kind to every session and clears the table. Used when
// the identity disconnects.
func (m *Manager) CloseAll(kind page.ErrorKind) {
	m.mu.Lock()
	victims := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		victims = append(victims, s)
	}
	m.sessions = make(map[int]*Session)
	m.mu.Unlock()

	for _, victim := range victims {
		m.evict(victim, kind)
	}
}

// Discard removes a session without signalling it. Normal path for a
// client-initiated close; unknown ids are ignored.
func (m *Manager) Discard(sessionID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// SessionCount returns the number of tracked sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// evict signals one session and marks it closed. Faults from an individual
// page's error hook are logged and isolated so one misbehaving page cannot
// block closing the rest.
func (m *Manager) evict(s *Session, kind page.ErrorKind) {
	if err := m.signalQuietly(s, kind); err != nil && !errors.Is(err, ErrSessionClosed) {
		m.log.WithFields(logrus.Fields{
			"session": s.ID(),
			"kind":    kind.String(),
		}).WithError(err).Error("session error hook failed during eviction")
	}
	s.forceClose()
}

func (m *Manager) signalQuietly(s *Session, kind page.ErrorKind) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.SignalError(kind)
}
