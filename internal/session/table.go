// internal/session/table.go
package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/motdgate/motdgate/internal/page"
	"github.com/motdgate/motdgate/internal/secrets"
)

// Table is the process-wide identity table. The game server announces
// identities as they become active and drop; the channel side resolves them
// by external id.
type Table struct {
	store secrets.Store
	log   logrus.FieldLogger

	mu         sync.Mutex
	identities map[string]*Manager
}

// NewTable builds an empty identity table backed by the given secret store.
func NewTable(store secrets.Store, log logrus.FieldLogger) *Table {
	return &Table{
		store:      store,
		log:        log,
		identities: make(map[string]*Manager),
	}
}

// ClientActive registers an identity and kicks off the asynchronous load of
// its rotating secret. Idempotent: re-announcing an already-known identity
// returns the existing record. Pages cannot be presented until the load
// completes.
func (t *Table) ClientActive(externalID string) *Manager {
	t.mu.Lock()
	m, ok := t.identities[externalID]
	if !ok {
		m = NewManager(externalID, t.store, t.log)
		t.identities[externalID] = m
	}
	t.mu.Unlock()

	if !ok {
		// Store I/O stays off the message-handling path. If the identity
		// drops before the load finishes, the result lands on a detached
		// record and is discarded with it.
		go m.LoadSecret(context.Background())
	}
	return m
}

// Lookup resolves an identity without creating it.
func (t *Table) Lookup(externalID string) (*Manager, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.identities[externalID]
	return m, ok
}

// ClientDropped closes every session of the identity with
// ErrorIdentityDropped and removes the record.
func (t *Table) ClientDropped(externalID string) {
	t.mu.Lock()
	m, ok := t.identities[externalID]
	delete(t.identities, externalID)
	t.mu.Unlock()

	if ok {
		m.CloseAll(page.ErrorIdentityDropped)
	}
}

// DropAll closes every identity's sessions and empties the table. Called on
// level change, when the game server invalidates all client state at once.
func (t *Table) DropAll() {
	t.mu.Lock()
	all := make([]*Manager, 0, len(t.identities))
	for _, m := range t.identities {
		all = append(all, m)
	}
	t.identities = make(map[string]*Manager)
	t.mu.Unlock()

	for _, m := range all {
		m.CloseAll(page.ErrorIdentityDropped)
	}
}
