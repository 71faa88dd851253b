// internal/session/manager_test.go
package session

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motdgate/motdgate/internal/page"
	"github.com/motdgate/motdgate/internal/secrets"
)

func TestCreateSessionRequiresReady(t *testing.T) {
	m := NewManager("76561198000000001", secrets.NewMemoryStore(), logrus.New())
	log := &pageLog{}

	_, err := m.CreateSession(testDef("stats", "overview", false, log))
	assert.ErrorIs(t, err, ErrNotReady)

	m.LoadSecret(context.Background())
	_, err = m.CreateSession(testDef("stats", "overview", false, log))
	assert.NoError(t, err)
}

func TestLoadSecretPicksUpStoredValue(t *testing.T) {
	store := secrets.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "id-a", "stored-salt"))

	m := NewManager("id-a", store, logrus.New())
	assert.Equal(t, "", m.RotatingSecret())

	m.LoadSecret(context.Background())
	assert.True(t, m.Ready())
	assert.Equal(t, "stored-salt", m.RotatingSecret())
}

func TestConfirmSecretPersistsBeforeApplying(t *testing.T) {
	store := secrets.NewMemoryStore()
	m := NewManager("id-a", store, logrus.New())
	m.LoadSecret(context.Background())

	require.NoError(t, m.ConfirmSecret(context.Background(), "fresh-salt"))
	assert.Equal(t, "fresh-salt", m.RotatingSecret())

	saved, ok, err := store.Load(context.Background(), "id-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh-salt", saved)
}

func TestConfirmSecretSaveFailureLeavesOldSecret(t *testing.T) {
	store := &failingStore{Store: secrets.NewMemoryStore()}
	m := NewManager("id-a", store, logrus.New())
	m.LoadSecret(context.Background())
	require.NoError(t, m.ConfirmSecret(context.Background(), "old"))

	store.failSaves = true
	err := m.ConfirmSecret(context.Background(), "new")
	require.Error(t, err)
	assert.Equal(t, "old", m.RotatingSecret())
}

func TestAcquireForChannelEvictsAllOthers(t *testing.T) {
	m := newReadyManager(t)
	log := &pageLog{}

	var sessions []*Session
	for i := 0; i < 4; i++ {
		s, err := m.CreateSession(testDef("stats", "live", true, log))
		require.NoError(t, err)
		sessions = append(sessions, s)
	}

	// Bind push handlers on two victims so eviction notifications are
	// observable.
	stops := map[int][]string{}
	for _, s := range sessions[:2] {
		id := s.ID()
		require.NoError(t, s.BindPush(
			func(data any) error { return nil },
			func(status string) { stops[id] = append(stops[id], status) },
		))
	}

	survivor := m.AcquireForChannel(3)
	require.NotNil(t, survivor)
	assert.Equal(t, 3, survivor.ID())
	assert.Equal(t, 1, m.SessionCount())

	for _, s := range sessions {
		if s.ID() == 3 {
			assert.False(t, s.Closed())
			continue
		}
		assert.True(t, s.Closed(), "session %d must be closed by takeover", s.ID())
	}
	assert.Equal(t, []string{StopTakenOver}, stops[1])
	assert.Equal(t, []string{StopTakenOver}, stops[2])
}

func TestAcquireForChannelUnknownSession(t *testing.T) {
	m := newReadyManager(t)
	log := &pageLog{}
	s, err := m.CreateSession(testDef("stats", "overview", false, log))
	require.NoError(t, err)

	assert.Nil(t, m.AcquireForChannel(42))
	assert.Equal(t, 1, m.SessionCount(), "a miss must not evict anything")
	assert.False(t, s.Closed())
}

func TestEvictionIsolatesPanickingHooks(t *testing.T) {
	m := newReadyManager(t)

	panicking := &pageLog{}
	panickingDef := page.Definition{
		Descriptor: page.Descriptor{Namespace: "stats", PageID: "bad", SupportsPush: true},
		New: func(ctx page.Context) page.Page {
			return &panickingPage{}
		},
	}
	well := &pageLog{}

	bad, err := m.CreateSession(panickingDef)
	require.NoError(t, err)
	good, err := m.CreateSession(testDef("stats", "live", true, well))
	require.NoError(t, err)
	target, err := m.CreateSession(testDef("stats", "live", true, panicking))
	require.NoError(t, err)

	require.NoError(t, bad.BindPush(func(any) error { return nil }, func(string) {}))
	require.NoError(t, good.BindPush(func(any) error { return nil }, func(string) {}))

	survivor := m.AcquireForChannel(target.ID())
	require.NotNil(t, survivor)

	// The panicking page must not have blocked the well-behaved one.
	assert.Equal(t, []page.ErrorKind{page.ErrorTakenOver}, well.last().errs)
	assert.True(t, bad.Closed())
	assert.True(t, good.Closed())
}

func TestCloseAllSignalsEverySession(t *testing.T) {
	m := newReadyManager(t)
	log := &pageLog{}

	for i := 0; i < 3; i++ {
		s, err := m.CreateSession(testDef("stats", "live", true, log))
		require.NoError(t, err)
		require.NoError(t, s.BindPush(func(any) error { return nil }, func(string) {}))
	}

	m.CloseAll(page.ErrorIdentityDropped)
	assert.Equal(t, 0, m.SessionCount())
	for _, inst := range log.instances {
		assert.Equal(t, []page.ErrorKind{page.ErrorIdentityDropped}, inst.errs)
	}
}

func TestTableLifecycle(t *testing.T) {
	table := NewTable(secrets.NewMemoryStore(), logrus.New())

	m := table.ClientActive("id-a")
	require.NotNil(t, m)
	same := table.ClientActive("id-a")
	assert.Same(t, m, same, "re-announcing must not replace the record")

	got, ok := table.Lookup("id-a")
	require.True(t, ok)
	assert.Same(t, m, got)

	_, ok = table.Lookup("id-b")
	assert.False(t, ok)

	table.ClientDropped("id-a")
	_, ok = table.Lookup("id-a")
	assert.False(t, ok)

	// Dropping an unknown identity is a no-op.
	table.ClientDropped("id-z")
}

func TestTableDropAll(t *testing.T) {
	table := NewTable(secrets.NewMemoryStore(), logrus.New())
	table.ClientActive("id-a")
	table.ClientActive("id-b")

	table.DropAll()
	_, ok := table.Lookup("id-a")
	assert.False(t, ok)
	_, ok = table.Lookup("id-b")
	assert.False(t, ok)
}

// panickingPage blows up in every hook.
type panickingPage struct{}

func (p *panickingPage) OnDataReceived(data any) error { panic("data") }
func (p *panickingPage) OnError(kind page.ErrorKind)   { panic("error hook") }

// failingStore wraps a Store and fails saves on demand.
type failingStore struct {
	secrets.Store
	failSaves bool
}

func (s *failingStore) Save(ctx context.Context, externalID, secret string) error {
	if s.failSaves {
		return assert.AnError
	}
	return s.Store.Save(ctx, externalID, secret)
}
