// internal/presenter/presenter_test.go
package presenter

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motdgate/motdgate/internal/auth"
	"github.com/motdgate/motdgate/internal/page"
	"github.com/motdgate/motdgate/internal/secrets"
	"github.com/motdgate/motdgate/internal/session"
)

type nopPage struct{}

func (nopPage) OnDataReceived(data any) error { return nil }
func (nopPage) OnError(kind page.ErrorKind)   {}

func testDef() page.Definition {
	return page.Definition{
		Descriptor: page.Descriptor{Namespace: "stats", PageID: "overview"},
		New:        func(ctx page.Context) page.Page { return nopPage{} },
	}
}

func TestExpand(t *testing.T) {
	url := Expand("http://{server_addr}/m/{server_id}/{namespace}/{page_id}/{identity_id}/{auth_method}/{auth_token}/{session_id}/", Fields{
		ServerAddr: "10.0.0.1",
		ServerID:   "srv1",
		Namespace:  "stats",
		PageID:     "overview",
		IdentityID: "76561198000000001",
		AuthMethod: auth.AuthMethodGameServer,
		AuthToken:  "deadbeef",
		SessionID:  3,
	})
	assert.Equal(t, "http://10.0.0.1/m/srv1/stats/overview/76561198000000001/0/deadbeef/3/", url)
}

func TestSendPageDeliversURLWithToken(t *testing.T) {
	tokens := auth.NewTokenService("srv1", []byte("0123456789abcdef0123456789abcdef"))
	mgr := session.NewManager("76561198000000001", secrets.NewMemoryStore(), logrus.New())
	mgr.LoadSecret(context.Background())

	var delivered []string
	p := New(Options{
		ServerID:    "srv1",
		ServerAddr:  "10.0.0.1",
		URLTemplate: "http://web/{page_id}/{auth_method}/{auth_token}/{session_id}",
		Tokens:      tokens,
		Deliver: func(identityID, url string) error {
			delivered = append(delivered, url)
			return nil
		},
		Log: logrus.New(),
	})

	sess, url, err := p.SendPage(context.Background(), mgr, testDef())
	require.NoError(t, err)
	assert.Equal(t, 1, sess.ID())
	assert.Equal(t, []string{url}, delivered)

	wantToken := tokens.Token("", "stats", "76561198000000001", "overview", 1)
	assert.Equal(t, "http://web/overview/0/"+wantToken+"/1", url)
}

func TestSendPageNotReady(t *testing.T) {
	tokens := auth.NewTokenService("srv1", []byte("0123456789abcdef0123456789abcdef"))
	mgr := session.NewManager("76561198000000001", secrets.NewMemoryStore(), logrus.New())

	p := New(Options{URLTemplate: "http://web/{session_id}", Tokens: tokens, Log: logrus.New()})
	_, _, err := p.SendPage(context.Background(), mgr, testDef())
	assert.ErrorIs(t, err, session.ErrNotReady)
}

func TestSendPageDeliveryFailureClosesSession(t *testing.T) {
	tokens := auth.NewTokenService("srv1", []byte("0123456789abcdef0123456789abcdef"))
	mgr := session.NewManager("76561198000000001", secrets.NewMemoryStore(), logrus.New())
	mgr.LoadSecret(context.Background())

	p := New(Options{
		URLTemplate: "http://web/{session_id}",
		Tokens:      tokens,
		Deliver:     func(identityID, url string) error { return assert.AnError },
		Log:         logrus.New(),
	})

	_, _, err := p.SendPage(context.Background(), mgr, testDef())
	require.Error(t, err)
	assert.Equal(t, 0, mgr.SessionCount(), "undeliverable page must not leak a session")
}

func TestSendPageWeb(t *testing.T) {
	tokens := auth.NewTokenService("srv1", []byte("0123456789abcdef0123456789abcdef"))
	web, err := auth.NewWebTokenService(0)
	require.NoError(t, err)
	mgr := session.NewManager("76561198000000001", secrets.NewMemoryStore(), logrus.New())
	mgr.LoadSecret(context.Background())

	p := New(Options{
		URLTemplate: "http://web/{auth_method}/{auth_token}",
		Tokens:      tokens,
		Web:         web,
		Log:         logrus.New(),
	})

	sess, url, err := p.SendPageWeb(context.Background(), mgr, testDef())
	require.NoError(t, err)

	rest, found := strings.CutPrefix(url, "http://web/1/")
	require.True(t, found, "web auth method must be 1, got %s", url)

	identityID, sessionID, err := web.Verify(rest)
	require.NoError(t, err)
	assert.Equal(t, "76561198000000001", identityID)
	assert.Equal(t, sess.ID(), sessionID)
}
