// internal/presenter/presenter.go
package presenter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/motdgate/motdgate/internal/auth"
	"github.com/motdgate/motdgate/internal/events"
	"github.com/motdgate/motdgate/internal/page"
	"github.com/motdgate/motdgate/internal/session"
)

// DeliverFunc hands a presented URL to the client through whatever UI
// channel the game server provides (VGUI message, console, chat link).
type DeliverFunc func(identityID, url string) error

// Presenter creates sessions and presents their page URLs to clients. The
// URL embeds the capability token that authorizes the later channel
// connection.
type Presenter struct {
	serverID    string
	serverAddr  string
	urlTemplate string
	tokens      *auth.TokenService
	web         *auth.WebTokenService
	deliver     DeliverFunc
	events      *events.Publisher
	log         logrus.FieldLogger
	debug       bool
}

// Options configures a Presenter. Web and Events may be nil; Deliver may be
// nil when only URLs are wanted (debug runs, tests).
type Options struct {
	ServerID    string
	ServerAddr  string
	URLTemplate string
	Tokens      *auth.TokenService
	Web         *auth.WebTokenService
	Deliver     DeliverFunc
	Events      *events.Publisher
	Log         logrus.FieldLogger
	Debug       bool
}

func New(opts Options) *Presenter {
	return &Presenter{
		serverID:    opts.ServerID,
		serverAddr:  opts.ServerAddr,
		urlTemplate: opts.URLTemplate,
		tokens:      opts.Tokens,
		web:         opts.Web,
		deliver:     opts.Deliver,
		events:      opts.Events,
		log:         opts.Log,
		debug:       opts.Debug,
	}
}

// SendPage creates a new session bound to def for the identity, builds the
// page URL with the game-server capability digest, and delivers it. Fails
// with session.ErrNotReady while the identity's rotating secret is still
// loading.
func (p *Presenter) SendPage(ctx context.Context, mgr *session.Manager, def page.Definition) (*session.Session, string, error) {
	return p.sendPage(ctx, mgr, def, auth.AuthMethodGameServer)
}

// SendPageWeb is SendPage with the WEB auth method: the URL carries a JWT
// minted for the session instead of the capability digest.
func (p *Presenter) SendPageWeb(ctx context.Context, mgr *session.Manager, def page.Definition) (*session.Session, string, error) {
	if p.web == nil {
		return nil, "", fmt.Errorf("web auth method is not configured")
	}
	return p.sendPage(ctx, mgr, def, auth.AuthMethodWeb)
}

func (p *Presenter) sendPage(ctx context.Context, mgr *session.Manager, def page.Definition, method auth.AuthMethod) (*session.Session, string, error) {
	sess, err := mgr.CreateSession(def)
	if err != nil {
		return nil, "", err
	}

	var token string
	switch method {
	case auth.AuthMethodWeb:
		token, err = p.web.Mint(mgr.ExternalID(), sess.ID())
		if err != nil {
			sess.Close()
			return nil, "", fmt.Errorf("failed to mint web token: %w", err)
		}
	default:
		token = p.tokens.Token(mgr.RotatingSecret(), def.Namespace, mgr.ExternalID(), def.PageID, sess.ID())
	}

	url := Expand(p.urlTemplate, Fields{
		ServerAddr: p.serverAddr,
		ServerID:   p.serverID,
		Namespace:  def.Namespace,
		PageID:     def.PageID,
		IdentityID: mgr.ExternalID(),
		AuthMethod: method,
		AuthToken:  token,
		SessionID:  sess.ID(),
	})

	if p.debug {
		p.log.WithFields(logrus.Fields{
			"identity": mgr.ExternalID(),
			"session":  sess.ID(),
			"url":      url,
		}).Debug("presenting page")
	}

	if p.deliver != nil {
		if err := p.deliver(mgr.ExternalID(), url); err != nil {
			sess.Close()
			return nil, "", fmt.Errorf("failed to deliver page url: %w", err)
		}
	}

	p.events.Publish(ctx, events.Record{
		Type:       events.TypeSessionCreated,
		IdentityID: mgr.ExternalID(),
		SessionID:  sess.ID(),
		Namespace:  def.Namespace,
		PageID:     def.PageID,
	})
	return sess, url, nil
}

// Fields are the values substituted into a URL template.
type Fields struct {
	ServerAddr string
	ServerID   string
	Namespace  string
	PageID     string
	IdentityID string
	AuthMethod auth.AuthMethod
	AuthToken  string
	SessionID  int
}

// Expand substitutes the {placeholder} fields of a URL template.
func Expand(template string, f Fields) string {
	r := strings.NewReplacer(
		"{server_addr}", f.ServerAddr,
		"{server_id}", f.ServerID,
		"{namespace}", f.Namespace,
		"{page_id}", f.PageID,
		"{identity_id}", f.IdentityID,
		"{auth_method}", strconv.Itoa(int(f.AuthMethod)),
		"{auth_token}", f.AuthToken,
		"{session_id}", strconv.Itoa(f.SessionID),
	)
	return r.Replace(template)
}
