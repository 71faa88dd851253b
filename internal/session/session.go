// internal/session/session.go
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/motdgate/motdgate/internal/page"
)

var (
	// ErrSessionClosed is the recoverable "session is gone" outcome. It is
	// expected control flow, not a fault: bulk-closing callers catch and
	// ignore it.
	ErrSessionClosed = errors.New("session closed")

	// ErrPushNotSupported indicates the bound page cannot enter push mode.
	ErrPushNotSupported = errors.New("page does not support push")

	// ErrNotReady indicates the identity's rotating secret has not been
	// loaded yet, so no page may be presented.
	ErrNotReady = errors.New("identity secret not loaded yet")
)

// Stop reasons sent to the client when a push transmission is ended from
// the server side.
const (
	StopSwitchedFrom    = "ERROR_WS_SWITCHED_FROM"
	StopTakenOver       = "ERROR_SESSION_TAKEN_OVER"
	StopIdentityDropped = "ERROR_SESSION_IDENTITY_DROPPED"
	StopStoppedByPage   = "ERROR_WS_TRANSMISSION_STOPPED_BY_PAGE"
)

// PushSendFunc transmits one push payload to the client.
type PushSendFunc func(data any) error

// PushStopFunc ends the push transmission with the given status reason.
type PushStopFunc func(status string)

// Session is one identity's binding to a page. It survives across
// request/response exchanges until switched, closed, or evicted. A session
// is owned by exactly one Manager and at most one channel drives it at a
// time.
type Session struct {
	id  int
	mgr *Manager

	mu          sync.Mutex
	def         page.Definition
	closed      bool
	pushEnabled bool
	pushPage    page.Page
	pushStop    PushStopFunc
}

func newSession(id int, mgr *Manager, def page.Definition) *Session {
	return &Session{
		id:          id,
		mgr:         mgr,
		def:         def,
		pushEnabled: def.SupportsPush,
	}
}

// ID returns the per-identity session id (monotonic, starting at 1).
func (s *Session) ID() int { return s.id }

// Namespace returns the namespace of the currently bound page.
func (s *Session) Namespace() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def.Namespace
}

// PageID returns the page id of the currently bound page.
func (s *Session) PageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def.PageID
}

// PushEnabled reports whether the currently bound page supports push mode.
func (s *Session) PushEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushEnabled
}

// Closed reports whether the session reached its terminal state.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Switch rebinds the session to newDef if the current page's switch hook
// allows it. A bound push instance is torn down first: its stream is stopped
// with StopSwitchedFrom and it receives exactly one ErrorSwitchedFrom
// notification. Returns (false, nil) when the hook refuses; nothing changes
// in that case.
//
// The hook runs against a snapshot and commits afterwards, so it cannot
// observe the session mid-switch.
func (s *Session) Switch(newDef page.Definition) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrSessionClosed
	}
	hook := s.def.OnSwitchRequested
	identityID := s.mgr.ExternalID()
	s.mu.Unlock()

	if hook != nil {
		allowed, err := runSwitchHook(hook, identityID, newDef.PageID)
		if err != nil {
			return false, fmt.Errorf("switch hook for %q: %w", newDef.PageID, err)
		}
		if !allowed {
			return false, nil
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrSessionClosed
	}
	oldPage, oldStop := s.pushPage, s.pushStop
	s.pushPage, s.pushStop = nil, nil
	s.def = newDef
	s.pushEnabled = newDef.SupportsPush
	s.mu.Unlock()

	if oldPage != nil {
		if oldStop != nil {
			oldStop(StopSwitchedFrom)
		}
		s.notify(oldPage, page.ErrorSwitchedFrom)
	}
	return true, nil
}

// runSwitchHook converts a panicking hook into an error so one misbehaving
// page cannot take the process down.
func runSwitchHook(hook page.SwitchHook, identityID, newPageID string) (allowed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			allowed = false
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hook(identityID, newPageID)
}

// deliverData converts a panicking data callback into an ordinary page
// fault, so it surfaces as an error status instead of unwinding through the
// channel's read loop.
func deliverData(p page.Page, data any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.OnDataReceived(data)
}

// BindPush creates the push-mode page instance and records the channel's
// send/stop callbacks. Only valid while the bound page supports push.
func (s *Session) BindPush(send PushSendFunc, stop PushStopFunc) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.pushEnabled {
		s.mu.Unlock()
		return ErrPushNotSupported
	}
	def := s.def
	identityID := s.mgr.ExternalID()
	s.mu.Unlock()

	p := def.New(page.Context{
		IdentityID: identityID,
		Kind:       page.RequestPush,
		Sender:     &pushSender{send: send, stop: stop},
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.pushPage = p
	s.pushStop = stop
	s.mu.Unlock()
	return nil
}

// Deliver invokes the bound page for one inbound payload.
//
// For RequestInit and RequestAjax a fresh instance is constructed with an
// answer-capturing sender; at most one synchronous answer is allowed and the
// captured answer (or nil) is returned. Answering twice, or calling Stop,
// is reported as a *page.MisuseError.
//
// For RequestPush the already-bound push instance receives the payload; any
// outgoing data flows through its push sender asynchronously and the
// returned answer is always nil.
//
// A panicking callback is contained and reported as an ordinary page fault.
func (s *Session) Deliver(data any, kind page.RequestKind) (any, error) {
	if kind == page.RequestPush {
		s.mu.Lock()
		p := s.pushPage
		closed := s.closed
		s.mu.Unlock()
		if closed || p == nil {
			return nil, ErrSessionClosed
		}
		return nil, deliverData(p, data)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	def := s.def
	identityID := s.mgr.ExternalID()
	s.mu.Unlock()

	capture := &captureSender{namespace: def.Namespace, pageID: def.PageID}
	p := def.New(page.Context{
		IdentityID: identityID,
		Kind:       kind,
		Sender:     capture,
	})

	err := deliverData(p, data)
	if capture.misuse != nil {
		// Misuse wins even if the page swallowed the Send error.
		return nil, capture.misuse
	}
	if err != nil {
		return nil, err
	}
	return capture.answer, nil
}

// Close moves the session to its terminal state and removes it from the
// owning manager. Idempotent; a second Close is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pushPage, s.pushStop = nil, nil
	s.mu.Unlock()

	s.mgr.Discard(s.id)
}

// forceClose marks the session closed without touching the manager's table.
// Used by the manager itself during eviction, when the table is already
// being rewritten.
func (s *Session) forceClose() {
	s.mu.Lock()
	s.closed = true
	s.pushPage, s.pushStop = nil, nil
	s.mu.Unlock()
}

// SignalError tells the bound push instance its stream ended and why. For
// ErrorTakenOver and ErrorIdentityDropped the transmission is also stopped.
// A no-op when no push instance is bound; fails with ErrSessionClosed on a
// closed session so bulk-closing callers can skip it.
func (s *Session) SignalError(kind page.ErrorKind) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	p, stop := s.pushPage, s.pushStop
	s.pushPage, s.pushStop = nil, nil
	s.mu.Unlock()

	if p == nil {
		return nil
	}

	switch kind {
	case page.ErrorTakenOver:
		if stop != nil {
			stop(StopTakenOver)
		}
	case page.ErrorIdentityDropped:
		if stop != nil {
			stop(StopIdentityDropped)
		}
	}

	s.notify(p, kind)
	return nil
}

// notify delivers an error kind to a page instance, containing any panic.
func (s *Session) notify(p page.Page, kind page.ErrorKind) {
	defer func() {
		if r := recover(); r != nil {
			s.mgr.log.WithFields(logrus.Fields{
				"session": s.id,
				"kind":    kind.String(),
				"panic":   r,
			}).Error("page error hook panicked")
		}
	}()
	p.OnError(kind)
}

// pushSender is the Sender for push-mode instances: Send transmits
// immediately, Stop ends the stream with the page-initiated reason.
type pushSender struct {
	send PushSendFunc
	stop PushStopFunc
}

func (ps *pushSender) Send(data any) error { return ps.send(data) }

func (ps *pushSender) Stop() error {
	ps.stop(StopStoppedByPage)
	return nil
}

// captureSender is the Sender for request/response instances: it captures
// the single synchronous answer for the current exchange.
type captureSender struct {
	namespace string
	pageID    string
	answer    any
	answered  bool
	misuse    *page.MisuseError
}

func (cs *captureSender) Send(data any) error {
	if cs.answered {
		cs.misuse = &page.MisuseError{
			Namespace: cs.namespace,
			PageID:    cs.pageID,
			Op:        "attempt to send data twice in one exchange",
		}
		return cs.misuse
	}
	cs.answered = true
	cs.answer = data
	return nil
}

func (cs *captureSender) Stop() error {
	cs.misuse = &page.MisuseError{
		Namespace: cs.namespace,
		PageID:    cs.pageID,
		Op:        "attempt to stop a push transmission outside push mode",
	}
	return cs.misuse
}
