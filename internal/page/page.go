// internal/page/page.go
package page

import "fmt"

// RequestKind identifies how a page instance was reached: the initial page
// load, a follow-up AJAX exchange, or a long-lived push stream.
type RequestKind int

const (
	RequestInit RequestKind = iota
	RequestAjax
	RequestPush
)

// String returns the wire-protocol name of the request kind.
func (k RequestKind) String() string {
	switch k {
	case RequestInit:
		return "INIT"
	case RequestAjax:
		return "AJAX"
	case RequestPush:
		return "PUSH"
	default:
		return fmt.Sprintf("RequestKind(%d)", int(k))
	}
}

// ParseRequestKind maps a wire-protocol request kind name to its value.
func ParseRequestKind(s string) (RequestKind, bool) {
	switch s {
	case "INIT":
		return RequestInit, true
	case "AJAX":
		return RequestAjax, true
	case "PUSH":
		return RequestPush, true
	default:
		return 0, false
	}
}

// ErrorKind enumerates the reasons a page can be told its session ended or
// its push stream was interrupted.
type ErrorKind int

const (
	// ErrorSwitchedFrom: the session switched to another page while this
	// page held the push stream.
	ErrorSwitchedFrom ErrorKind = iota
	// ErrorTakenOver: another channel attached for the same identity and
	// evicted this session.
	ErrorTakenOver
	// ErrorIdentityDropped: the identity disconnected from the game server.
	ErrorIdentityDropped
	// ErrorPushEnded: the channel carrying the push stream went away.
	ErrorPushEnded
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorSwitchedFrom:
		return "WS_SWITCHED_FROM"
	case ErrorTakenOver:
		return "TAKEN_OVER"
	case ErrorIdentityDropped:
		return "IDENTITY_DROPPED"
	case ErrorPushEnded:
		return "PUSH_ENDED"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sender is the outbound capability handed to a page instance. In
// request/response mode Send captures the single answer for the current
// exchange and Stop is not available; in push mode Send transmits
// immediately and Stop ends the stream.
type Sender interface {
	Send(data any) error
	Stop() error
}

// Context carries everything a page factory needs to build an instance.
// The Sender is fixed at construction time for the mode the instance will
// run in; instances never change mode.
type Context struct {
	IdentityID string
	Kind       RequestKind
	Sender     Sender
}

// Page is one bound page instance. OnDataReceived is invoked once per
// inbound exchange in request/response mode, or once per inbound message in
// push mode. OnError tells a push-mode instance why its stream ended.
//
// A returned error is treated as a page fault: it is logged with context and
// reported to the client, but it never brings the process down.
type Page interface {
	OnDataReceived(data any) error
	OnError(kind ErrorKind)
}

// Factory constructs a page instance for one exchange or one push stream.
type Factory func(ctx Context) Page

// SwitchHook decides whether the identity may leave the owning page for
// newPageID. A nil hook allows every switch.
type SwitchHook func(identityID, newPageID string) (bool, error)

// Descriptor identifies a registered page.
type Descriptor struct {
	Namespace    string
	PageID       string
	SupportsPush bool
}

// Definition is what namespaces register: the descriptor plus the factory
// and the optional switch-authorization hook.
type Definition struct {
	Descriptor
	New               Factory
	OnSwitchRequested SwitchHook
}

// MisuseError reports a page programming error, e.g. answering twice in one
// exchange or pushing outside of push mode. It is distinct from an ordinary
// page fault so it never gets silently swallowed.
type MisuseError struct {
	Namespace string
	PageID    string
	Op        string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("page %q in namespace %q: %s", e.PageID, e.Namespace, e.Op)
}
