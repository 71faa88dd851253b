// internal/protocol/handler.go
package protocol

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/motdgate/motdgate/internal/events"
	"github.com/motdgate/motdgate/internal/page"
	"github.com/motdgate/motdgate/internal/session"
)

// Channel is the raw message channel a handler replies on. The transport
// guarantees discrete messages, delivered reliably and in order, per
// connection. Stop tears the connection down; nothing may be sent after it.
type Channel interface {
	Send(data []byte) error
	Stop()
}

// Handler drives one channel connection. Exactly one message is processed
// at a time, including any synchronous page callback, so the handler needs
// no internal locking.
type Handler struct {
	ch       Channel
	log      logrus.FieldLogger
	registry *page.Registry
	table    *session.Table
	events   *events.Publisher

	identity *session.Manager
	sess     *session.Session
	kind     page.RequestKind
}

// NewHandler binds a protocol handler to one channel connection. events may
// be nil.
func NewHandler(ch Channel, registry *page.Registry, table *session.Table, ev *events.Publisher, log logrus.FieldLogger) *Handler {
	return &Handler{
		ch:       ch,
		log:      log,
		registry: registry,
		table:    table,
		events:   ev,
	}
}

// inboundMessage is the decoded shape of one channel message. Pointer and
// RawMessage fields distinguish "absent" from "null": new_secret is
// mandatory but nullable.
type inboundMessage struct {
	Action      *string         `json:"action"`
	ExternalID  *string         `json:"external_id"`
	SessionID   *int            `json:"session_id"`
	NewSecret   json.RawMessage `json:"new_secret"`
	RequestKind *string         `json:"request_kind"`
	NewPageID   *string         `json:"new_page_id"`
	CustomData  json.RawMessage `json:"custom_data"`
}

type outboundMessage struct {
	Status     string `json:"status"`
	CustomData any    `json:"custom_data,omitempty"`
}

// HandleMessage processes one inbound channel message. Malformed encoding,
// a missing mandatory field, or an unknown action terminates the channel
// without a reply; the channel is assumed unreliable beyond that point.
func (h *Handler) HandleMessage(ctx context.Context, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.log.WithError(err).Debug("malformed channel message")
		h.ch.Stop()
		return
	}
	if msg.Action == nil {
		h.ch.Stop()
		return
	}

	switch *msg.Action {
	case ActionSetIdentity:
		h.handleSetIdentity(ctx, &msg)
	case ActionSwitch:
		h.handleSwitch(&msg)
	case ActionCustomData:
		h.handleCustomData(&msg)
	default:
		h.log.WithField("action", *msg.Action).Debug("unknown channel action")
		h.ch.Stop()
	}
}

func (h *Handler) handleSetIdentity(ctx context.Context, msg *inboundMessage) {
	if msg.ExternalID == nil || msg.SessionID == nil || msg.NewSecret == nil || msg.RequestKind == nil {
		h.ch.Stop()
		return
	}
	if h.identity != nil {
		// An identity is bound once per connection.
		h.ch.Stop()
		return
	}

	kind, ok := page.ParseRequestKind(*msg.RequestKind)
	if !ok {
		h.ch.Stop()
		return
	}

	mgr, ok := h.table.Lookup(*msg.ExternalID)
	if !ok {
		h.fail(StatusUnknownIdentity)
		return
	}
	h.identity = mgr

	sess := mgr.AcquireForChannel(*msg.SessionID)
	if sess == nil {
		h.fail(StatusSessionClosed1)
		return
	}
	h.sess = sess
	h.kind = kind

	if kind == page.RequestPush {
		if err := sess.BindPush(h.pushSend, h.pushStop); err != nil {
			if errors.Is(err, session.ErrPushNotSupported) {
				h.fail(StatusNoPushSupport)
			} else {
				h.fail(StatusSessionClosed1)
			}
			return
		}
	}

	var newSecret *string
	if err := json.Unmarshal(msg.NewSecret, &newSecret); err != nil {
		h.ch.Stop()
		return
	}
	if newSecret != nil {
		if err := mgr.ConfirmSecret(ctx, *newSecret); err != nil {
			h.log.WithError(err).Error("secret rotation refused")
			h.fail(StatusSecretRefused)
			return
		}
	}

	h.sendStatus(StatusOK)
	h.events.Publish(ctx, events.Record{
		Type:       events.TypeChannelAttached,
		IdentityID: mgr.ExternalID(),
		SessionID:  sess.ID(),
		Namespace:  sess.Namespace(),
		PageID:     sess.PageID(),
	})
}

func (h *Handler) handleSwitch(msg *inboundMessage) {
	if msg.NewPageID == nil {
		h.ch.Stop()
		return
	}
	if h.identity == nil || h.sess == nil {
		h.ch.Stop()
		return
	}

	// The switch target is scoped to the current session's namespace.
	def, err := h.registry.Resolve(h.sess.Namespace(), *msg.NewPageID)
	if err != nil {
		h.fail(StatusUnknownPage)
		return
	}

	allowed, err := h.sess.Switch(def)
	if err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			h.fail(StatusSessionClosed2)
			return
		}
		h.log.WithFields(logrus.Fields{
			"page": h.sess.PageID(),
			"to":   *msg.NewPageID,
		}).WithError(err).Error("switch authorization hook failed")
		h.fail(StatusSwitchCallbackRaised)
		return
	}
	if !allowed {
		h.fail(StatusSwitchRefused)
		return
	}

	h.sendStatus(StatusOK)
}

func (h *Handler) handleCustomData(msg *inboundMessage) {
	if msg.CustomData == nil {
		h.ch.Stop()
		return
	}
	if h.identity == nil || h.sess == nil {
		h.ch.Stop()
		return
	}

	var data any
	if err := json.Unmarshal(msg.CustomData, &data); err != nil {
		h.ch.Stop()
		return
	}

	if h.kind == page.RequestPush {
		_, err := h.sess.Deliver(data, page.RequestPush)
		if errors.Is(err, session.ErrSessionClosed) {
			h.fail(StatusSessionClosed2)
			return
		}
		if err != nil {
			// Push is a long-lived stream; one bad message does not end it.
			h.logPageFault(err)
		}
		return
	}

	answer, err := h.sess.Deliver(data, h.kind)
	if err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			h.fail(StatusSessionClosed3)
			return
		}
		h.logPageFault(err)
		h.fail(StatusDataCallbackRaised)
		return
	}

	if answer == nil {
		answer = map[string]any{}
	}
	reply, err := json.Marshal(outboundMessage{Status: StatusOK, CustomData: answer})
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"page": h.sess.PageID(),
		}).WithError(err).Error("page produced a non-encodable answer")
		h.fail(StatusDataCallbackInvalidAnswer)
		return
	}
	if err := h.ch.Send(reply); err != nil {
		h.log.WithError(err).Debug("failed to send answer")
	}
}

// HandleAbort is invoked when the channel dies without a deliberate Stop.
// A push page gets told its transmission ended; everything else needs no
// cleanup here (takeover and disconnect handle session lifetime).
func (h *Handler) HandleAbort() {
	if h.kind != page.RequestPush || h.sess == nil {
		return
	}
	if err := h.sess.SignalError(page.ErrorPushEnded); err != nil && !errors.Is(err, session.ErrSessionClosed) {
		h.log.WithError(err).Warn("failed to signal push end")
	}
}

// pushSend transmits one push payload wrapped in an OK envelope. An
// unencodable payload is a page fault: logged, not transmitted, stream
// stays up.
func (h *Handler) pushSend(data any) error {
	payload, err := json.Marshal(outboundMessage{Status: StatusOK, CustomData: data})
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"page": h.sess.PageID(),
		}).WithError(err).Error("page produced a non-encodable push payload")
		return nil
	}
	return h.ch.Send(payload)
}

// pushStop ends the push transmission with a final status message.
func (h *Handler) pushStop(status string) {
	h.sendStatus(status)
	h.ch.Stop()
}

func (h *Handler) logPageFault(err error) {
	entry := h.log.WithFields(logrus.Fields{
		"identity": h.identity.ExternalID(),
		"session":  h.sess.ID(),
		"page":     h.sess.PageID(),
	})

	var misuse *page.MisuseError
	if errors.As(err, &misuse) {
		entry.WithError(err).Error("page protocol misuse")
		return
	}
	entry.WithError(err).Error("page data callback failed")
}

func (h *Handler) fail(status string) {
	h.sendStatus(status)
	h.ch.Stop()
}

func (h *Handler) sendStatus(status string) {
	payload, err := json.Marshal(outboundMessage{Status: status})
	if err != nil {
		return
	}
	if err := h.ch.Send(payload); err != nil {
		h.log.WithError(err).Debug("failed to send status")
	}
}
