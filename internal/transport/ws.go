// internal/transport/ws.go
package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/motdgate/motdgate/internal/events"
	"github.com/motdgate/motdgate/internal/page"
	"github.com/motdgate/motdgate/internal/protocol"
	"github.com/motdgate/motdgate/internal/session"
)

// Subprotocol is the WebSocket subprotocol clients must request on the
// channel endpoint.
const Subprotocol = "motd"

// ChannelWSHandler upgrades the HTTP connection to a WebSocket and runs the
// channel protocol on it. One protocol.Handler drives the connection; reads
// are strictly sequential, so each message is fully processed (including
// synchronous page callbacks) before the next is accepted.
func ChannelWSHandler(logger *logrus.Logger, registry *page.Registry, table *session.Table, ev *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != Subprotocol {
			logger.Warnf("Client connected with invalid subprotocol: %s", c.Subprotocol())
			c.Close(websocket.StatusPolicyViolation, "Client must use the 'motd' subprotocol.")
			return
		}
		connLog := logger.WithFields(logrus.Fields{
			"conn":   uuid.New().String(),
			"remote": r.RemoteAddr,
		})
		connLog.Info("channel connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		ch := &wsChannel{conn: c, cancel: cancel}
		h := protocol.NewHandler(ch, registry, table, ev, connLog)

		readErr := readMessages(ctx, c, h, connLog)

		// The channel is gone, deliberately or not. A bound push page gets
		// told its transmission ended either way.
		h.HandleAbort()
		if readErr != nil {
			connLog.WithError(readErr).Info("channel disconnected")
		} else {
			connLog.Info("channel disconnected")
		}
	}
}

// readMessages pumps inbound channel messages into the protocol handler
// until the connection closes or the handler stops the channel.
func readMessages(ctx context.Context, c *websocket.Conn, h *protocol.Handler, log logrus.FieldLogger) error {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				log.Info("channel closed normally")
				return nil
			case strings.Contains(err.Error(), "context canceled"):
				return nil
			default:
				log.WithError(err).Warn("channel read error")
				return err
			}
		}

		h.HandleMessage(ctx, data)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// wsChannel adapts a websocket connection to protocol.Channel.
type wsChannel struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
}

func (ch *wsChannel) Send(data []byte) error {
	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ch.conn.Write(writeCtx, websocket.MessageText, data)
}

func (ch *wsChannel) Stop() {
	ch.conn.Close(websocket.StatusNormalClosure, "")
	ch.cancel()
}
