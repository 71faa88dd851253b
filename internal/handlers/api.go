// internal/handlers/api.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/motdgate/motdgate/internal/events"
	"github.com/motdgate/motdgate/internal/page"
	"github.com/motdgate/motdgate/internal/presenter"
	"github.com/motdgate/motdgate/internal/session"
)

// API is the game-server-facing HTTP surface: identity lifecycle
// notifications and page presentation requests. The web frontend never
// talks to it; the channel endpoint is its only way in.
type API struct {
	Log       *logrus.Logger
	Table     *session.Table
	Registry  *page.Registry
	Presenter *presenter.Presenter
	Events    *events.Publisher
}

type identityRequest struct {
	ExternalID string `json:"external_id"`
}

type sendPageRequest struct {
	ExternalID string `json:"external_id"`
	Namespace  string `json:"namespace"`
	PageID     string `json:"page_id"`
	WebAuth    bool   `json:"web_auth,omitempty"`
}

type sendPageResponse struct {
	SessionID int    `json:"session_id"`
	URL       string `json:"url"`
}

// IdentityActiveHandler registers a connected client and starts loading its
// rotating secret.
func (a *API) IdentityActiveHandler(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.ExternalID == "" {
		http.Error(w, "external_id is required", http.StatusBadRequest)
		return
	}

	a.Table.ClientActive(req.ExternalID)
	w.WriteHeader(http.StatusNoContent)
}

// IdentityDroppedHandler closes every session of a disconnected client and
// forgets it.
func (a *API) IdentityDroppedHandler(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.ExternalID == "" {
		http.Error(w, "external_id is required", http.StatusBadRequest)
		return
	}

	a.Table.ClientDropped(req.ExternalID)
	a.Events.Publish(r.Context(), events.Record{
		Type:       events.TypeIdentityDropped,
		IdentityID: req.ExternalID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// LevelChangedHandler closes every identity's sessions at once. The game
// server calls it on a map change, when all client state is invalidated.
func (a *API) LevelChangedHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.Table.DropAll()
	w.WriteHeader(http.StatusNoContent)
}

// SendPageHandler creates a session for the identity and returns the page
// URL the game server should present. 409 means the identity's secret is
// still loading; the game server retries.
func (a *API) SendPageHandler(w http.ResponseWriter, r *http.Request) {
	var req sendPageRequest
	if !a.decode(w, r, &req) {
		return
	}

	mgr, ok := a.Table.Lookup(req.ExternalID)
	if !ok {
		http.Error(w, "unknown identity", http.StatusNotFound)
		return
	}
	def, err := a.Registry.Resolve(req.Namespace, req.PageID)
	if err != nil {
		http.Error(w, "unknown page", http.StatusNotFound)
		return
	}

	send := a.Presenter.SendPage
	if req.WebAuth {
		send = a.Presenter.SendPageWeb
	}
	sess, url, err := send(r.Context(), mgr, def)
	if err != nil {
		if errors.Is(err, session.ErrNotReady) {
			http.Error(w, "identity not ready", http.StatusConflict)
			return
		}
		a.Log.WithError(err).Error("failed to send page")
		http.Error(w, "failed to send page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sendPageResponse{SessionID: sess.ID(), URL: url})
}

// HealthzHandler reports liveness.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}
