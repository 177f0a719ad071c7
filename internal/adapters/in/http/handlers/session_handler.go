// internal/adapters/in/http/handlers/session_handler.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/austyngo/ICO/internal/domain/connection"
)

// SessionHandler exposes the connection gate.
//
//	GET  /session        -> 現在の状態
//	POST /session/reset  -> Disconnected に戻す（再接続）
type SessionHandler struct {
	gate *connection.Gate
}

func NewSessionHandler(gate *connection.Gate) http.Handler {
	return &SessionHandler{gate: gate}
}

type sessionView struct {
	State   connection.State     `json:"state"`
	Network connection.NetworkID `json:"network,omitempty"`
	Reason  string               `json:"reason,omitempty"`
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	switch {
	case path == "/session" && r.Method == http.MethodGet:
		h.status(w)
	case path == "/session/reset" && r.Method == http.MethodPost:
		h.gate.Reset()
		h.status(w)
	case path == "/session" || path == "/session/reset":
		methodNotAllowed(w)
	default:
		notFound(w)
	}
}

func (h *SessionHandler) status(w http.ResponseWriter) {
	s := h.gate.State()
	writeJSON(w, http.StatusOK, sessionView{State: s.State, Network: s.Network, Reason: s.Reason})
}
