// internal/adapters/in/http/handlers/action_ws.go
package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/austyngo/ICO/internal/domain/common"
	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

// phase: submitted -> confirmed | failed
const (
	phaseSubmitted = "submitted"
	phaseConfirmed = "confirmed"
	phaseFailed    = "failed"
)

type wsRequest struct {
	Action   token.ActionKind `json:"action"`
	Quantity int64            `json:"quantity"`
}

type wsEvent struct {
	Phase   string       `json:"phase"`
	Outcome *outcomeView `json:"outcome,omitempty"`
	Error   string       `json:"error,omitempty"`
	Kind    common.Kind  `json:"kind,omitempty"`
}

// upgrader: 明示的な origin が設定されていなければ same-origin のみ（gorilla の既定チェック）
func (h *WalletHandler) upgrader() *websocket.Upgrader {
	origin := strings.TrimSpace(h.allowedOrigin)
	if origin == "" || origin == "*" {
		return &websocket.Upgrader{}
	}
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return r.Header.Get("Origin") == origin
		},
	}
}

// GET /wallets/{address}/actions/ws
//
// client: {"action":"mint","quantity":N} / {"action":"claim"}
// server: {"phase":"submitted",...} then {"phase":"confirmed"|"failed",...}
func (h *WalletHandler) actionsWS(w http.ResponseWriter, r *http.Request, addr wallet.Address) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[wallet_handler] ws upgrade wallet=%s: %v", addr.Short(), err)
		return
	}
	defer conn.Close()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[wallet_handler] ws read wallet=%s: %v", addr.Short(), err)
			}
			return
		}
		if err := h.stream(conn, r, addr, req); err != nil {
			log.Printf("[wallet_handler] ws write wallet=%s: %v", addr.Short(), err)
			return
		}
	}
}

// stream runs one action and pushes its phases. Returns only write errors.
func (h *WalletHandler) stream(conn *websocket.Conn, r *http.Request, addr wallet.Address, req wsRequest) error {
	ctx, cancel := h.actionContext(r.Context())
	defer cancel()

	a := token.Action{Kind: req.Action, Address: addr, Quantity: req.Quantity}
	ticket, err := h.actionUC.Begin(ctx, a)
	if err != nil {
		return conn.WriteJSON(wsEvent{Phase: phaseFailed, Error: err.Error(), Kind: common.KindOf(err)})
	}
	if err := conn.WriteJSON(wsEvent{Phase: phaseSubmitted, Outcome: newOutcomeView(ticket.Outcome())}); err != nil {
		// 送信済みなので確定までは待つ（in-flight を解放するため）
		_, _ = ticket.Await(ctx)
		return err
	}

	out, err := ticket.Await(ctx)
	if err != nil {
		return conn.WriteJSON(wsEvent{Phase: phaseFailed, Outcome: newOutcomeView(out), Error: err.Error(), Kind: common.KindOf(err)})
	}
	return conn.WriteJSON(wsEvent{Phase: phaseConfirmed, Outcome: newOutcomeView(out)})
}
