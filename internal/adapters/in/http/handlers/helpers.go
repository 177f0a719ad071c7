// internal/adapters/in/http/handlers/helpers.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/austyngo/ICO/internal/domain/common"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// errorBody is {"error": "...", "kind": "..."}; outcome is set when the action got as far as submission.
type errorBody struct {
	Error   string       `json:"error"`
	Kind    common.Kind  `json:"kind"`
	Outcome *outcomeView `json:"outcome,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(kind common.Kind) int {
	switch kind {
	case common.KindInvalidQuantity:
		return http.StatusBadRequest
	case common.KindUserDeclined:
		return http.StatusForbidden
	case common.KindWrongNetwork:
		return http.StatusPreconditionFailed
	case common.KindActionRejected:
		return http.StatusUnprocessableEntity
	case common.KindReconciliation:
		return http.StatusBadGateway
	case common.KindConnectivity:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	writeErrWithOutcome(w, err, nil)
}

func writeErrWithOutcome(w http.ResponseWriter, err error, o *outcomeView) {
	kind := common.KindOf(err)
	writeJSON(w, statusFor(kind), errorBody{Error: err.Error(), Kind: kind, Outcome: o})
}

// parseWalletPath splits "/wallets/{address}/{rest...}".
func parseWalletPath(path string) (wallet.Address, []string, error) {
	p := strings.Trim(strings.TrimPrefix(path, "/wallets/"), "/")
	if p == "" {
		return wallet.Address{}, nil, wallet.ErrInvalidWalletAddress
	}
	parts := strings.Split(p, "/")
	addr, err := wallet.ParseAddress(parts[0])
	if err != nil {
		return wallet.Address{}, nil, err
	}
	return addr, parts[1:], nil
}

// readOnly: 署名者が無い構成では mint / claim は使えない
func readOnly(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "read_only: no signers configured"})
}
