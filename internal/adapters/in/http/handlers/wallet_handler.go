// internal/adapters/in/http/handlers/wallet_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/austyngo/ICO/internal/adapters/in/http/middleware"
	usecase "github.com/austyngo/ICO/internal/application/usecase"
	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

// WalletHandler は /wallets/{address}/... を担当します。
//
//	GET  /wallets/{address}/eligibility
//	GET  /wallets/{address}/summary
//	POST /wallets/{address}/mint     {"quantity": N}
//	POST /wallets/{address}/claim
//	GET  /wallets/{address}/actions/ws
//
// mint / claim / actions/ws は auth で検証された wallet が {address} と一致する場合だけ通す。
type WalletHandler struct {
	eligibilityUC *usecase.EligibilityUsecase
	walletUC      *usecase.WalletUsecase
	actionUC      *usecase.ActionUsecase          // nil = read-only
	auth          func(http.Handler) http.Handler // nil = 書き込み不可

	// mint / claim の確定待ち上限（0 = リクエストの ctx のみ）
	actionTimeout time.Duration
	allowedOrigin string
}

type WalletHandlerDeps struct {
	EligibilityUC *usecase.EligibilityUsecase
	WalletUC      *usecase.WalletUsecase
	ActionUC      *usecase.ActionUsecase
	Auth          func(http.Handler) http.Handler
	ActionTimeout time.Duration
	AllowedOrigin string
}

func NewWalletHandler(d WalletHandlerDeps) http.Handler {
	return &WalletHandler{
		eligibilityUC: d.EligibilityUC,
		walletUC:      d.WalletUC,
		actionUC:      d.ActionUC,
		auth:          d.Auth,
		actionTimeout: d.ActionTimeout,
		allowedOrigin: d.AllowedOrigin,
	}
}

func (h *WalletHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	addr, rest, err := parseWalletPath(r.URL.Path)
	if err != nil {
		badRequest(w, "invalid wallet address")
		return
	}

	switch {
	case len(rest) == 1 && rest[0] == "eligibility":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.eligibility(w, r, addr)
	case len(rest) == 1 && rest[0] == "summary":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.summary(w, r, addr)
	case len(rest) == 1 && rest[0] == "mint":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.asOwner(w, r, addr, h.mint)
	case len(rest) == 1 && rest[0] == "claim":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.asOwner(w, r, addr, h.claim)
	case len(rest) == 2 && rest[0] == "actions" && rest[1] == "ws":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.asOwner(w, r, addr, h.actionsWS)
	default:
		notFound(w)
	}
}

// GET /wallets/{address}/eligibility
func (h *WalletHandler) eligibility(w http.ResponseWriter, r *http.Request, addr wallet.Address) {
	e, err := h.eligibilityUC.GetEligibility(r.Context(), addr)
	if err != nil {
		log.Printf("[wallet_handler] eligibility wallet=%s: %v", addr.Short(), err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEligibilityView(addr, e, h.inFlight(addr)))
}

// GET /wallets/{address}/summary
func (h *WalletHandler) summary(w http.ResponseWriter, r *http.Request, addr wallet.Address) {
	s, err := h.walletUC.GetSummary(r.Context(), addr)
	if err != nil {
		log.Printf("[wallet_handler] summary wallet=%s: %v", addr.Short(), err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryView(addr, s))
}

type mintRequest struct {
	Quantity *int64 `json:"quantity"`
}

// POST /wallets/{address}/mint
func (h *WalletHandler) mint(w http.ResponseWriter, r *http.Request, addr wallet.Address) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		badRequest(w, "invalid json: quantity is required")
		return
	}
	h.run(w, r, token.Action{Kind: token.ActionMint, Address: addr, Quantity: *req.Quantity})
}

// POST /wallets/{address}/claim
func (h *WalletHandler) claim(w http.ResponseWriter, r *http.Request, addr wallet.Address) {
	h.run(w, r, token.Action{Kind: token.ActionClaim, Address: addr})
}

func (h *WalletHandler) run(w http.ResponseWriter, r *http.Request, a token.Action) {
	ctx, cancel := h.actionContext(r.Context())
	defer cancel()

	ticket, err := h.actionUC.Begin(ctx, a)
	if err != nil {
		writeErr(w, err)
		return
	}
	out, err := ticket.Await(ctx)
	if err != nil {
		writeErrWithOutcome(w, err, newOutcomeView(out))
		return
	}
	writeJSON(w, http.StatusOK, newOutcomeView(out))
}

// asOwner は書き込み系ルートの入口。署名は {address} の鍵で行うので、
// 呼び出し元がその address の持ち主であることを確認してから next を呼ぶ。
func (h *WalletHandler) asOwner(w http.ResponseWriter, r *http.Request, addr wallet.Address,
	next func(http.ResponseWriter, *http.Request, wallet.Address)) {
	if h.actionUC == nil || h.auth == nil {
		readOnly(w)
		return
	}
	h.auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := middleware.CurrentWallet(r)
		if !ok || caller != addr {
			log.Printf("[wallet_handler] caller wallet does not own %s", addr.Short())
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: wallet mismatch"})
			return
		}
		next(w, r, addr)
	})).ServeHTTP(w, r)
}

func (h *WalletHandler) actionContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.actionTimeout > 0 {
		return context.WithTimeout(parent, h.actionTimeout)
	}
	return context.WithCancel(parent)
}

func (h *WalletHandler) inFlight(addr wallet.Address) bool {
	return h.actionUC != nil && h.actionUC.InFlight(addr)
}
