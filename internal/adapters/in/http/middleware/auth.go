// internal/adapters/in/http/middleware/auth.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gorilla/websocket"

	"github.com/austyngo/ICO/internal/domain/wallet"
)

// DefaultWalletClaim は ID トークンの custom claim 名（wallet address を保持）。
const DefaultWalletClaim = "wallet"

// TokenVerifier は *fbauth.Client が満たす。
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

var _ TokenVerifier = (*fbauth.Client)(nil)

// context key は string を使わず、衝突回避のため独自型を使用
type ctxKey struct{ name string }

var (
	ctxKeyUID    = ctxKey{name: "uid"}
	ctxKeyWallet = ctxKey{name: "wallet"}
)

// WalletAuthMiddleware は
//
//   - Authorization: Bearer <ID_TOKEN>
//   - websocket upgrade のみ ?access_token=<ID_TOKEN> も可（ブラウザはヘッダを付けられない）
//
// を検証し、uid と custom claim の wallet address を context に詰めて次のハンドラへ渡す。
type WalletAuthMiddleware struct {
	FirebaseAuth TokenVerifier
	WalletClaim  string // 空なら DefaultWalletClaim
}

func (m *WalletAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.FirebaseAuth == nil {
			http.Error(w, "auth middleware not initialized", http.StatusServiceUnavailable)
			return
		}

		idToken, ok := bearer(r)
		if !ok {
			http.Error(w, "unauthorized: missing bearer token", http.StatusUnauthorized)
			return
		}

		token, err := m.FirebaseAuth.VerifyIDToken(r.Context(), idToken)
		if err != nil {
			log.Printf("[wallet_auth] verify failed path=%s: %v", r.URL.Path, err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		uid := strings.TrimSpace(token.UID)
		if uid == "" {
			http.Error(w, "invalid uid in token", http.StatusUnauthorized)
			return
		}

		claim := m.WalletClaim
		if claim == "" {
			claim = DefaultWalletClaim
		}
		raw, _ := token.Claims[claim].(string)
		addr, err := wallet.ParseAddress(raw)
		if err != nil {
			log.Printf("[wallet_auth] uid=%s has no usable %q claim", uid, claim)
			http.Error(w, "forbidden: no wallet linked to this user", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUID, uid)
		ctx = context.WithValue(ctx, ctxKeyWallet, addr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearer(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		return t, t != ""
	}
	if websocket.IsWebSocketUpgrade(r) {
		t := strings.TrimSpace(r.URL.Query().Get("access_token"))
		return t, t != ""
	}
	return "", false
}

// CurrentWallet は middleware で検証された wallet address を返します。
func CurrentWallet(r *http.Request) (wallet.Address, bool) {
	a, ok := r.Context().Value(ctxKeyWallet).(wallet.Address)
	return a, ok && !a.IsZero()
}

// CurrentUID は middleware で検証された Firebase UID を返します。
func CurrentUID(r *http.Request) (string, bool) {
	u, ok := r.Context().Value(ctxKeyUID).(string)
	if !ok || strings.TrimSpace(u) == "" {
		return "", false
	}
	return u, true
}
