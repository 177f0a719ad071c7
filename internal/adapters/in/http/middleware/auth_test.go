package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"

	"github.com/austyngo/ICO/internal/domain/wallet"
)

const aliceHex = "0x1111111111111111111111111111111111111111"

type stubVerifier struct {
	token *fbauth.Token
	err   error
	got   string
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*fbauth.Token, error) {
	s.got = idToken
	return s.token, s.err
}

func serveAuth(m *WalletAuthMiddleware, req *http.Request) (*httptest.ResponseRecorder, *http.Request) {
	var seen *http.Request
	rec := httptest.NewRecorder()
	m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
	})).ServeHTTP(rec, req)
	return rec, seen
}

func TestWalletAuth_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		v      *stubVerifier
		header string
		want   int
	}{
		{"missing bearer", &stubVerifier{}, "", http.StatusUnauthorized},
		{"not bearer", &stubVerifier{}, "Basic abc", http.StatusUnauthorized},
		{"verify error", &stubVerifier{err: errors.New("expired")}, "Bearer t", http.StatusUnauthorized},
		{"empty uid", &stubVerifier{token: &fbauth.Token{Claims: map[string]interface{}{"wallet": aliceHex}}}, "Bearer t", http.StatusUnauthorized},
		{"no wallet claim", &stubVerifier{token: &fbauth.Token{UID: "u1"}}, "Bearer t", http.StatusForbidden},
		{"bad wallet claim", &stubVerifier{token: &fbauth.Token{UID: "u1", Claims: map[string]interface{}{"wallet": "0x12"}}}, "Bearer t", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/wallets/"+aliceHex+"/mint", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec, seen := serveAuth(&WalletAuthMiddleware{FirebaseAuth: tc.v}, req)
			if rec.Code != tc.want || seen != nil {
				t.Fatalf("status = %d next called = %t, want %d", rec.Code, seen != nil, tc.want)
			}
		})
	}
}

func TestWalletAuth_NotInitialized(t *testing.T) {
	rec, seen := serveAuth(&WalletAuthMiddleware{}, httptest.NewRequest(http.MethodPost, "/x", nil))
	if rec.Code != http.StatusServiceUnavailable || seen != nil {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWalletAuth_SetsCallerIdentity(t *testing.T) {
	v := &stubVerifier{token: &fbauth.Token{UID: "u1", Claims: map[string]interface{}{"eth": aliceHex}}}
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Authorization", "Bearer  tok-1 ")

	rec, seen := serveAuth(&WalletAuthMiddleware{FirebaseAuth: v, WalletClaim: "eth"}, req)
	if rec.Code != http.StatusOK || seen == nil {
		t.Fatalf("status = %d", rec.Code)
	}
	if v.got != "tok-1" {
		t.Fatalf("verified token = %q", v.got)
	}
	if w, ok := CurrentWallet(seen); !ok || w != wallet.MustParseAddress(aliceHex) {
		t.Fatalf("CurrentWallet = %s, %t", w, ok)
	}
	if uid, ok := CurrentUID(seen); !ok || uid != "u1" {
		t.Fatalf("CurrentUID = %q, %t", uid, ok)
	}
}

func TestWalletAuth_QueryTokenOnlyForWebSocket(t *testing.T) {
	v := &stubVerifier{token: &fbauth.Token{UID: "u1", Claims: map[string]interface{}{"wallet": aliceHex}}}
	m := &WalletAuthMiddleware{FirebaseAuth: v}

	rec, _ := serveAuth(m, httptest.NewRequest(http.MethodPost, "/x?access_token=tok", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("plain request with query token = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/x?access_token=tok", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rec, seen := serveAuth(m, req)
	if rec.Code != http.StatusOK || seen == nil || v.got != "tok" {
		t.Fatalf("upgrade with query token = %d", rec.Code)
	}
}

func TestCurrentWallet_Unauthenticated(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	if _, ok := CurrentWallet(r); ok {
		t.Fatal("CurrentWallet ok without middleware")
	}
	if _, ok := CurrentUID(r); ok {
		t.Fatal("CurrentUID ok without middleware")
	}
}
