// internal/adapters/in/http/router.go
package httpin

import (
	"net/http"
	"time"

	"github.com/austyngo/ICO/internal/adapters/in/http/handlers"
	"github.com/austyngo/ICO/internal/adapters/in/http/middleware"
	usecase "github.com/austyngo/ICO/internal/application/usecase"
	"github.com/austyngo/ICO/internal/domain/connection"
)

// RouterDeps collects the usecases injected from the DI container.
type RouterDeps struct {
	EligibilityUC *usecase.EligibilityUsecase
	WalletUC      *usecase.WalletUsecase
	ActionUC      *usecase.ActionUsecase // nil = read-only
	Gate          *connection.Gate

	// 書き込み系ルートの認証（nil = HTTP からの書き込み不可）
	Auth func(http.Handler) http.Handler

	ActionTimeout time.Duration
	AllowedOrigin string
}

// NewRouter sets up HTTP routing. Routes are mounted only when their deps exist.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	// Health check (always on)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if deps.EligibilityUC != nil && deps.WalletUC != nil {
		mux.Handle("/wallets/", handlers.NewWalletHandler(handlers.WalletHandlerDeps{
			EligibilityUC: deps.EligibilityUC,
			WalletUC:      deps.WalletUC,
			ActionUC:      deps.ActionUC,
			Auth:          deps.Auth,
			ActionTimeout: deps.ActionTimeout,
			AllowedOrigin: deps.AllowedOrigin,
		}))
	}

	if deps.Gate != nil {
		sh := handlers.NewSessionHandler(deps.Gate)
		mux.Handle("/session", sh)
		mux.Handle("/session/", sh)
	}

	// Recover は内側、CORS は外側
	return middleware.CORS(deps.AllowedOrigin)(middleware.Recover(mux))
}
