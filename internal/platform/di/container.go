// internal/platform/di/container.go
package di

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	httpin "github.com/austyngo/ICO/internal/adapters/in/http"
	"github.com/austyngo/ICO/internal/adapters/in/http/middleware"
	uc "github.com/austyngo/ICO/internal/application/usecase"
	"github.com/austyngo/ICO/internal/domain/connection"
	appcfg "github.com/austyngo/ICO/internal/infra/config"
	ethinfra "github.com/austyngo/ICO/internal/infra/ethereum"
)

// Container は main.go から使う依存オブジェクトの束。
// main.go を極限まで薄くするのが目的。
type Container struct {
	Config *appcfg.Config

	Gate   *connection.Gate
	Ledger *uc.LedgerClient

	EligibilityUC *uc.EligibilityUsecase
	WalletUC      *uc.WalletUsecase
	ActionUC      *uc.ActionUsecase

	walletAuth *middleware.WalletAuthMiddleware

	client    *ethinfra.Client
	cleanupFn []func()
}

// Build は DI コンテナを初期化して返す。
//   - Ethereum RPC に接続し、NFT / Token コントラクトを bind
//   - 署名者（SIGNER_PRIVATE_KEY か Secret Manager）を用意（無ければ read-only）
//   - Gate -> LedgerClient -> Usecase をつなぐ
func Build(ctx context.Context, cfg *appcfg.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("di: config is nil")
	}

	nftAddr, tokenAddr, err := cfg.Contracts()
	if err != nil {
		return nil, err
	}
	unitPrice, err := cfg.GetUnitPrice()
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg}

	// ------------------------------------------------------------
	// 1. 署名者
	// ------------------------------------------------------------
	signers, err := c.buildSigners(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	// ------------------------------------------------------------
	// 2. Ethereum client (ledger / submitter / handshake provider)
	// ------------------------------------------------------------
	client, err := ethinfra.NewClient(ctx, ethinfra.Config{
		RPCURL:         cfg.RPCURL,
		NFTAddress:     nftAddr.Common(),
		TokenAddress:   tokenAddr.Common(),
		ChainID:        cfg.RequiredChainID,
		DialMaxElapsed: cfg.DialMaxElapsed,
	}, signers)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("di: ethereum client: %w", err)
	}
	client.Ledger.FallbackMaxSupply = cfg.GetMaxSupply()
	c.client = client
	c.cleanupFn = append(c.cleanupFn, client.Close)

	// ------------------------------------------------------------
	// 3. Gate + Usecase
	// ------------------------------------------------------------
	required := connection.NetworkID(cfg.RequiredChainID)

	c.Gate = connection.NewGate(client.Provider)
	if cfg.NetworkCheckInterval > 0 {
		watchCtx, stop := context.WithCancel(context.Background())
		go c.Gate.Watch(watchCtx, cfg.NetworkCheckInterval)
		c.cleanupFn = append(c.cleanupFn, stop)
	}
	c.Ledger = uc.NewLedgerClient(client.Ledger, c.Gate, required)

	c.EligibilityUC = uc.NewEligibilityUsecase(c.Ledger, cfg.ReconcileConcurrency)
	c.WalletUC = uc.NewWalletUsecase(c.Ledger, c.EligibilityUC)

	var submitter uc.ActionSubmitter
	if client.Submitter != nil {
		submitter = client.Submitter
	}
	c.ActionUC = uc.NewActionUsecase(c.Gate, required, c.Ledger, submitter, c.WalletUC, unitPrice)
	c.ActionUC.PendingTimeout = cfg.PendingTimeout

	// ------------------------------------------------------------
	// 4. Firebase Auth（HTTP 書き込み系の本人確認, best-effort）
	// ------------------------------------------------------------
	c.walletAuth = c.buildWalletAuth(ctx)

	log.Printf("[di] container ready chainId=%d concurrency=%d writes=%t auth=%t",
		cfg.RequiredChainID, c.EligibilityUC.Concurrency, submitter != nil, c.walletAuth != nil)
	return c, nil
}

// buildWalletAuth は FIREBASE_PROJECT_ID があれば Firebase Auth を初期化します。
// 失敗しても起動は止めず、HTTP からの mint / claim を無効にするだけ。
func (c *Container) buildWalletAuth(ctx context.Context) *middleware.WalletAuthMiddleware {
	cfg := c.Config
	projectID := strings.TrimSpace(cfg.FirebaseProjectID)
	if projectID == "" {
		log.Printf("[di] WARN: FIREBASE_PROJECT_ID is empty; HTTP mint / claim disabled")
		return nil
	}

	var opts []option.ClientOption
	if cfg.GCPCreds != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCPCreds))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		log.Printf("[di] WARN: firebase app init failed: %v", err)
		return nil
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		log.Printf("[di] WARN: firebase auth init failed: %v", err)
		return nil
	}
	log.Printf("[di] Firebase Auth initialized project=%s claim=%s", projectID, cfg.WalletClaim)
	return &middleware.WalletAuthMiddleware{FirebaseAuth: authClient, WalletClaim: cfg.WalletClaim}
}

// buildSigners: SIGNER_PRIVATE_KEY（開発用）> Secret Manager > なし（read-only）
func (c *Container) buildSigners(ctx context.Context) (ethinfra.Signers, error) {
	cfg := c.Config

	if len(cfg.SignerPrivateKeys) > 0 {
		s, err := ethinfra.NewStaticSigners(cfg.SignerPrivateKeys...)
		if err != nil {
			return nil, fmt.Errorf("di: SIGNER_PRIVATE_KEY: %w", err)
		}
		log.Printf("[di] signers: static keys=%d", len(s.Addresses()))
		return s, nil
	}

	if strings.TrimSpace(cfg.GCPProjectID) != "" {
		s, err := ethinfra.NewSecretManagerSigners(ctx, cfg.GCPProjectID, cfg.SignerSecretPrefix, cfg.GCPCreds)
		if err != nil {
			return nil, fmt.Errorf("di: secret manager signers: %w", err)
		}
		c.cleanupFn = append(c.cleanupFn, func() { _ = s.Close() })
		log.Printf("[di] signers: secret manager project=%s prefix=%s", cfg.GCPProjectID, s.SecretIDPrefix)
		return s, nil
	}

	log.Printf("[di] WARN: no signers configured; mint / claim disabled (read-only)")
	return nil, nil
}

// RouterDeps は HTTP ルーターに渡す依存を返します。
// 署名者か Firebase Auth が無い場合、mint / claim は 501。
func (c *Container) RouterDeps() httpin.RouterDeps {
	action := c.ActionUC
	if action != nil && action.Submitter == nil {
		action = nil
	}
	var auth func(http.Handler) http.Handler
	if c.walletAuth != nil {
		auth = c.walletAuth.Handler
	}
	return httpin.RouterDeps{
		EligibilityUC: c.EligibilityUC,
		WalletUC:      c.WalletUC,
		ActionUC:      action,
		Gate:          c.Gate,
		Auth:          auth,
		ActionTimeout: c.Config.ActionTimeout,
		AllowedOrigin: c.Config.CORSAllowedOrigin,
	}
}

// Close は終了時に呼んで外部コネクションを閉じる。
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.cleanupFn) - 1; i >= 0; i-- {
		c.cleanupFn[i]()
	}
	c.cleanupFn = nil
}
