// internal/infra/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

var (
	ErrMissingContract = errors.New("config: contract address is required")
	ErrInvalidPrice    = errors.New("config: UNIT_PRICE_WEI must be a positive integer")
)

// Config はアプリケーション全体の環境変数設定を保持します。
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	LogFile string `env:"LOG_FILE"`

	// ★ Ethereum JSON-RPC / ネットワーク
	RPCURL          string        `env:"ETH_RPC_URL" envDefault:"https://rpc.sepolia.org"`
	RequiredChainID uint64        `env:"REQUIRED_CHAIN_ID" envDefault:"11155111"`
	DialMaxElapsed  time.Duration `env:"DIAL_MAX_ELAPSED" envDefault:"30s"`

	// 接続中のネットワーク（chain id）の再確認間隔（0 = しない）
	NetworkCheckInterval time.Duration `env:"NETWORK_CHECK_INTERVAL" envDefault:"1m"`

	// ★ コントラクト
	NFTContractAddress   string `env:"NFT_CONTRACT_ADDRESS"`
	TokenContractAddress string `env:"TOKEN_CONTRACT_ADDRESS"`

	// 0.001 ether
	UnitPriceWei         string `env:"UNIT_PRICE_WEI" envDefault:"1000000000000000"`
	MaxSupplyTokens      int64  `env:"MAX_SUPPLY_TOKENS" envDefault:"10000"`
	ReconcileConcurrency int    `env:"RECONCILE_CONCURRENCY" envDefault:"8"`

	// mint / claim の確定待ち上限（HTTP / CLI が使う）
	ActionTimeout time.Duration `env:"ACTION_TIMEOUT" envDefault:"5m"`

	// 呼び出し側が離れた後も tx を見届ける上限（その間 address は in-flight のまま）
	PendingTimeout time.Duration `env:"PENDING_TIMEOUT" envDefault:"30m"`

	// ★ 署名者（Secret Manager）
	GCPProjectID       string `env:"GCP_PROJECT_ID"`
	GCPCreds           string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	SignerSecretPrefix string `env:"SIGNER_SECRET_PREFIX" envDefault:"eth-signer-"`

	// 開発用: hex 秘密鍵（カンマ区切り）。設定されていれば Secret Manager より優先
	SignerPrivateKeys []string `env:"SIGNER_PRIVATE_KEY" envSeparator:","`

	// ★ Firebase Auth（mint / claim / actions/ws の本人確認。空なら HTTP からの書き込み不可）
	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	WalletClaim       string `env:"FIREBASE_WALLET_CLAIM" envDefault:"wallet"`

	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`
	OTELEndpoint      string `env:"OTEL_ENDPOINT"`
}

// Load は .env（あれば）と環境変数を読み込み Config を返します。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	// PORT="" を明示された場合もデフォルトに戻す
	cfg.Port = getenvDefault("PORT", cfg.Port)

	if _, err := cfg.GetUnitPrice(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Contracts は NFT / Token の address を検証して返します。
func (c *Config) Contracts() (nft, tok wallet.Address, err error) {
	if strings.TrimSpace(c.NFTContractAddress) == "" || strings.TrimSpace(c.TokenContractAddress) == "" {
		return wallet.Address{}, wallet.Address{}, ErrMissingContract
	}
	if nft, err = wallet.ParseAddress(c.NFTContractAddress); err != nil {
		return wallet.Address{}, wallet.Address{}, fmt.Errorf("config: NFT_CONTRACT_ADDRESS: %w", err)
	}
	if tok, err = wallet.ParseAddress(c.TokenContractAddress); err != nil {
		return wallet.Address{}, wallet.Address{}, fmt.Errorf("config: TOKEN_CONTRACT_ADDRESS: %w", err)
	}
	return nft, tok, nil
}

// GetUnitPrice は 1 token あたりの価格（wei）を返します。
func (c *Config) GetUnitPrice() (*big.Int, error) {
	s := strings.TrimSpace(c.UnitPriceWei)
	if s == "" {
		return new(big.Int).Set(token.DefaultUnitPriceWei), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return v, nil
}

// GetMaxSupply は発行上限（base units）を返します。
func (c *Config) GetMaxSupply() *big.Int {
	n := c.MaxSupplyTokens
	if n <= 0 {
		n = token.MaxSupplyTokens
	}
	return token.WholeTokens(n)
}

// HasSigners: mint / claim を送信できる構成かどうか
func (c *Config) HasSigners() bool {
	return strings.TrimSpace(c.GCPProjectID) != "" || len(c.SignerPrivateKeys) > 0
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
