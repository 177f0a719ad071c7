// internal/infra/ethereum/client.go
package ethereum

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/austyngo/ICO/internal/domain/connection"
)

// Sepolia JSON-RPC endpoint (default)
const DefaultEndpoint = "https://rpc.sepolia.org"

// Config は go-ethereum クライアントの組み立てに必要な値です。
type Config struct {
	RPCURL         string
	NFTAddress     gethcommon.Address
	TokenAddress   gethcommon.Address
	ChainID        uint64
	DialMaxElapsed time.Duration
}

// Client bundles the node connection and everything bound to it.
type Client struct {
	eth *ethclient.Client

	Ledger    *Ledger
	Submitter *Submitter // nil when no signers are configured (read-only)
	Provider  *Provider
}

// NewClient dials the node (with exponential backoff) and binds both contracts.
// signers が nil なら read-only（mint / claim は使えない）。
func NewClient(ctx context.Context, cfg Config, signers Signers) (*Client, error) {
	url := strings.TrimSpace(cfg.RPCURL)
	if url == "" {
		url = DefaultEndpoint
	}

	eth, err := Dial(ctx, url, cfg.DialMaxElapsed)
	if err != nil {
		return nil, err
	}

	ledger, err := NewLedger(eth, cfg.NFTAddress, cfg.TokenAddress)
	if err != nil {
		eth.Close()
		return nil, err
	}

	c := &Client{
		eth:      eth,
		Ledger:   ledger,
		Provider: NewProvider(eth, cfg.DialMaxElapsed),
	}

	if signers != nil {
		sub, err := NewSubmitter(eth, cfg.TokenAddress, signers, cfg.ChainID)
		if err != nil {
			eth.Close()
			return nil, err
		}
		c.Submitter = sub
	}

	log.Printf("[ethereum] client ready rpc=%s nft=%s token=%s chainId=%d writes=%t",
		redactURL(url), maskShort(cfg.NFTAddress.Hex()), maskShort(cfg.TokenAddress.Hex()), cfg.ChainID, c.Submitter != nil)
	return c, nil
}

func (c *Client) Close() {
	if c != nil && c.eth != nil {
		c.eth.Close()
	}
}

// Dial connects to url, retrying with exponential backoff until maxElapsed (0 = backoff default).
func Dial(ctx context.Context, url string, maxElapsed time.Duration) (*ethclient.Client, error) {
	opts := []backoff.RetryOption{backoff.WithBackOff(backoff.NewExponentialBackOff())}
	if maxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(maxElapsed))
	}

	eth, err := backoff.Retry(ctx, func() (*ethclient.Client, error) {
		c, err := ethclient.DialContext(ctx, url)
		if err != nil {
			log.Printf("[ethereum] dial failed rpc=%s: %v", redactURL(url), err)
			return nil, err
		}
		return c, nil
	}, opts...)
	if err != nil {
		return nil, readErr("dial", fmt.Errorf("ethereum: dial %s: %w", redactURL(url), err))
	}
	return eth, nil
}

// ------------------------------------------------------------
// Provider: ConnectionGate の handshake（eth_chainId）
// ------------------------------------------------------------

// ChainIDReader is the subset of *ethclient.Client used by the handshake.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Provider implements connection.WalletProvider.
type Provider struct {
	chain      ChainIDReader
	maxElapsed time.Duration
}

var _ connection.WalletProvider = (*Provider)(nil)

func NewProvider(chain ChainIDReader, maxElapsed time.Duration) *Provider {
	return &Provider{chain: chain, maxElapsed: maxElapsed}
}

func (p *Provider) Handshake(ctx context.Context) (connection.NetworkID, error) {
	if p == nil || p.chain == nil {
		return 0, ErrNotConfigured
	}

	opts := []backoff.RetryOption{backoff.WithBackOff(backoff.NewExponentialBackOff())}
	if p.maxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.maxElapsed))
	}

	id, err := backoff.Retry(ctx, func() (*big.Int, error) {
		return p.chain.ChainID(ctx)
	}, opts...)
	if err != nil {
		return 0, fmt.Errorf("ethereum: eth_chainId: %w", err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("ethereum: chain id out of range: %s", id)
	}
	return connection.NetworkID(id.Uint64()), nil
}

// redactURL drops the path (API keys of hosted RPC providers live there).
func redactURL(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		rest := u[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			return u[:i+3] + rest[:j] + "/***"
		}
	}
	return u
}
