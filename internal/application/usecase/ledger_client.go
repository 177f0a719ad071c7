// internal/application/usecase/ledger_client.go
package usecase

import (
	"context"
	"errors"
	"math/big"

	"github.com/austyngo/ICO/internal/domain/connection"
	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

var ErrLedgerNotConfigured = errors.New("usecase: ledger not configured")

// LedgerClient wraps a raw LedgerReader so that every query is admitted by the gate first.
// 接続が許可されない場合（wrong network / declined）は ledger に一切問い合わせない。
type LedgerClient struct {
	raw      LedgerReader
	gate     Gate // nil = ungated
	required connection.NetworkID
}

var _ LedgerReader = (*LedgerClient)(nil)

func NewLedgerClient(raw LedgerReader, gate Gate, required connection.NetworkID) *LedgerClient {
	return &LedgerClient{raw: raw, gate: gate, required: required}
}

func (c *LedgerClient) OwnedTokenIDs(ctx context.Context, owner wallet.Address) ([]token.ID, error) {
	if err := c.admit(ctx); err != nil {
		return nil, err
	}
	return c.raw.OwnedTokenIDs(ctx, owner)
}

func (c *LedgerClient) IsClaimed(ctx context.Context, id token.ID) (bool, error) {
	if err := c.admit(ctx); err != nil {
		return false, err
	}
	return c.raw.IsClaimed(ctx, id)
}

func (c *LedgerClient) TotalIssued(ctx context.Context) (*big.Int, error) {
	if err := c.admit(ctx); err != nil {
		return nil, err
	}
	return c.raw.TotalIssued(ctx)
}

func (c *LedgerClient) Balance(ctx context.Context, owner wallet.Address) (*big.Int, error) {
	if err := c.admit(ctx); err != nil {
		return nil, err
	}
	return c.raw.Balance(ctx, owner)
}

func (c *LedgerClient) MaxSupply(ctx context.Context) (*big.Int, error) {
	if err := c.admit(ctx); err != nil {
		return nil, err
	}
	return c.raw.MaxSupply(ctx)
}

func (c *LedgerClient) admit(ctx context.Context) error {
	if c == nil || c.raw == nil {
		return ErrLedgerNotConfigured
	}
	if c.gate == nil {
		return nil
	}
	_, err := c.gate.EnsureAdmitted(ctx, c.required)
	return err
}
