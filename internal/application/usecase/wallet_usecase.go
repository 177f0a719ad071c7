// internal/application/usecase/wallet_usecase.go
package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

// WalletUsecase answers the per-address read views (summary, snapshot).
type WalletUsecase struct {
	Ledger      LedgerReader
	Eligibility *EligibilityUsecase // nil の場合 Snapshot は使えない
}

func NewWalletUsecase(ledger LedgerReader, eligibility *EligibilityUsecase) *WalletUsecase {
	return &WalletUsecase{Ledger: ledger, Eligibility: eligibility}
}

// GetSummary reads balance, totalIssued and maxSupply concurrently.
func (uc *WalletUsecase) GetSummary(ctx context.Context, owner wallet.Address) (token.Summary, error) {
	if uc == nil || uc.Ledger == nil {
		return token.Summary{}, ErrLedgerNotConfigured
	}

	var s token.Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := uc.Ledger.Balance(gctx, owner)
		s.Balance = v
		return wrapRead("balance", err)
	})
	g.Go(func() error {
		v, err := uc.Ledger.TotalIssued(gctx)
		s.TotalIssued = v
		return wrapRead("total issued", err)
	})
	g.Go(func() error {
		v, err := uc.Ledger.MaxSupply(gctx)
		s.MaxSupply = v
		return wrapRead("max supply", err)
	})
	if err := g.Wait(); err != nil {
		return token.Summary{}, err
	}
	return s, nil
}

// Snapshot = summary + eligibility. ActionUsecase の確定後リフレッシュでも使う。
func (uc *WalletUsecase) Snapshot(ctx context.Context, owner wallet.Address) (token.Snapshot, error) {
	if uc == nil || uc.Eligibility == nil {
		return token.Snapshot{}, ErrLedgerNotConfigured
	}

	var snap token.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := uc.GetSummary(gctx, owner)
		snap.Summary = s
		return err
	})
	g.Go(func() error {
		e, err := uc.Eligibility.GetEligibility(gctx, owner)
		snap.Eligibility = e
		return err
	})
	if err := g.Wait(); err != nil {
		return token.Snapshot{}, err
	}
	return snap, nil
}

func wrapRead(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("wallet usecase: %s: %w", what, err)
}
