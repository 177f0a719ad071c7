// internal/application/usecase/eligibility_usecase.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/austyngo/ICO/internal/domain/common"
	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

const DefaultReconcileConcurrency = 8

var tracer trace.Tracer = otel.Tracer("github.com/austyngo/ICO/internal/application/usecase")

// EligibilityUsecase counts the NFTs an address owns that have not been claimed yet.
//
// 手順:
//  1. OwnedTokenIDs（0 件なら {0,0}、claimed フラグは問い合わせない）
//  2. tokenId ごとに IsClaimed を並列で問い合わせ（重複もそのまま数える）
//  3. 1 件でも失敗したら全体を Reconciliation エラーにする（部分的な件数は返さない）
//
// 結果はキャッシュしない。毎回再計算する。
type EligibilityUsecase struct {
	Ledger      LedgerReader
	Concurrency int
}

func NewEligibilityUsecase(ledger LedgerReader, concurrency int) *EligibilityUsecase {
	if concurrency <= 0 {
		concurrency = DefaultReconcileConcurrency
	}
	return &EligibilityUsecase{Ledger: ledger, Concurrency: concurrency}
}

func (uc *EligibilityUsecase) GetEligibility(ctx context.Context, owner wallet.Address) (_ token.Eligibility, err error) {
	if uc == nil || uc.Ledger == nil {
		return token.Eligibility{}, ErrLedgerNotConfigured
	}

	ctx, span := tracer.Start(ctx, "eligibility.GetEligibility")
	span.SetAttributes(attribute.String("wallet", owner.Short()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	owned, err := uc.Ledger.OwnedTokenIDs(ctx, owner)
	if err != nil {
		return token.Eligibility{}, reconcileErr(fmt.Errorf("owned token ids: %w", err))
	}
	if len(owned) == 0 {
		return token.Eligibility{}, nil
	}

	claimed, err := uc.lookup(ctx, owned)
	if err != nil {
		log.Printf("[eligibility] reconcile failed wallet=%s owned=%d: %v", owner.Short(), len(owned), err)
		return token.Eligibility{}, reconcileErr(err)
	}

	e, err := join(claimed)
	if err != nil {
		return token.Eligibility{}, reconcileErr(err)
	}
	span.SetAttributes(attribute.Int64("owned", int64(e.Owned)), attribute.Int64("unclaimed", int64(e.Unclaimed)))
	return e, nil
}

// lookup fans out one IsClaimed per owned entry. results[i] belongs to owned[i].
// 最初の失敗で errgroup の ctx がキャンセルされ、残りの問い合わせも止まる。
func (uc *EligibilityUsecase) lookup(ctx context.Context, owned []token.ID) ([]bool, error) {
	results := make([]bool, len(owned))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.Concurrency)

	for i, id := range owned {
		g.Go(func() error {
			c, err := uc.Ledger.IsClaimed(gctx, id)
			if err != nil {
				return fmt.Errorf("is claimed(%d): %w", id, err)
			}
			results[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// join is the fan-in stage: every lookup succeeded, count the unclaimed ones.
func join(claimed []bool) (token.Eligibility, error) {
	var unclaimed uint64
	for _, c := range claimed {
		if !c {
			unclaimed++
		}
	}
	return token.NewEligibility(uint64(len(claimed)), unclaimed)
}

// reconcileErr wraps a failed sub-query as Reconciliation.
// gate の拒否（WrongNetwork / UserDeclined）はユーザー操作が必要なのでそのまま返す。
func reconcileErr(err error) error {
	switch common.KindOf(err) {
	case common.KindWrongNetwork, common.KindUserDeclined:
		return err
	}
	if errors.Is(err, ErrLedgerNotConfigured) {
		return err
	}
	return common.Wrap(common.KindReconciliation, "eligibility", err)
}
