// internal/application/usecase/action_usecase.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/austyngo/ICO/internal/domain/common"
	"github.com/austyngo/ICO/internal/domain/connection"
	"github.com/austyngo/ICO/internal/domain/mint"
	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

var ErrSubmitterNotConfigured = errors.New("usecase: action submitter not configured (read-only)")

// DefaultPendingTimeout bounds the background wait for a tx whose caller stopped waiting.
const DefaultPendingTimeout = 30 * time.Minute

// ActionUsecase orchestrates mint / claim against the token ledger.
//
// ライフサイクル:
//
//	Begin  -> 送信（Submitted=true, TxHash あり）
//	Await  -> 確定待ち（Confirmed=true）-> balance / totalIssued / eligibility を再取得
//
// 同一 address に対しては確定待ちの action が 1 件までで、他の address や読み取りは止めない。
type ActionUsecase struct {
	Gate      Gate // nil = ungated
	Required  connection.NetworkID
	Ledger    LedgerReader
	Submitter ActionSubmitter
	Wallet    *WalletUsecase
	UnitPrice *big.Int

	// 呼び出し側が確定前に離れた tx を見届ける上限（0 = DefaultPendingTimeout）
	PendingTimeout time.Duration

	mu       sync.Mutex
	inFlight map[wallet.Address]string // address -> action id
}

func NewActionUsecase(
	gate Gate,
	required connection.NetworkID,
	ledger LedgerReader,
	submitter ActionSubmitter,
	walletUC *WalletUsecase,
	unitPrice *big.Int,
) *ActionUsecase {
	if unitPrice == nil {
		unitPrice = token.DefaultUnitPriceWei
	}
	return &ActionUsecase{
		Gate:      gate,
		Required:  required,
		Ledger:    ledger,
		Submitter: submitter,
		Wallet:    walletUC,
		UnitPrice: new(big.Int).Set(unitPrice),
		inFlight:  make(map[wallet.Address]string),
	}
}

// Mint submits mint(quantity) with quantity × UnitPrice and waits for confirmation.
func (uc *ActionUsecase) Mint(ctx context.Context, addr wallet.Address, quantity int64) (token.ActionOutcome, error) {
	return uc.run(ctx, token.Action{Kind: token.ActionMint, Address: addr, Quantity: quantity})
}

// Claim submits claim() and waits for confirmation.
// 残り eligibility の確認は呼び出し側の責任（ここでは再計算しない）。
func (uc *ActionUsecase) Claim(ctx context.Context, addr wallet.Address) (token.ActionOutcome, error) {
	return uc.run(ctx, token.Action{Kind: token.ActionClaim, Address: addr})
}

func (uc *ActionUsecase) run(ctx context.Context, a token.Action) (token.ActionOutcome, error) {
	t, err := uc.Begin(ctx, a)
	if err != nil {
		o := token.ActionOutcome{Action: a}
		return o, o.Fail(err)
	}
	return t.Await(ctx)
}

// InFlight reports whether addr has an action awaiting confirmation.
func (uc *ActionUsecase) InFlight(addr wallet.Address) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	_, ok := uc.inFlight[addr]
	return ok
}

// Begin validates and submits a. On success the returned Ticket holds the in-flight slot
// for a.Address until Await returns.
func (uc *ActionUsecase) Begin(ctx context.Context, a token.Action) (_ *Ticket, err error) {
	// ネットワークに触れる前のローカル検証
	if err := a.Validate(); err != nil {
		return nil, err
	}
	var req mint.Request
	if a.Kind == token.ActionMint {
		if req, err = mint.NewRequest(a.Address, a.Quantity, uc.UnitPrice); err != nil {
			return nil, err
		}
	}
	if uc.Submitter == nil {
		return nil, ErrSubmitterNotConfigured
	}

	id := uuid.NewString()
	if err := uc.acquire(a.Address, id); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			uc.release(a.Address, id)
		}
	}()

	ctx, span := tracer.Start(ctx, "action.Begin")
	span.SetAttributes(
		attribute.String("action.id", id),
		attribute.String("action.kind", string(a.Kind)),
		attribute.String("wallet", a.Address.Short()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if uc.Gate != nil {
		if _, err := uc.Gate.EnsureAdmitted(ctx, uc.Required); err != nil {
			return nil, err
		}
	}

	outcome := token.ActionOutcome{ID: id, Action: a, Payment: new(big.Int)}

	var pending PendingAction
	switch a.Kind {
	case token.ActionMint:
		if err := uc.checkSupply(ctx, req); err != nil {
			return nil, err
		}
		outcome.Payment = new(big.Int).Set(req.Payment)
		log.Printf("[action] mint begin id=%s wallet=%s quantity=%d payment=%s",
			id, a.Address.Short(), a.Quantity, req.Payment)
		pending, err = uc.Submitter.SubmitMint(ctx, req)
	case token.ActionClaim:
		log.Printf("[action] claim begin id=%s wallet=%s", id, a.Address.Short())
		pending, err = uc.Submitter.SubmitClaim(ctx, a.Address)
	}
	if err != nil {
		log.Printf("[action] %s submit failed id=%s wallet=%s: %v", a.Kind, id, a.Address.Short(), err)
		return nil, err
	}

	outcome.Submitted = true
	outcome.TxHash = pending.TxHash()
	span.SetAttributes(attribute.String("tx", outcome.TxHash))

	return &Ticket{uc: uc, pending: pending, outcome: outcome}, nil
}

// checkSupply は発行上限の事前チェック（上限が読めない場合は ledger 側に任せる）。
func (uc *ActionUsecase) checkSupply(ctx context.Context, req mint.Request) error {
	if uc.Ledger == nil {
		return nil
	}
	var issued, maxSupply *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		issued, err = uc.Ledger.TotalIssued(gctx)
		return err
	})
	g.Go(func() (err error) {
		maxSupply, err = uc.Ledger.MaxSupply(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("action: supply check: %w", err)
	}
	return req.CheckSupply(issued, maxSupply)
}

func (uc *ActionUsecase) acquire(addr wallet.Address, id string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.inFlight == nil {
		uc.inFlight = make(map[wallet.Address]string)
	}
	if cur, ok := uc.inFlight[addr]; ok {
		return common.Wrap(common.KindActionRejected, "action",
			fmt.Errorf("%w: wallet=%s id=%s", token.ErrActionInFlight, addr.Short(), cur))
	}
	uc.inFlight[addr] = id
	return nil
}

func (uc *ActionUsecase) release(addr wallet.Address, id string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.inFlight[addr] == id {
		delete(uc.inFlight, addr)
	}
}

// ------------------------------------------------------------
// Ticket: submitted -> confirmed の awaitable
// ------------------------------------------------------------

type Ticket struct {
	uc      *ActionUsecase
	pending PendingAction

	wait sync.Mutex // held for the whole Await

	mu      sync.Mutex
	done    bool
	outcome token.ActionOutcome
}

// Outcome returns the current state (Submitted after Begin, final after Await).
// 確定待ちの間も block しない。
func (t *Ticket) Outcome() token.ActionOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

// Await blocks until the action settles, then refreshes the derived state.
// If ctx ends first the tx may still be mined: the outcome is returned as not confirmed,
// but the in-flight slot stays held until a background wait (PendingTimeout) finishes.
// A second call returns the settled outcome without waiting again.
func (t *Ticket) Await(ctx context.Context) (token.ActionOutcome, error) {
	t.wait.Lock()
	defer t.wait.Unlock()

	o := t.Outcome()
	if t.isDone() {
		return o, o.Err
	}
	keepSlot := false
	defer func() {
		if !keepSlot {
			t.uc.release(o.Action.Address, o.ID)
		}
	}()

	ctx, span := tracer.Start(ctx, "action.Await")
	span.SetAttributes(attribute.String("action.id", o.ID), attribute.String("tx", o.TxHash))
	defer span.End()

	if err := t.pending.Wait(ctx); err != nil {
		log.Printf("[action] %s not confirmed id=%s tx=%s: %v", o.Action.Kind, o.ID, o.TxHash, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			// 送信済みの tx はまだ確定し得るので slot は渡さない
			keepSlot = true
			go t.uc.drain(o, t.pending)
		}
		err = o.Fail(err)
		t.settle(o)
		return o, err
	}
	o.Confirmed = true
	log.Printf("[action] %s confirmed id=%s wallet=%s", o.Action.Kind, o.ID, o.Action.Address.Short())

	// 確定後にだけリフレッシュする。失敗しても確定は取り消さない。
	if t.uc.Wallet != nil {
		snap, err := t.uc.Wallet.Snapshot(ctx, o.Action.Address)
		if err != nil {
			log.Printf("[action] refresh failed id=%s wallet=%s: %v", o.ID, o.Action.Address.Short(), err)
			o.RefreshErr = err
			span.RecordError(err)
		} else {
			o.Snapshot = &snap
		}
	}
	t.settle(o)
	return o, nil
}

// drain waits for a tx the caller gave up on, then frees its in-flight slot.
func (uc *ActionUsecase) drain(o token.ActionOutcome, p PendingAction) {
	defer uc.release(o.Action.Address, o.ID)

	timeout := uc.PendingTimeout
	if timeout <= 0 {
		timeout = DefaultPendingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := p.Wait(ctx); err != nil {
		log.Printf("[action] %s abandoned id=%s tx=%s: %v", o.Action.Kind, o.ID, o.TxHash, err)
		return
	}
	log.Printf("[action] %s confirmed after caller left id=%s wallet=%s", o.Action.Kind, o.ID, o.Action.Address.Short())
}

func (t *Ticket) isDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Ticket) settle(o token.ActionOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcome = o
	t.done = true
}
