package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/austyngo/ICO/internal/domain/common"
	"github.com/austyngo/ICO/internal/domain/connection"
	"github.com/austyngo/ICO/internal/domain/token"
)

type actionFixture struct {
	ledger    *fakeLedger
	submitter *fakeSubmitter
	provider  *fakeProvider
	uc        *ActionUsecase
}

func newActionFixture(network connection.NetworkID) *actionFixture {
	l := newFakeLedger()
	sub := &fakeSubmitter{ledger: l}
	p := &fakeProvider{id: network}
	gate := connection.NewGate(p)

	client := NewLedgerClient(l, gate, sepolia)
	walletUC := NewWalletUsecase(client, NewEligibilityUsecase(client, 0))
	uc := NewActionUsecase(gate, sepolia, client, sub, walletUC, nil)

	return &actionFixture{ledger: l, submitter: sub, provider: p, uc: uc}
}

func TestMint_InvalidQuantityMakesNoNetworkCall(t *testing.T) {
	for _, q := range []int64{0, -1, -100} {
		t.Run(fmt.Sprint(q), func(t *testing.T) {
			f := newActionFixture(sepolia)

			out, err := f.uc.Mint(context.Background(), alice, q)
			if common.KindOf(err) != common.KindInvalidQuantity {
				t.Fatalf("kind = %q, want InvalidQuantity (err=%v)", common.KindOf(err), err)
			}
			if !errors.Is(err, token.ErrInvalidQuantity) {
				t.Fatalf("want ErrInvalidQuantity, got %v", err)
			}
			if out.Submitted || out.ErrKind != common.KindInvalidQuantity {
				t.Fatalf("outcome = %+v", out)
			}
			if f.provider.calls != 0 || f.ledger.callCount() != 0 || f.submitter.callCount() != 0 {
				t.Fatalf("network touched: handshake=%d ledger=%d submit=%d",
					f.provider.calls, f.ledger.callCount(), f.submitter.callCount())
			}
		})
	}
}

func TestMint_SendsPaymentAndRefreshes(t *testing.T) {
	f := newActionFixture(sepolia)
	f.ledger.balances[alice] = token.WholeTokens(3)
	f.ledger.issued = token.WholeTokens(100)

	out, err := f.uc.Mint(context.Background(), alice, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantPayment := new(big.Int).Mul(big.NewInt(5), token.DefaultUnitPriceWei)
	if len(f.submitter.payments) != 1 || f.submitter.payments[0].Cmp(wantPayment) != 0 {
		t.Fatalf("payments = %v, want [%s]", f.submitter.payments, wantPayment)
	}
	if out.Payment.Cmp(wantPayment) != 0 {
		t.Fatalf("outcome payment = %s, want %s", out.Payment, wantPayment)
	}
	if !out.Submitted || !out.Confirmed {
		t.Fatalf("outcome = %+v, want submitted and confirmed", out)
	}
	if out.Snapshot == nil {
		t.Fatalf("no refresh snapshot (refreshErr=%v)", out.RefreshErr)
	}
	if got := out.Snapshot.Summary.Balance; got.Cmp(token.WholeTokens(8)) != 0 {
		t.Fatalf("balance = %s, want 8 tokens", token.FormatUnits(got))
	}
	if got := out.Snapshot.Summary.TotalIssued; got.Cmp(token.WholeTokens(105)) != 0 {
		t.Fatalf("totalIssued = %s, want 105 tokens", token.FormatUnits(got))
	}
	if f.uc.InFlight(alice) {
		t.Fatal("in-flight slot not released")
	}
}

func TestClaim_RefreshesEligibility(t *testing.T) {
	f := newActionFixture(sepolia)
	f.ledger.owned[alice] = []token.ID{3, 7, 9}
	f.ledger.claimed[7] = true

	out, err := f.uc.Claim(context.Background(), alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Confirmed || out.Snapshot == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if e := out.Snapshot.Eligibility; e.Owned != 3 || e.Unclaimed != 0 {
		t.Fatalf("eligibility = %+v, want {3 0}", e)
	}
	if got := out.Snapshot.Summary.Balance; got.Cmp(token.WholeTokens(2*token.TokensPerNFT)) != 0 {
		t.Fatalf("balance = %s, want 20 tokens", token.FormatUnits(got))
	}
	if out.Payment.Sign() != 0 {
		t.Fatalf("claim payment = %s, want 0", out.Payment)
	}
}

func TestBegin_SecondActionForSameAddressRejected(t *testing.T) {
	f := newActionFixture(sepolia)
	f.submitter.hold = make(chan struct{})
	ctx := context.Background()

	ticket, err := f.uc.Begin(ctx, token.Action{Kind: token.ActionMint, Address: alice, Quantity: 1})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if got := ticket.Outcome(); !got.Submitted || got.Confirmed || got.TxHash == "" {
		t.Fatalf("outcome after begin = %+v", got)
	}
	if !f.uc.InFlight(alice) {
		t.Fatal("alice should be in flight")
	}

	_, err = f.uc.Begin(ctx, token.Action{Kind: token.ActionClaim, Address: alice})
	if common.KindOf(err) != common.KindActionRejected || !errors.Is(err, token.ErrActionInFlight) {
		t.Fatalf("second begin err = %v", err)
	}

	// other addresses are not blocked
	other, err := f.uc.Begin(ctx, token.Action{Kind: token.ActionMint, Address: bob, Quantity: 2})
	if err != nil {
		t.Fatalf("begin for bob: %v", err)
	}

	close(f.submitter.hold)
	if _, err := ticket.Await(ctx); err != nil {
		t.Fatalf("await: %v", err)
	}
	if _, err := other.Await(ctx); err != nil {
		t.Fatalf("await bob: %v", err)
	}
	if f.uc.InFlight(alice) {
		t.Fatal("alice still in flight after await")
	}

	if _, err := f.uc.Claim(ctx, alice); err != nil {
		t.Fatalf("claim after settle: %v", err)
	}
}

func TestAwait_RevertedIsSubmittedNotConfirmed(t *testing.T) {
	f := newActionFixture(sepolia)
	f.submitter.waitErr = common.Wrap(common.KindActionRejected, "mint", token.ErrTransactionReverted)

	out, err := f.uc.Mint(context.Background(), alice, 1)
	if !errors.Is(err, token.ErrTransactionReverted) {
		t.Fatalf("err = %v", err)
	}
	if !out.Submitted || out.Confirmed {
		t.Fatalf("outcome = %+v, want submitted and not confirmed", out)
	}
	if out.ErrKind != common.KindActionRejected {
		t.Fatalf("errKind = %q", out.ErrKind)
	}
	if out.Snapshot != nil {
		t.Fatal("refresh must not run before confirmation")
	}
	if f.uc.InFlight(alice) {
		t.Fatal("in-flight slot not released")
	}
}

func TestAwait_CancelledKeepsSlotUntilMined(t *testing.T) {
	f := newActionFixture(sepolia)
	f.submitter.hold = make(chan struct{})

	ticket, err := f.uc.Begin(context.Background(), token.Action{Kind: token.ActionClaim, Address: alice})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := ticket.Await(ctx)
	if common.KindOf(err) != common.KindConnectivity {
		t.Fatalf("kind = %q, want Connectivity", common.KindOf(err))
	}
	if out.Confirmed || !out.Submitted {
		t.Fatalf("outcome = %+v", out)
	}
	if !f.uc.InFlight(alice) {
		t.Fatal("slot released while tx still pending")
	}
	if _, err := f.uc.Begin(context.Background(), token.Action{Kind: token.ActionMint, Address: alice, Quantity: 1}); !errors.Is(err, token.ErrActionInFlight) {
		t.Fatalf("second begin err = %v, want ErrActionInFlight", err)
	}

	again, err2 := ticket.Await(context.Background())
	if err2 == nil || again.Confirmed {
		t.Fatalf("second await = %+v, %v", again, err2)
	}

	close(f.submitter.hold)
	waitReleased(t, f.uc)
}

func TestAwait_AbandonedTxReleasedAfterPendingTimeout(t *testing.T) {
	f := newActionFixture(sepolia)
	f.submitter.hold = make(chan struct{}) // never mined
	f.uc.PendingTimeout = 20 * time.Millisecond

	ticket, err := f.uc.Begin(context.Background(), token.Action{Kind: token.ActionClaim, Address: alice})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ticket.Await(ctx); err == nil {
		t.Fatal("expected error")
	}
	waitReleased(t, f.uc)
}

func waitReleased(t *testing.T, uc *ActionUsecase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for uc.InFlight(alice) {
		if time.Now().After(deadline) {
			t.Fatal("in-flight slot never released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAwait_RefreshFailureKeepsConfirmation(t *testing.T) {
	f := newActionFixture(sepolia)
	f.ledger.balanceErr = errBoom

	out, err := f.uc.Mint(context.Background(), alice, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Confirmed {
		t.Fatal("confirmation lost")
	}
	if out.Snapshot != nil || !errors.Is(out.RefreshErr, errBoom) {
		t.Fatalf("snapshot=%v refreshErr=%v", out.Snapshot, out.RefreshErr)
	}
}

func TestMint_ExceedsMaxSupplyNotSubmitted(t *testing.T) {
	f := newActionFixture(sepolia)
	f.ledger.issued = token.WholeTokens(token.MaxSupplyTokens - 5)

	_, err := f.uc.Mint(context.Background(), alice, 10)
	if common.KindOf(err) != common.KindActionRejected || !errors.Is(err, token.ErrExceedsMaxSupply) {
		t.Fatalf("err = %v", err)
	}
	if f.submitter.callCount() != 0 {
		t.Fatal("request submitted past max supply")
	}
	if f.uc.InFlight(alice) {
		t.Fatal("in-flight slot not released")
	}
}

func TestMint_WrongNetworkNotSubmitted(t *testing.T) {
	f := newActionFixture(1)

	out, err := f.uc.Mint(context.Background(), alice, 1)
	if common.KindOf(err) != common.KindWrongNetwork {
		t.Fatalf("kind = %q, want WrongNetwork", common.KindOf(err))
	}
	if out.ErrKind != common.KindWrongNetwork {
		t.Fatalf("outcome kind = %q", out.ErrKind)
	}
	if f.ledger.callCount() != 0 || f.submitter.callCount() != 0 {
		t.Fatal("ledger touched on wrong network")
	}
}

func TestClaim_UserDeclined(t *testing.T) {
	f := newActionFixture(sepolia)
	f.provider.err = connection.ErrUserDeclined

	_, err := f.uc.Claim(context.Background(), alice)
	if common.KindOf(err) != common.KindUserDeclined {
		t.Fatalf("kind = %q, want UserDeclined", common.KindOf(err))
	}
	if f.submitter.callCount() != 0 {
		t.Fatal("submitted after decline")
	}
}

func TestMint_SubmitFailureReleasesSlot(t *testing.T) {
	f := newActionFixture(sepolia)
	f.submitter.submitErr = common.Wrap(common.KindConnectivity, "mint", errBoom)

	out, err := f.uc.Mint(context.Background(), alice, 1)
	if common.KindOf(err) != common.KindConnectivity {
		t.Fatalf("kind = %q, want Connectivity", common.KindOf(err))
	}
	if out.Submitted {
		t.Fatal("outcome marked submitted")
	}
	if f.uc.InFlight(alice) {
		t.Fatal("in-flight slot not released")
	}
}

func TestBegin_ReadOnly(t *testing.T) {
	uc := NewActionUsecase(nil, sepolia, newFakeLedger(), nil, nil, nil)
	_, err := uc.Begin(context.Background(), token.Action{Kind: token.ActionClaim, Address: alice})
	if !errors.Is(err, ErrSubmitterNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}
