// internal/domain/token/entity.go
package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/dustin/go-humanize"

	"github.com/austyngo/ICO/internal/domain/common"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

// Errors
var (
	ErrInvalidQuantity     = errors.New("token: quantity must be a positive integer")
	ErrInconsistentCounts  = errors.New("token: unclaimed exceeds owned")
	ErrActionInFlight      = errors.New("token: action already in flight for address")
	ErrExceedsMaxSupply    = errors.New("token: requested amount exceeds max supply")
	ErrTransactionReverted = errors.New("token: transaction reverted")
	ErrUnknownAction       = errors.New("token: unknown action")
)

// Policy (CryptoDevToken の定数に合わせる)
const (
	Decimals = 18

	// TokensPerNFT は NFT 1 枚あたりの claim 数（画面表示は unclaimed * 10）。
	TokensPerNFT = 10

	// MaxSupplyTokens は発行上限（whole tokens）。
	MaxSupplyTokens = 10000
)

// DefaultUnitPriceWei is 0.001 ether per whole token.
var DefaultUnitPriceWei = big.NewInt(1_000_000_000_000_000)

// ID は NFT ledger 上の tokenId です。
type ID uint64

// ------------------------------------------------------
// Eligibility
// ------------------------------------------------------

// Eligibility は 1 アドレスについて、ある時点で観測した
// 「保有 NFT 数」と「まだ claim されていない NFT 数」です。
// キャッシュはしません。アクションの後は必ず再取得してください。
type Eligibility struct {
	Owned     uint64
	Unclaimed uint64
}

// NewEligibility は Unclaimed <= Owned を保証します。
func NewEligibility(owned, unclaimed uint64) (Eligibility, error) {
	if unclaimed > owned {
		return Eligibility{}, fmt.Errorf("%w: owned=%d unclaimed=%d", ErrInconsistentCounts, owned, unclaimed)
	}
	return Eligibility{Owned: owned, Unclaimed: unclaimed}, nil
}

func (e Eligibility) HasClaimable() bool { return e.Unclaimed > 0 }

// ClaimableTokens は claim で受け取れる whole token 数。
func (e Eligibility) ClaimableTokens() uint64 { return e.Unclaimed * TokensPerNFT }

// ------------------------------------------------------
// Summary / Snapshot
// ------------------------------------------------------

// Summary holds base-unit (18 decimals) amounts.
type Summary struct {
	Balance     *big.Int
	TotalIssued *big.Int
	MaxSupply   *big.Int // nil when unknown
}

// Remaining returns MaxSupply - TotalIssued, or nil when MaxSupply is unknown.
func (s Summary) Remaining() *big.Int {
	if s.MaxSupply == nil || s.TotalIssued == nil {
		return nil
	}
	r := new(big.Int).Sub(s.MaxSupply, s.TotalIssued)
	if r.Sign() < 0 {
		r.SetInt64(0)
	}
	return r
}

// Snapshot は確定後リフレッシュで読み直した派生値の組です。
type Snapshot struct {
	Summary     Summary
	Eligibility Eligibility
}

// ------------------------------------------------------
// Actions
// ------------------------------------------------------

type ActionKind string

const (
	ActionMint  ActionKind = "mint"
	ActionClaim ActionKind = "claim"
)

// Action is one state-changing request against the token ledger.
type Action struct {
	Kind     ActionKind
	Address  wallet.Address
	Quantity int64 // mint only
}

// Validate は送信前のローカル検証のみを行います（ネットワークには触れない）。
func (a Action) Validate() error {
	switch a.Kind {
	case ActionMint:
		if a.Quantity <= 0 {
			return common.Wrap(common.KindInvalidQuantity, "mint", fmt.Errorf("%w: got %d", ErrInvalidQuantity, a.Quantity))
		}
	case ActionClaim:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}
	if a.Address.IsZero() {
		return wallet.ErrZeroWalletAddress
	}
	return nil
}

// ActionOutcome は送信から確定までのライフサイクルです。
//   - Submitted: ledger が受け付けた（まだ final ではない）
//   - Confirmed: 確定し、効果が観測可能になった
type ActionOutcome struct {
	ID        string
	Action    Action
	TxHash    string
	Payment   *big.Int // wei; zero for claim
	Submitted bool
	Confirmed bool
	ErrKind   common.Kind
	Err       error

	// 確定後のリフレッシュ結果。リフレッシュ失敗は確定を取り消さない。
	Snapshot   *Snapshot
	RefreshErr error
}

// Fail records err on the outcome and returns it.
func (o *ActionOutcome) Fail(err error) error {
	o.Err = err
	o.ErrKind = common.KindOf(err)
	return err
}

// ------------------------------------------------------
// Next step (画面のボタン出し分け)
// ------------------------------------------------------

type Step string

const (
	StepLoading Step = "loading"
	StepClaim   Step = "claim"
	StepMint    Step = "mint"
)

// NextStep: 処理中なら loading、claim できる NFT があれば claim、それ以外は mint。
func NextStep(e Eligibility, inFlight bool) Step {
	switch {
	case inFlight:
		return StepLoading
	case e.HasClaimable():
		return StepClaim
	default:
		return StepMint
	}
}

// ------------------------------------------------------
// Units
// ------------------------------------------------------

// WholeTokens converts n whole tokens to base units.
func WholeTokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), unit())
}

// FormatUnits renders a base-unit amount as a comma-grouped decimal ("1,234.5").
func FormatUnits(v *big.Int) string {
	if v == nil {
		return "-"
	}
	f := new(big.Float).SetPrec(256).SetInt(v)
	f.Quo(f, new(big.Float).SetPrec(256).SetInt(unit()))
	return humanize.BigCommaf(f)
}

func unit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
}
