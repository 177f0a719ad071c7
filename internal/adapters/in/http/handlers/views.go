// internal/adapters/in/http/handlers/views.go
package handlers

import (
	"math/big"

	"github.com/austyngo/ICO/internal/domain/common"
	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

// レスポンス DTO。金額は base units（10 進文字列）と表示用（FormatUnits）の両方を返す。

type eligibilityView struct {
	Address         string     `json:"address"`
	Owned           uint64     `json:"owned"`
	Unclaimed       uint64     `json:"unclaimed"`
	ClaimableTokens uint64     `json:"claimableTokens"`
	NextStep        token.Step `json:"nextStep"`
}

func newEligibilityView(addr wallet.Address, e token.Eligibility, inFlight bool) eligibilityView {
	return eligibilityView{
		Address:         addr.Hex(),
		Owned:           e.Owned,
		Unclaimed:       e.Unclaimed,
		ClaimableTokens: e.ClaimableTokens(),
		NextStep:        token.NextStep(e, inFlight),
	}
}

type amountView struct {
	Units   string `json:"units"`
	Display string `json:"display"`
}

func newAmountView(v *big.Int) *amountView {
	if v == nil {
		return nil
	}
	return &amountView{Units: v.String(), Display: token.FormatUnits(v)}
}

type summaryView struct {
	Address     string      `json:"address,omitempty"`
	Balance     *amountView `json:"balance"`
	TotalIssued *amountView `json:"totalIssued"`
	MaxSupply   *amountView `json:"maxSupply,omitempty"`
	Remaining   *amountView `json:"remaining,omitempty"`
}

func newSummaryView(addr wallet.Address, s token.Summary) summaryView {
	v := summaryView{
		Balance:     newAmountView(s.Balance),
		TotalIssued: newAmountView(s.TotalIssued),
		MaxSupply:   newAmountView(s.MaxSupply),
		Remaining:   newAmountView(s.Remaining()),
	}
	if !addr.IsZero() {
		v.Address = addr.Hex()
	}
	return v
}

type snapshotView struct {
	Summary     summaryView     `json:"summary"`
	Eligibility eligibilityView `json:"eligibility"`
}

type outcomeView struct {
	ID           string        `json:"id"`
	Action       string        `json:"action"`
	Address      string        `json:"address"`
	Quantity     int64         `json:"quantity,omitempty"`
	PaymentWei   string        `json:"paymentWei"`
	TxHash       string        `json:"txHash,omitempty"`
	Submitted    bool          `json:"submitted"`
	Confirmed    bool          `json:"confirmed"`
	Error        string        `json:"error,omitempty"`
	ErrorKind    common.Kind   `json:"errorKind,omitempty"`
	Snapshot     *snapshotView `json:"snapshot,omitempty"`
	RefreshError string        `json:"refreshError,omitempty"`
}

func newOutcomeView(o token.ActionOutcome) *outcomeView {
	v := &outcomeView{
		ID:        o.ID,
		Action:    string(o.Action.Kind),
		Address:   o.Action.Address.Hex(),
		Quantity:  o.Action.Quantity,
		TxHash:    o.TxHash,
		Submitted: o.Submitted,
		Confirmed: o.Confirmed,
		ErrorKind: o.ErrKind,
	}
	if o.Payment != nil {
		v.PaymentWei = o.Payment.String()
	} else {
		v.PaymentWei = "0"
	}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	if o.Snapshot != nil {
		v.Snapshot = &snapshotView{
			Summary:     newSummaryView(wallet.Address{}, o.Snapshot.Summary),
			Eligibility: newEligibilityView(o.Action.Address, o.Snapshot.Eligibility, false),
		}
	}
	if o.RefreshErr != nil {
		v.RefreshError = o.RefreshErr.Error()
	}
	return v
}
