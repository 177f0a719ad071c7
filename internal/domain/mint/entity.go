// internal/domain/mint/entity.go
package mint

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/austyngo/ICO/internal/domain/common"
	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

// ------------------------------------------------------
// Errors
// ------------------------------------------------------

var (
	ErrInvalidUnitPrice = errors.New("mint: invalid unit price")
)

// ------------------------------------------------------
// Entity: Request (有償 mint 1 回分)
// ------------------------------------------------------
//
// - to        : 受取アドレス（署名者と同一）
// - quantity  : whole token 数（> 0）
// - payment   : quantity × unitPrice (wei)
// - amount    : quantity × 10^18 (base units, 上限チェック用)
type Request struct {
	To       wallet.Address
	Quantity int64
	Payment  *big.Int
	Amount   *big.Int
}

// NewRequest は数量を検証し、支払額を計算します。
// quantity <= 0 は InvalidQuantity（ネットワークに触れる前に失敗させる）。
func NewRequest(to wallet.Address, quantity int64, unitPrice *big.Int) (Request, error) {
	if quantity <= 0 {
		return Request{}, common.Wrap(common.KindInvalidQuantity, "mint",
			fmt.Errorf("%w: got %d", token.ErrInvalidQuantity, quantity))
	}
	if unitPrice == nil || unitPrice.Sign() <= 0 {
		return Request{}, ErrInvalidUnitPrice
	}
	if to.IsZero() {
		return Request{}, wallet.ErrZeroWalletAddress
	}
	return Request{
		To:       to,
		Quantity: quantity,
		Payment:  Payment(quantity, unitPrice),
		Amount:   token.WholeTokens(quantity),
	}, nil
}

// Payment = quantity × unitPrice.
func Payment(quantity int64, unitPrice *big.Int) *big.Int {
	return new(big.Int).Mul(big.NewInt(quantity), unitPrice)
}

// CheckSupply は発行上限を超えないかを確認します。maxSupply が nil なら何もしません。
func (r Request) CheckSupply(totalIssued, maxSupply *big.Int) error {
	if maxSupply == nil || totalIssued == nil {
		return nil
	}
	after := new(big.Int).Add(totalIssued, r.Amount)
	if after.Cmp(maxSupply) > 0 {
		return common.Wrap(common.KindActionRejected, "mint",
			fmt.Errorf("%w: issued=%s requested=%s max=%s",
				token.ErrExceedsMaxSupply,
				token.FormatUnits(totalIssued),
				token.FormatUnits(r.Amount),
				token.FormatUnits(maxSupply)))
	}
	return nil
}
