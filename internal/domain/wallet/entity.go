// internal/domain/wallet/entity.go
package wallet

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Domain errors
var (
	ErrInvalidWalletAddress = errors.New("wallet: invalid walletAddress")
	ErrZeroWalletAddress    = errors.New("wallet: walletAddress is the zero address")
)

// Address はウォレットの 20 byte アドレスです（EVM）。
// 全ての per-user クエリのキーになる不変の値型です。
type Address common.Address

// ParseAddress は "0x" 付き / なしの 40 桁 hex を受け付けます。
// チェックサム（大文字小文字）は検証しません。ゼロアドレスは拒否します。
func ParseAddress(s string) (Address, error) {
	t := strings.TrimSpace(s)
	if !common.IsHexAddress(t) {
		return Address{}, ErrInvalidWalletAddress
	}
	a := Address(common.HexToAddress(t))
	if a.IsZero() {
		return Address{}, ErrZeroWalletAddress
	}
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Common returns the go-ethereum representation.
func (a Address) Common() common.Address { return common.Address(a) }

// Hex は EIP-55 チェックサム付きの表記を返します。
func (a Address) Hex() string { return common.Address(a).Hex() }

func (a Address) String() string { return a.Hex() }

func (a Address) IsZero() bool { return a == Address{} }

// Short はログ用のマスク表記（0x12***cdef）。
func (a Address) Short() string {
	h := a.Hex()
	return h[:4] + "***" + h[len(h)-4:]
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
