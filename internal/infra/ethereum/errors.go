package ethereum

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/austyngo/ICO/internal/domain/common"
)

var (
	ErrNotConfigured   = errors.New("ethereum: client not configured")
	ErrSignerNotFound  = errors.New("ethereum: no signer for address")
	ErrSignerMismatch  = errors.New("ethereum: signer key does not match address")
	ErrInvalidKey      = errors.New("ethereum: invalid private key")
	ErrBalanceOverflow = errors.New("ethereum: balance does not fit uint64")

	// tokenOfOwnerByIndex が balanceOf の範囲内で revert した（非 Enumerable / 設定ミスを含む）
	ErrEnumerationIncomplete = errors.New("ethereum: owner enumeration incomplete")
)

// readErr: 読み取りの失敗は全て Connectivity（再試行可能）。
func readErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if common.KindOf(err) != common.KindUnknown {
		return err
	}
	return common.Wrap(common.KindConnectivity, op, err)
}

// writeErr: node が JSON-RPC エラーで返したもの（revert, insufficient funds, nonce too low ...）は
// ledger による拒否。それ以外（接続断など）は送信前の Connectivity。
func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if common.KindOf(err) != common.KindUnknown {
		return err
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) || rejectedByNode(err) {
		return common.Wrap(common.KindActionRejected, op, err)
	}
	return common.Wrap(common.KindConnectivity, op, err)
}

// bind は gas 見積もりのエラーを %v で包むので rpc.Error が消える。文言で判定する。
var rejectionMessages = []string{
	"execution reverted",
	"insufficient funds",
	"nonce too low",
	"replacement transaction underpriced",
}

func rejectedByNode(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, m := range rejectionMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// isRevert reports whether err is an eth_call revert rather than a transport failure.
func isRevert(err error) bool {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	// geth: code 3 with revert data, others: -32000 "execution reverted"
	return rpcErr.ErrorCode() == 3 || strings.Contains(strings.ToLower(rpcErr.Error()), "execution reverted")
}

func maskShort(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
