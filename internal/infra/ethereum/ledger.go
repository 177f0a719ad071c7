// internal/infra/ethereum/ledger.go
package ethereum

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

// Ledger implements usecase.LedgerReader over the NFT and token contracts:
//
//	OwnedTokenIDs(ctx, owner) ([]token.ID, error)
//	IsClaimed(ctx, id) (bool, error)
//	TotalIssued(ctx) (*big.Int, error)
//	Balance(ctx, owner) (*big.Int, error)
//	MaxSupply(ctx) (*big.Int, error)
//
// Reads are eth_calls; OwnedTokenIDs pins its calls to one block. Nothing is cached.
type Ledger struct {
	nft   *bind.BoundContract
	token *bind.BoundContract
	head  headReader // nil = latest のまま読む

	// maxTotalSupply() を持たない token contract 用
	FallbackMaxSupply *big.Int
}

// headReader is implemented by *ethclient.Client.
type headReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// NewLedger binds the two contracts to caller (an *ethclient.Client in production).
func NewLedger(caller bind.ContractCaller, nftAddress, tokenAddress gethcommon.Address) (*Ledger, error) {
	if caller == nil {
		return nil, ErrNotConfigured
	}
	if nftAddress == (gethcommon.Address{}) || tokenAddress == (gethcommon.Address{}) {
		return nil, fmt.Errorf("%w: contract address is empty", ErrNotConfigured)
	}
	l := &Ledger{
		nft:               bind.NewBoundContract(nftAddress, nftABI, caller, nil, nil),
		token:             bind.NewBoundContract(tokenAddress, tokenABI, caller, nil, nil),
		FallbackMaxSupply: token.WholeTokens(token.MaxSupplyTokens),
	}
	if h, ok := caller.(headReader); ok {
		l.head = h
	}
	return l, nil
}

// OwnedTokenIDs enumerates balanceOf(owner) then tokenOfOwnerByIndex(owner, i) in ledger order.
//
// Behavior notes:
//   - 0 枚は空 slice（エラーではない）
//   - 全ての呼び出しは同じ block に固定する（caller が HeaderByNumber を持つ場合）
//   - 列挙中の revert は失敗として返す。途中までの結果は返さない
//   - 重複は除去しない（ledger の出力をそのまま返す）
func (l *Ledger) OwnedTokenIDs(ctx context.Context, owner wallet.Address) ([]token.ID, error) {
	if l == nil || l.nft == nil {
		return nil, ErrNotConfigured
	}

	opts, err := l.pinnedOpts(ctx)
	if err != nil {
		return nil, readErr("ownedTokenIds", fmt.Errorf("ethereum: head block: %w", err))
	}

	bal, err := callUint(opts, l.nft, "balanceOf", owner.Common())
	if err != nil {
		return nil, readErr("ownedTokenIds", fmt.Errorf("ethereum: nft balanceOf: %w", err))
	}
	if !bal.IsUint64() {
		return nil, readErr("ownedTokenIds", fmt.Errorf("%w: %s", ErrBalanceOverflow, bal))
	}
	n := bal.Uint64()

	out := make([]token.ID, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := callUint(opts, l.nft, "tokenOfOwnerByIndex", owner.Common(), new(big.Int).SetUint64(i))
		if err != nil {
			if isRevert(err) {
				log.Printf("[ethereum] enumeration reverted owner=%s index=%d balance=%d block=%v",
					owner.Short(), i, n, opts.BlockNumber)
				err = fmt.Errorf("%w: index %d of %d: %v", ErrEnumerationIncomplete, i, n, err)
			}
			return nil, readErr("ownedTokenIds", fmt.Errorf("ethereum: tokenOfOwnerByIndex(%d): %w", i, err))
		}
		if !id.IsUint64() {
			return nil, readErr("ownedTokenIds", fmt.Errorf("ethereum: tokenId out of range: %s", id))
		}
		out = append(out, token.ID(id.Uint64()))
	}
	return out, nil
}

// pinnedOpts は最新 block 番号に固定した CallOpts を返す（head を読めない caller では latest）。
func (l *Ledger) pinnedOpts(ctx context.Context) (*bind.CallOpts, error) {
	opts := callOpts(ctx)
	if l.head == nil {
		return opts, nil
	}
	h, err := l.head.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	if h == nil || h.Number == nil {
		return opts, nil
	}
	opts.BlockNumber = new(big.Int).Set(h.Number)
	return opts, nil
}

func (l *Ledger) IsClaimed(ctx context.Context, id token.ID) (bool, error) {
	if l == nil || l.token == nil {
		return false, ErrNotConfigured
	}
	var res []any
	if err := l.token.Call(callOpts(ctx), &res, "tokenIdsClaimed", new(big.Int).SetUint64(uint64(id))); err != nil {
		return false, readErr("isClaimed", fmt.Errorf("ethereum: tokenIdsClaimed(%d): %w", id, err))
	}
	return *abi.ConvertType(res[0], new(bool)).(*bool), nil
}

func (l *Ledger) TotalIssued(ctx context.Context) (*big.Int, error) {
	if l == nil || l.token == nil {
		return nil, ErrNotConfigured
	}
	v, err := callUint(callOpts(ctx), l.token, "totalSupply")
	if err != nil {
		return nil, readErr("totalIssued", fmt.Errorf("ethereum: totalSupply: %w", err))
	}
	return v, nil
}

func (l *Ledger) Balance(ctx context.Context, owner wallet.Address) (*big.Int, error) {
	if l == nil || l.token == nil {
		return nil, ErrNotConfigured
	}
	v, err := callUint(callOpts(ctx), l.token, "balanceOf", owner.Common())
	if err != nil {
		return nil, readErr("balance", fmt.Errorf("ethereum: token balanceOf: %w", err))
	}
	return v, nil
}

// MaxSupply reads maxTotalSupply(); a revert (function missing) falls back to FallbackMaxSupply.
func (l *Ledger) MaxSupply(ctx context.Context) (*big.Int, error) {
	if l == nil || l.token == nil {
		return nil, ErrNotConfigured
	}
	v, err := callUint(callOpts(ctx), l.token, "maxTotalSupply")
	if err != nil {
		if isRevert(err) && l.FallbackMaxSupply != nil {
			return new(big.Int).Set(l.FallbackMaxSupply), nil
		}
		return nil, readErr("maxSupply", fmt.Errorf("ethereum: maxTotalSupply: %w", err))
	}
	return v, nil
}

func callUint(opts *bind.CallOpts, c *bind.BoundContract, method string, params ...any) (*big.Int, error) {
	var res []any
	if err := c.Call(opts, &res, method, params...); err != nil {
		return nil, err
	}
	return *abi.ConvertType(res[0], new(*big.Int)).(**big.Int), nil
}

func callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}
