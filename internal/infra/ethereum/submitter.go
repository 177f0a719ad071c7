// internal/infra/ethereum/submitter.go
package ethereum

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	usecase "github.com/austyngo/ICO/internal/application/usecase"
	"github.com/austyngo/ICO/internal/domain/common"
	"github.com/austyngo/ICO/internal/domain/mint"
	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

// Backend is what the submitter needs from the node: send transactions and read receipts.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Submitter implements usecase.ActionSubmitter against the token contract.
type Submitter struct {
	backend Backend
	token   *bind.BoundContract
	signers Signers
	chainID *big.Int
}

// インターフェース実装チェック
var _ usecase.ActionSubmitter = (*Submitter)(nil)

func NewSubmitter(backend Backend, tokenAddress gethcommon.Address, signers Signers, chainID uint64) (*Submitter, error) {
	if backend == nil || signers == nil {
		return nil, ErrNotConfigured
	}
	if tokenAddress == (gethcommon.Address{}) {
		return nil, fmt.Errorf("%w: token address is empty", ErrNotConfigured)
	}
	return &Submitter{
		backend: backend,
		token:   bind.NewBoundContract(tokenAddress, tokenABI, backend, backend, backend),
		signers: signers,
		chainID: new(big.Int).SetUint64(chainID),
	}, nil
}

// SubmitMint sends mint(quantity) carrying quantity × unitPrice wei.
func (s *Submitter) SubmitMint(ctx context.Context, req mint.Request) (usecase.PendingAction, error) {
	opts, err := s.signers.TransactOpts(ctx, req.To, s.chainID)
	if err != nil {
		return nil, err
	}
	opts.Value = new(big.Int).Set(req.Payment)

	log.Printf("[ethereum] submit mint to=%s quantity=%d value=%s", req.To.Short(), req.Quantity, req.Payment)

	tx, err := s.token.Transact(opts, "mint", big.NewInt(req.Quantity))
	if err != nil {
		return nil, writeErr("mint", fmt.Errorf("ethereum: mint: %w", err))
	}
	return s.pending(tx, "mint"), nil
}

// SubmitClaim sends claim() from owner.
func (s *Submitter) SubmitClaim(ctx context.Context, owner wallet.Address) (usecase.PendingAction, error) {
	opts, err := s.signers.TransactOpts(ctx, owner, s.chainID)
	if err != nil {
		return nil, err
	}

	log.Printf("[ethereum] submit claim from=%s", owner.Short())

	tx, err := s.token.Transact(opts, "claim")
	if err != nil {
		return nil, writeErr("claim", fmt.Errorf("ethereum: claim: %w", err))
	}
	return s.pending(tx, "claim"), nil
}

func (s *Submitter) pending(tx *types.Transaction, op string) *pendingTx {
	log.Printf("[ethereum] submitted %s tx=%s", op, maskShort(tx.Hash().Hex()))
	return &pendingTx{backend: s.backend, tx: tx, op: op}
}

// pendingTx は送信済み（未確定）のトランザクションです。
type pendingTx struct {
	backend bind.DeployBackend
	tx      *types.Transaction
	op      string
}

func (p *pendingTx) TxHash() string { return p.tx.Hash().Hex() }

// Wait blocks until the receipt is available. Timeouts are the caller's (ctx).
// 失敗ステータスの receipt は ledger による拒否。
func (p *pendingTx) Wait(ctx context.Context) error {
	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		// WaitMined は ctx の終了でしか戻らない。tx 自体はまだ確定し得る。
		return common.Wrap(common.KindConnectivity, p.op, fmt.Errorf("ethereum: wait %s: %w", maskShort(p.TxHash()), err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Printf("[ethereum] %s tx=%s reverted block=%s", p.op, maskShort(p.TxHash()), receipt.BlockNumber)
		return common.Wrap(common.KindActionRejected, p.op, fmt.Errorf("%w: tx=%s", token.ErrTransactionReverted, p.TxHash()))
	}
	log.Printf("[ethereum] confirmed %s tx=%s block=%s gasUsed=%d", p.op, maskShort(p.TxHash()), receipt.BlockNumber, receipt.GasUsed)
	return nil
}
