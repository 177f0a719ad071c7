package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	nftAddr   = gethcommon.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenAddr = gethcommon.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// rpcErr satisfies rpc.Error.
type rpcErr struct {
	code int
	msg  string
}

func (e rpcErr) Error() string  { return e.msg }
func (e rpcErr) ErrorCode() int { return e.code }

var errRevert = rpcErr{code: 3, msg: "execution reverted"}

type callKey struct {
	to     gethcommon.Address
	method string
}

type callHandler func(args []any) ([]any, error)

// fakeChain answers eth_call with ABI-packed outputs and records sent transactions.
// Methods not overridden come from the nil embedded interface and panic if reached.
type fakeChain struct {
	bind.ContractBackend

	mu       sync.Mutex
	abis     map[gethcommon.Address]abi.ABI
	handlers map[callKey]callHandler
	calls    map[string]int
	blocks   map[string][]*big.Int // block argument per eth_call method
	head     int64

	sendErr  error
	sent     []*types.Transaction
	receipts map[gethcommon.Hash]*types.Receipt
	status   uint64
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		abis:     map[gethcommon.Address]abi.ABI{nftAddr: nftABI, tokenAddr: tokenABI},
		handlers: map[callKey]callHandler{},
		calls:    map[string]int{},
		blocks:   map[string][]*big.Int{},
		head:     1,
		receipts: map[gethcommon.Hash]*types.Receipt{},
		status:   types.ReceiptStatusSuccessful,
	}
}

func (f *fakeChain) on(to gethcommon.Address, method string, h callHandler) {
	f.handlers[callKey{to, method}] = h
}

func (f *fakeChain) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeChain) CallContract(ctx context.Context, msg geth.CallMsg, block *big.Int) ([]byte, error) {
	if msg.To == nil {
		return nil, errors.New("fake: no target")
	}
	a, ok := f.abis[*msg.To]
	if !ok {
		return nil, fmt.Errorf("fake: unknown contract %s", msg.To.Hex())
	}
	m, err := a.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := m.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls[m.Name]++
	f.blocks[m.Name] = append(f.blocks[m.Name], block)
	h := f.handlers[callKey{*msg.To, m.Name}]
	f.mu.Unlock()

	if h == nil {
		return nil, fmt.Errorf("fake: no handler for %s", m.Name)
	}
	out, err := h(args)
	if err != nil {
		return nil, err
	}
	return m.Outputs.Pack(out...)
}

func (f *fakeChain) CodeAt(ctx context.Context, account gethcommon.Address, block *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) PendingCodeAt(ctx context.Context, account gethcommon.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{Number: big.NewInt(f.head)}, nil // no BaseFee: legacy pricing
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account gethcommon.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, call geth.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.receipts[tx.Hash()] = &types.Receipt{
		Status:      f.status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(int64(len(f.sent))),
		GasUsed:     50_000,
	}
	return nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, hash gethcommon.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[hash]
	if !ok {
		return nil, geth.NotFound
	}
	return r, nil
}

func uintOut(v int64) callHandler {
	return func([]any) ([]any, error) { return []any{big.NewInt(v)}, nil }
}
