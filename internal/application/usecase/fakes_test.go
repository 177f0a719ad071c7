package usecase

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/austyngo/ICO/internal/domain/common"
	"github.com/austyngo/ICO/internal/domain/connection"
	"github.com/austyngo/ICO/internal/domain/mint"
	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

var (
	alice = wallet.MustParseAddress("0x1111111111111111111111111111111111111111")
	bob   = wallet.MustParseAddress("0x2222222222222222222222222222222222222222")
)

const sepolia connection.NetworkID = 11155111

var errBoom = errors.New("boom")

// fakeLedger is an in-memory NFT + token ledger.
type fakeLedger struct {
	mu sync.Mutex

	owned    map[wallet.Address][]token.ID
	claimed  map[token.ID]bool
	balances map[wallet.Address]*big.Int
	issued   *big.Int
	max      *big.Int

	ownedErr   error
	claimedErr map[token.ID]error
	balanceErr error

	calls        int
	claimedCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		owned:      map[wallet.Address][]token.ID{},
		claimed:    map[token.ID]bool{},
		balances:   map[wallet.Address]*big.Int{},
		issued:     new(big.Int),
		max:        token.WholeTokens(token.MaxSupplyTokens),
		claimedErr: map[token.ID]error{},
	}
}

func (f *fakeLedger) OwnedTokenIDs(ctx context.Context, owner wallet.Address) ([]token.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.ownedErr != nil {
		return nil, f.ownedErr
	}
	return append([]token.ID(nil), f.owned[owner]...), nil
}

func (f *fakeLedger) IsClaimed(ctx context.Context, id token.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.claimedCalls++
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := f.claimedErr[id]; err != nil {
		return false, err
	}
	return f.claimed[id], nil
}

func (f *fakeLedger) TotalIssued(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return new(big.Int).Set(f.issued), nil
}

func (f *fakeLedger) Balance(ctx context.Context, owner wallet.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if b, ok := f.balances[owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeLedger) MaxSupply(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return new(big.Int).Set(f.max), nil
}

func (f *fakeLedger) credit(owner wallet.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[owner]
	if !ok {
		b = new(big.Int)
		f.balances[owner] = b
	}
	b.Add(b, amount)
	f.issued.Add(f.issued, amount)
}

func (f *fakeLedger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeSubmitter applies the effect of an action to the ledger when it confirms.
type fakeSubmitter struct {
	ledger *fakeLedger

	mu        sync.Mutex
	calls     int
	payments  []*big.Int
	submitErr error
	waitErr   error
	hold      chan struct{} // non-nil: Wait blocks until closed
}

func (s *fakeSubmitter) SubmitMint(ctx context.Context, req mint.Request) (PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.payments = append(s.payments, new(big.Int).Set(req.Payment))
	return &fakePending{s: s, hash: "0xmint", effect: func() {
		s.ledger.credit(req.To, req.Amount)
	}}, nil
}

func (s *fakeSubmitter) SubmitClaim(ctx context.Context, owner wallet.Address) (PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &fakePending{s: s, hash: "0xclaim", effect: func() {
		l := s.ledger
		l.mu.Lock()
		var n int64
		for _, id := range l.owned[owner] {
			if !l.claimed[id] {
				l.claimed[id] = true
				n++
			}
		}
		l.mu.Unlock()
		l.credit(owner, token.WholeTokens(n*token.TokensPerNFT))
	}}, nil
}

func (s *fakeSubmitter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakePending struct {
	s      *fakeSubmitter
	hash   string
	effect func()
}

func (p *fakePending) TxHash() string { return p.hash }

func (p *fakePending) Wait(ctx context.Context) error {
	if p.s.hold != nil {
		select {
		case <-p.s.hold:
		case <-ctx.Done():
			return common.Wrap(common.KindConnectivity, "wait", ctx.Err())
		}
	}
	if p.s.waitErr != nil {
		return p.s.waitErr
	}
	p.effect()
	return nil
}

// fakeProvider answers the gate handshake.
type fakeProvider struct {
	mu    sync.Mutex
	id    connection.NetworkID
	err   error
	calls int
}

func (p *fakeProvider) Handshake(ctx context.Context) (connection.NetworkID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.id, p.err
}
