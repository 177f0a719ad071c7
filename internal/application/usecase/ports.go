// internal/application/usecase/ports.go
package usecase

import (
	"context"
	"math/big"

	"github.com/austyngo/ICO/internal/domain/connection"
	"github.com/austyngo/ICO/internal/domain/mint"
	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

// ✅ usecase が必要とするIFをここで定義する（infra に依存しない）

// LedgerReader is the read side of the NFT and token ledgers.
// Implemented by infra/ethereum.Ledger (raw) and LedgerClient (gated).
type LedgerReader interface {
	OwnedTokenIDs(ctx context.Context, owner wallet.Address) ([]token.ID, error)
	IsClaimed(ctx context.Context, id token.ID) (bool, error)
	TotalIssued(ctx context.Context) (*big.Int, error)
	Balance(ctx context.Context, owner wallet.Address) (*big.Int, error)
	MaxSupply(ctx context.Context) (*big.Int, error)
}

// PendingAction は ledger に受け付けられた（まだ確定していない）送信です。
type PendingAction interface {
	TxHash() string
	// Wait blocks until settlement. nil = confirmed.
	Wait(ctx context.Context) error
}

// ActionSubmitter sends state-changing requests to the token ledger.
type ActionSubmitter interface {
	SubmitMint(ctx context.Context, req mint.Request) (PendingAction, error)
	SubmitClaim(ctx context.Context, owner wallet.Address) (PendingAction, error)
}

// Gate admits a session onto the required network (connection.Gate).
type Gate interface {
	EnsureAdmitted(ctx context.Context, required connection.NetworkID) (connection.Connected, error)
}
