// internal/domain/connection/gate.go
package connection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/austyngo/ICO/internal/domain/common"
)

var (
	ErrWrongNetwork          = errors.New("connection: connected to the wrong network")
	ErrUserDeclined          = errors.New("connection: user declined the connection")
	ErrHandshakeFailed       = errors.New("connection: wallet handshake failed")
	ErrProviderNotConfigured = errors.New("connection: wallet provider not configured")
)

// State は接続状態です。
//
//	Disconnected -> Connecting -> Connected(networkId)
//	Connecting   -> Rejected(reason)   (terminal until Reset)
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateRejected     State = "rejected"
)

// NetworkID is the chain id reported by the wallet/transport provider.
type NetworkID uint64

// WalletProvider はウォレット/トランスポート側のハンドシェイクです。
// ユーザーが拒否した場合は ErrUserDeclined を（wrap して）返してください。
type WalletProvider interface {
	Handshake(ctx context.Context) (NetworkID, error)
}

// Connected is returned by a successful admission.
type Connected struct {
	Network NetworkID
}

// Status は表示用のスナップショットです。
type Status struct {
	State   State
	Network NetworkID
	Reason  string
}

// Gate is the admission check run before every ledger read or write.
type Gate struct {
	provider WalletProvider

	// dial は handshake を直列化する。状態の読み取りは mu のみで行うため
	// handshake 中でも State() はブロックしない。
	dial sync.Mutex

	mu        sync.RWMutex
	state     State
	network   NetworkID
	rejection error
}

func NewGate(p WalletProvider) *Gate {
	return &Gate{provider: p, state: StateDisconnected}
}

// EnsureAdmitted は接続済みかつ required のネットワーク上にいることを確認します。
//   - 初回呼び出しで Disconnected -> Connecting -> handshake
//   - ネットワーク不一致は WrongNetwork（ユーザーの切り替えが必要なので再試行しない）
//   - Rejected は Reset されるまで同じエラーを返す
func (g *Gate) EnsureAdmitted(ctx context.Context, required NetworkID) (Connected, error) {
	if g == nil || g.provider == nil {
		return Connected{}, common.Wrap(common.KindConnectivity, "ensureAdmitted", ErrProviderNotConfigured)
	}

	if c, done, err := g.admitted(required); done {
		return c, err
	}

	g.dial.Lock()
	defer g.dial.Unlock()

	// 待っている間に別の呼び出しが handshake を終えている場合
	if c, done, err := g.admitted(required); done {
		return c, err
	}

	g.set(StateConnecting, 0, nil)

	id, err := g.provider.Handshake(ctx)
	if err != nil {
		// 呼び出し側のキャンセルは拒否ではない。次の呼び出しで再接続させる。
		if ctxErr := ctx.Err(); ctxErr != nil {
			g.set(StateDisconnected, 0, nil)
			return Connected{}, common.Wrap(common.KindConnectivity, "ensureAdmitted", ctxErr)
		}
		rej := rejection(err)
		g.set(StateRejected, 0, rej)
		log.Printf("[gate] rejected: %v", err)
		return Connected{}, rej
	}

	g.set(StateConnected, id, nil)
	log.Printf("[gate] connected network=%d", id)

	return check(id, required)
}

// Reset は Disconnected に戻します（ユーザーが再接続ボタンを押した場合など）。
func (g *Gate) Reset() {
	g.set(StateDisconnected, 0, nil)
}

// SwitchNetwork はウォレット側でネットワークが切り替わったことを反映します。
// 接続済みでなければ何もしません。
func (g *Gate) SwitchNetwork(id NetworkID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateConnected {
		g.network = id
	}
}

// Watch は接続中に interval ごとに provider のネットワークを読み直し、変化を SwitchNetwork で反映します。
// ctx が終わるまで戻りません。interval <= 0 なら何もしません。
func (g *Gate) Watch(ctx context.Context, interval time.Duration) {
	if g == nil || g.provider == nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			g.recheck(ctx)
		}
	}
}

func (g *Gate) recheck(ctx context.Context) {
	if g.State().State != StateConnected {
		return
	}

	g.dial.Lock()
	defer g.dial.Unlock()

	id, err := g.provider.Handshake(ctx)
	if err != nil {
		// 一時的な失敗では接続状態を変えない。次の tick で読み直す。
		log.Printf("[gate] network re-check failed: %v", err)
		return
	}
	if before := g.State().Network; id != before {
		g.SwitchNetwork(id)
		log.Printf("[gate] network changed %d -> %d", before, id)
	}
}

func (g *Gate) State() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := Status{State: g.state, Network: g.network}
	if g.rejection != nil {
		s.Reason = g.rejection.Error()
	}
	return s
}

func (g *Gate) admitted(required NetworkID) (Connected, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	switch g.state {
	case StateConnected:
		c, err := check(g.network, required)
		return c, true, err
	case StateRejected:
		return Connected{}, true, g.rejection
	default:
		return Connected{}, false, nil
	}
}

func (g *Gate) set(s State, id NetworkID, rej error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
	g.network = id
	g.rejection = rej
}

func check(connected, required NetworkID) (Connected, error) {
	if connected != required {
		return Connected{}, common.Wrap(common.KindWrongNetwork, "ensureAdmitted",
			fmt.Errorf("%w: connected=%d required=%d", ErrWrongNetwork, connected, required))
	}
	return Connected{Network: connected}, nil
}

func rejection(err error) error {
	if errors.Is(err, ErrUserDeclined) {
		return common.Wrap(common.KindUserDeclined, "ensureAdmitted", err)
	}
	return common.Wrap(common.KindConnectivity, "ensureAdmitted", fmt.Errorf("%w: %w", ErrHandshakeFailed, err))
}
