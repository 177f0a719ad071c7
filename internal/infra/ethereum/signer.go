// internal/infra/ethereum/signer.go
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	smpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/austyngo/ICO/internal/domain/common"
	"github.com/austyngo/ICO/internal/domain/connection"
	"github.com/austyngo/ICO/internal/domain/wallet"
)

// Signers は per-address の署名者（TransactOpts）を返します。
type Signers interface {
	TransactOpts(ctx context.Context, addr wallet.Address, chainID *big.Int) (*bind.TransactOpts, error)
}

// ------------------------------------------------------------
// StaticSigners: 開発用。環境変数の hex 秘密鍵から作る
// ------------------------------------------------------------

type StaticSigners struct {
	keys map[wallet.Address]*ecdsa.PrivateKey
}

// NewStaticSigners parses hex private keys ("0x" optional).
func NewStaticSigners(hexKeys ...string) (*StaticSigners, error) {
	s := &StaticSigners{keys: make(map[wallet.Address]*ecdsa.PrivateKey, len(hexKeys))}
	for _, h := range hexKeys {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		key, err := parseKey(h)
		if err != nil {
			return nil, err
		}
		s.keys[wallet.Address(crypto.PubkeyToAddress(key.PublicKey))] = key
	}
	return s, nil
}

// Addresses returns the addresses this signer set can sign for.
func (s *StaticSigners) Addresses() []wallet.Address {
	out := make([]wallet.Address, 0, len(s.keys))
	for a := range s.keys {
		out = append(out, a)
	}
	return out
}

func (s *StaticSigners) TransactOpts(ctx context.Context, addr wallet.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	if s == nil {
		return nil, ErrNotConfigured
	}
	key, ok := s.keys[addr]
	if !ok {
		return nil, common.Wrap(common.KindActionRejected, "signer", fmt.Errorf("%w: %s", ErrSignerNotFound, addr.Short()))
	}
	return transactOpts(ctx, key, chainID)
}

// ------------------------------------------------------------
// SecretManagerSigners: secretId = prefix + lower(hex address)
// ------------------------------------------------------------

// DefaultSecretPrefix is the secret id prefix used when none is configured.
const DefaultSecretPrefix = "eth-signer-"

// SecretID returns the Secret Manager secret id holding addr's key.
func SecretID(prefix string, addr wallet.Address) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = DefaultSecretPrefix
	}
	return p + strings.ToLower(addr.Hex())
}

// accessFunc returns the latest payload of a secret resource name.
type accessFunc func(ctx context.Context, name string) ([]byte, error)

type SecretManagerSigners struct {
	ProjectID string

	// default prefix = DefaultSecretPrefix
	SecretIDPrefix string

	access accessFunc
	close  func() error

	mu   sync.Mutex
	keys map[wallet.Address]*ecdsa.PrivateKey
}

// NewSecretManagerSigners creates a Secret Manager backed signer set.
// credentialsFile が空ならデフォルト認証（Cloud Run のサービスアカウント）を使う。
func NewSecretManagerSigners(ctx context.Context, projectID, prefix, credentialsFile string) (*SecretManagerSigners, error) {
	pid := strings.TrimSpace(projectID)
	if pid == "" {
		return nil, fmt.Errorf("%w: projectID is empty", ErrNotConfigured)
	}

	var opts []option.ClientOption
	if f := strings.TrimSpace(credentialsFile); f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}

	c, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}

	s := newSecretManagerSigners(pid, prefix, func(ctx context.Context, name string) ([]byte, error) {
		res, err := c.AccessSecretVersion(ctx, &smpb.AccessSecretVersionRequest{Name: name})
		if err != nil {
			return nil, err
		}
		if res == nil || res.Payload == nil {
			return nil, status.Error(codes.NotFound, "empty payload")
		}
		return res.Payload.Data, nil
	})
	s.close = c.Close
	return s, nil
}

func newSecretManagerSigners(projectID, prefix string, access accessFunc) *SecretManagerSigners {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = DefaultSecretPrefix
	}
	return &SecretManagerSigners{
		ProjectID:      projectID,
		SecretIDPrefix: p,
		access:         access,
		keys:           make(map[wallet.Address]*ecdsa.PrivateKey),
	}
}

func (s *SecretManagerSigners) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

func (s *SecretManagerSigners) TransactOpts(ctx context.Context, addr wallet.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	if s == nil || s.access == nil {
		return nil, ErrNotConfigured
	}

	key, err := s.load(ctx, addr)
	if err != nil {
		return nil, err
	}
	return transactOpts(ctx, key, chainID)
}

func (s *SecretManagerSigners) load(ctx context.Context, addr wallet.Address) (*ecdsa.PrivateKey, error) {
	s.mu.Lock()
	key, ok := s.keys[addr]
	s.mu.Unlock()
	if ok {
		return key, nil
	}

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		s.ProjectID, SecretID(s.SecretIDPrefix, addr))

	data, err := s.access(ctx, name)
	if err != nil {
		return nil, secretErr(addr, err)
	}

	key, err = parseKey(string(data))
	if err != nil {
		return nil, err
	}
	if wallet.Address(crypto.PubkeyToAddress(key.PublicKey)) != addr {
		return nil, fmt.Errorf("%w: %s", ErrSignerMismatch, addr.Short())
	}

	s.mu.Lock()
	s.keys[addr] = key
	s.mu.Unlock()
	return key, nil
}

// secretErr maps Secret Manager gRPC codes onto the error taxonomy.
//   - NotFound         : この address の署名者は登録されていない
//   - PermissionDenied : 署名の許可がない（ユーザー拒否扱い）
//   - それ以外         : Connectivity
func secretErr(addr wallet.Address, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return common.Wrap(common.KindActionRejected, "signer", fmt.Errorf("%w: %s", ErrSignerNotFound, addr.Short()))
	case codes.PermissionDenied, codes.Unauthenticated:
		return common.Wrap(common.KindUserDeclined, "signer", fmt.Errorf("%w: %v", connection.ErrUserDeclined, err))
	default:
		return common.Wrap(common.KindConnectivity, "signer", fmt.Errorf("access signer secret: %w", err))
	}
}

func parseKey(s string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	key, err := crypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

func transactOpts(ctx context.Context, key *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("ethereum: keyed transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}
