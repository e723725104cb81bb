// Package decryptor obtains cleartext survey totals from an encryption
// gateway on behalf of a user. It issues decryption credentials (an
// ephemeral key pair authorized by an EIP-712 signature of the user), keeps
// them in a credential.Cache and coalesces concurrent signing requests, so
// the user is asked to sign at most once per contract set and window.
package decryptor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vocdoni/encrypted-survey/credential"
	"github.com/vocdoni/encrypted-survey/crypto/ecc/curves"
	"github.com/vocdoni/encrypted-survey/crypto/secies"
	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/log"
	"github.com/vocdoni/encrypted-survey/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	ErrSignerUnavailable = errors.New("signer unavailable")
	ErrSignatureDenied   = errors.New("signature denied")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrNoContracts       = errors.New("no contract addresses to authorize")
)

// Signer is the identity requesting decryptions. Signing may block for as
// long as the user takes to answer.
type Signer interface {
	Address() common.Address
	SignTypedData(typedData apitypes.TypedData) ([]byte, error)
}

// Gateway is the decryption side of an encryption gateway, either local or
// reached through the API client.
type Gateway interface {
	Info(ctx context.Context) (*gateway.Info, error)
	Decrypt(ctx context.Context, req *gateway.DecryptRequest) (*gateway.SealedValue, error)
}

// Decryptor runs the decryption authorization protocol. It is safe for
// concurrent use.
type Decryptor struct {
	gw       Gateway
	cache    credential.Cache
	group    singleflight.Group

	settingsLock sync.RWMutex
	duration     uint32
	now          func() time.Time

	infoLock sync.Mutex
	info     *gateway.Info
}

// New returns a Decryptor using gw to decrypt and cache to keep credentials.
func New(gw Gateway, cache credential.Cache) *Decryptor {
	return &Decryptor{
		gw:       gw,
		cache:    cache,
		duration: credential.DefaultDurationDays,
		now:      time.Now,
	}
}

// SetDuration sets the validity window, in days, of new credentials.
func (d *Decryptor) SetDuration(days uint32) {
	if days == 0 || days > credential.MaxDurationDays {
		days = credential.DefaultDurationDays
	}
	d.settingsLock.Lock()
	defer d.settingsLock.Unlock()
	d.duration = days
}

// SetClock replaces the time source. Meant for tests.
func (d *Decryptor) SetClock(now func() time.Time) {
	d.settingsLock.Lock()
	defer d.settingsLock.Unlock()
	d.now = now
}

// window returns the start and the duration of a credential issued now.
func (d *Decryptor) window() (int64, uint32) {
	d.settingsLock.RLock()
	defer d.settingsLock.RUnlock()
	return d.now().Unix(), d.duration
}

// gatewayInfo returns the gateway parameters, fetched once.
func (d *Decryptor) gatewayInfo(ctx context.Context) (*gateway.Info, error) {
	d.infoLock.Lock()
	defer d.infoLock.Unlock()
	if d.info != nil {
		return d.info, nil
	}
	info, err := d.gw.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot get gateway info: %w", err)
	}
	d.info = info
	return info, nil
}

// Credential returns a live credential of signer for contracts, from the
// cache or by asking signer for a new signature. Concurrent requests for the
// same user and contract set share a single signing round. If ctx is done
// before the round ends, the caller stops waiting; the round itself is not
// interrupted and its outcome is only cached if complete.
func (d *Decryptor) Credential(ctx context.Context, signer Signer, contracts []common.Address) (*credential.Credential, error) {
	if signer == nil {
		return nil, ErrSignerUnavailable
	}
	if len(contracts) == 0 {
		return nil, ErrNoContracts
	}
	info, err := d.gatewayInfo(ctx)
	if err != nil {
		return nil, err
	}
	contracts = credential.SortedContracts(contracts)
	key := credential.CacheKey(signer.Address(), contracts, info.Context)
	if cred, ok := d.cache.Get(key); ok {
		return cred, nil
	}

	ch := d.group.DoChan(hex.EncodeToString(key), func() (any, error) {
		// another round may have finished while this one was being set up
		if cred, ok := d.cache.Get(key); ok {
			return cred, nil
		}
		cred, err := d.issue(info, signer, contracts)
		if err != nil {
			return nil, err
		}
		if err := d.cache.Put(key, cred); err != nil {
			log.Warnw("cannot cache credential", "user", signer.Address().Hex(), "error", err.Error())
		}
		return cred, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*credential.Credential), nil
	}
}

// issue builds a new ephemeral key pair and has signer authorize it.
func (d *Decryptor) issue(info *gateway.Info, signer Signer, contracts []common.Address) (*credential.Credential, error) {
	if !curves.IsValid(info.Curve) {
		return nil, fmt.Errorf("gateway uses an unsupported curve %q", info.Curve)
	}
	eph, err := secies.New(nil, curves.New(info.Curve), nil)
	if err != nil {
		return nil, fmt.Errorf("cannot generate ephemeral key: %w", err)
	}
	start, days := d.window()
	cred := &credential.Credential{
		Authorization: credential.Authorization{
			PublicKey:         eph.GetPublicKey(),
			ContractAddresses: contracts,
			UserAddress:       signer.Address(),
			StartTimestamp:    start,
			DurationDays:      days,
		},
		PrivateKey: new(types.BigInt).SetBigInt(eph.GetPrivateKey()),
	}
	log.Debugw("requesting credential signature", "user", signer.Address().Hex(), "contracts", len(contracts))
	sig, err := signer.SignTypedData(cred.TypedData(info.Domain))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureDenied, err)
	}
	cred.Signature = sig
	if err := cred.Verify(info.Domain); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureDenied, err)
	}
	return cred, nil
}

// Decrypt returns the plaintext behind handle, read from the survey at
// contract. The zero handle is 0 and needs no credential.
func (d *Decryptor) Decrypt(ctx context.Context, signer Signer, contract common.Address, handle types.Handle) (*big.Int, error) {
	values, err := d.DecryptAll(ctx, signer, contract, []types.Handle{handle})
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// DecryptAll decrypts several handles read from the survey at contract, in
// parallel, with a single credential. Zero handles are resolved locally; if
// all of them are zero no credential is requested.
func (d *Decryptor) DecryptAll(ctx context.Context, signer Signer, contract common.Address, handles []types.Handle) ([]*big.Int, error) {
	values := make([]*big.Int, len(handles))
	pending := false
	for i, h := range handles {
		if h.IsZero() {
			values[i] = new(big.Int)
			continue
		}
		pending = true
	}
	if !pending {
		return values, nil
	}

	cred, err := d.Credential(ctx, signer, []common.Address{contract})
	if err != nil {
		return nil, err
	}
	info, err := d.gatewayInfo(ctx)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		if h.IsZero() {
			continue
		}
		g.Go(func() error {
			sealed, err := d.gw.Decrypt(gctx, &gateway.DecryptRequest{
				Handle:        h,
				Contract:      contract,
				Authorization: cred.Authorization,
			})
			if err != nil {
				return fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
			}
			v, err := sealed.Open(info.Curve, cred.PrivateKey.MathBigInt())
			if err != nil {
				return fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}
