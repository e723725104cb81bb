// Package gateway implements the encryption gateway of the survey node. It
// owns an ElGamal key pair and keeps every ciphertext it has seen, addressed
// by a 32 byte handle. Ledgers only ever handle these opaque handles: votes
// are encrypted off-ledger (Encrypt), checked and registered on submission
// (VerifyProof), aggregated (HomomorphicAdd) and finally decrypted for an
// authorized user (Decrypt).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/encrypted-survey/credential"
	"github.com/vocdoni/encrypted-survey/crypto/ecc"
	"github.com/vocdoni/encrypted-survey/crypto/ecc/curves"
	"github.com/vocdoni/encrypted-survey/crypto/elgamal"
	"github.com/vocdoni/encrypted-survey/crypto/secies"
	"github.com/vocdoni/encrypted-survey/log"
	"github.com/vocdoni/encrypted-survey/storage"
	"github.com/vocdoni/encrypted-survey/types"
)

const (
	// DefaultMaxTotal is the largest plaintext total Decrypt can recover.
	DefaultMaxTotal = uint64(1) << 32
	// MaxWeight is the largest weight a single encrypted input can carry.
	MaxWeight = 1<<elgamal.RangeBits - 1
)

var (
	ErrUnauthorized   = errors.New("not authorized to decrypt")
	ErrUnknownHandle  = errors.New("unknown ciphertext handle")
	ErrInvalidWeight  = errors.New("weight must be a positive 32 bit integer")
	ErrDecryptFailure = errors.New("cannot decrypt ciphertext")
)

// DefaultDomain is the EIP-712 domain used when none is configured.
var DefaultDomain = credential.Domain{
	Name:              "Decryption",
	Version:           "1",
	ChainID:           1337,
	VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000d3c47"),
}

// ACL decides whether user may decrypt handle in the context of contract.
type ACL interface {
	CanDecrypt(contract common.Address, handle types.Handle, user common.Address) bool
}

// Config holds the gateway parameters. Zero values select the defaults.
type Config struct {
	CurveType string
	MaxTotal  uint64
	Domain    credential.Domain
}

// Info is the public description of a gateway, all a client needs to
// encrypt inputs and to request decryptions.
type Info struct {
	Curve     string            `json:"curve"`
	PublicKey types.HexBytes    `json:"publicKey"`
	Domain    credential.Domain `json:"domain"`
	Context   types.HexBytes    `json:"context"`
	MaxTotal  uint64            `json:"maxTotal"`
}

// DecryptRequest asks the gateway for the plaintext behind Handle, read
// from the ledger at Contract, on behalf of the user that signed the
// authorization.
type DecryptRequest struct {
	Handle        types.Handle             `json:"handle"`
	Contract      common.Address           `json:"contract"`
	Authorization credential.Authorization `json:"authorization"`
}

// SealedValue is a plaintext sealed to the ephemeral public key of the
// requesting credential. Only the credential holder can open it.
type SealedValue struct {
	Handle     types.Handle   `json:"handle"`
	Ciphertext *types.BigInt  `json:"ciphertext"`
	Ephemeral  types.HexBytes `json:"ephemeral"`
}

// Open recovers the sealed plaintext with the ephemeral private key.
func (s *SealedValue) Open(curveType string, privateKey *big.Int) (*big.Int, error) {
	if !curves.IsValid(curveType) {
		return nil, fmt.Errorf("unsupported curve type %q", curveType)
	}
	if s.Ciphertext == nil || privateKey == nil {
		return nil, fmt.Errorf("incomplete sealed value")
	}
	se, err := secies.New(privateKey, curves.New(curveType), nil)
	if err != nil {
		return nil, err
	}
	return se.Decrypt(s.Ciphertext.MathBigInt(), s.Ephemeral)
}

// Gateway is the encryption gateway. It is safe for concurrent use.
type Gateway struct {
	stg        *storage.Storage
	publicKey  ecc.Point
	privateKey *big.Int
	domain     credential.Domain
	maxTotal   uint64
	context    types.HexBytes

	tableOnce sync.Once
	table     *elgamal.DLogTable

	aclLock sync.RWMutex
	acl     ACL

	clockLock sync.RWMutex
	now       func() time.Time
}

// New returns a gateway persisting into stg. The key pair is loaded from
// storage, or generated and stored on first use. If the stored key pair
// uses a different curve than the configured one, the stored one wins.
func New(stg *storage.Storage, conf Config) (*Gateway, error) {
	if conf.CurveType == "" {
		conf.CurveType = curves.CurveTypeBabyJubJub
	}
	if !curves.IsValid(conf.CurveType) {
		return nil, fmt.Errorf("unsupported curve type %q", conf.CurveType)
	}
	if conf.MaxTotal == 0 {
		conf.MaxTotal = DefaultMaxTotal
	}
	if conf.Domain.Name == "" {
		conf.Domain = DefaultDomain
	}

	pub, priv, err := stg.EncryptionKeys()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		pub, priv, err = elgamal.GenerateKey(curves.New(conf.CurveType))
		if err != nil {
			return nil, fmt.Errorf("cannot generate encryption keys: %w", err)
		}
		if err := stg.SetEncryptionKeys(pub, priv); err != nil {
			return nil, fmt.Errorf("cannot store encryption keys: %w", err)
		}
		log.Infow("generated gateway encryption keys", "curve", pub.Type())
	case err != nil:
		return nil, err
	case pub.Type() != conf.CurveType:
		log.Warnw("stored encryption keys use a different curve",
			"configured", conf.CurveType, "stored", pub.Type())
	}

	return &Gateway{
		stg:        stg,
		publicKey:  pub,
		privateKey: priv,
		domain:     conf.Domain,
		maxTotal:   conf.MaxTotal,
		context:    ethcrypto.Keccak256([]byte(pub.Type()), pub.Marshal()),
		now:        time.Now,
	}, nil
}

// SetACL sets the permission source consulted by Decrypt. Until one is set
// every decryption is refused.
func (g *Gateway) SetACL(acl ACL) {
	g.aclLock.Lock()
	defer g.aclLock.Unlock()
	g.acl = acl
}

// SetClock replaces the time source used to check credential windows.
func (g *Gateway) SetClock(now func() time.Time) {
	g.clockLock.Lock()
	defer g.clockLock.Unlock()
	g.now = now
}

func (g *Gateway) clock() time.Time {
	g.clockLock.RLock()
	defer g.clockLock.RUnlock()
	return g.now()
}

// Info returns the public parameters of the gateway. The context does not
// block, it only honours the interface shared with remote gateways.
func (g *Gateway) Info(_ context.Context) (*Info, error) {
	return &Info{
		Curve:     g.publicKey.Type(),
		PublicKey: g.publicKey.Marshal(),
		Domain:    g.domain,
		Context:   g.context,
		MaxTotal:  g.maxTotal,
	}, nil
}

// PublicKey returns the gateway encryption key.
func (g *Gateway) PublicKey() ecc.Point {
	return g.publicKey
}

// Context identifies the gateway key pair. Credentials issued for one
// gateway are cached under keys derived from it.
func (g *Gateway) Context() types.HexBytes {
	return g.context
}

// EIP712Domain returns the domain users sign decryption credentials for.
func (g *Gateway) EIP712Domain() credential.Domain {
	return g.domain
}

// Encrypt encrypts weight and proves that the ciphertext holds a value in
// [0, MaxWeight], binding the proof to contract and sender. It returns the
// handle of the ciphertext and the encoded proof to submit with it. The
// ciphertext is not registered until the proof is verified.
func (g *Gateway) Encrypt(weight uint64, contract, sender common.Address) (types.Handle, types.HexBytes, error) {
	return EncryptInput(g.publicKey, weight, contract, sender)
}

// EncryptInput is Encrypt for a gateway known only by its public key, so
// clients can encrypt their inputs without revealing them to anybody.
func EncryptInput(publicKey ecc.Point, weight uint64, contract, sender common.Address) (types.Handle, types.HexBytes, error) {
	if weight == 0 || weight > MaxWeight {
		return types.Handle{}, nil, ErrInvalidWeight
	}
	ct, proof, err := elgamal.ProveRange(publicKey, weight, bindings(contract, sender)...)
	if err != nil {
		return types.Handle{}, nil, err
	}
	data, err := (&elgamal.InputProof{Ciphertext: ct, Proof: proof}).Marshal()
	if err != nil {
		return types.Handle{}, nil, err
	}
	return handleOf(ct), data, nil
}

// PublicKeyFromInfo decodes the gateway public key advertised in info.
func PublicKeyFromInfo(info *Info) (ecc.Point, error) {
	if !curves.IsValid(info.Curve) {
		return nil, fmt.Errorf("unsupported curve type %q", info.Curve)
	}
	pub := curves.New(info.Curve)
	if err := pub.Unmarshal(info.PublicKey); err != nil {
		return nil, fmt.Errorf("invalid gateway public key: %w", err)
	}
	if !pub.IsOnCurve() {
		return nil, fmt.Errorf("gateway public key is not on the curve")
	}
	return pub, nil
}

// VerifyProof checks that proof carries the ciphertext referenced by handle,
// encrypted for this gateway, holding a value in [0, MaxWeight] and bound to
// contract and sender. On success the ciphertext is registered.
func (g *Gateway) VerifyProof(handle types.Handle, proof []byte, contract, sender common.Address) bool {
	ip := &elgamal.InputProof{}
	if err := ip.Unmarshal(proof); err != nil {
		log.Debugw("rejected input proof", "handle", handle.String(), "error", err.Error())
		return false
	}
	if ip.Ciphertext.C1.Type() != g.publicKey.Type() {
		log.Debugw("rejected input proof", "handle", handle.String(), "error", "curve mismatch")
		return false
	}
	if handleOf(ip.Ciphertext) != handle {
		log.Debugw("rejected input proof", "handle", handle.String(), "error", "handle mismatch")
		return false
	}
	if !ip.Proof.Verify(g.publicKey, ip.Ciphertext, bindings(contract, sender)...) {
		log.Debugw("rejected input proof", "handle", handle.String(), "error", "invalid proof")
		return false
	}
	if err := g.stg.SetCiphertext(handle, ip.Ciphertext.Serialize()); err != nil {
		log.Warnw("cannot register ciphertext", "handle", handle.String(), "error", err.Error())
		return false
	}
	return true
}

// HomomorphicAdd returns the handle of the encryption of the sum of the
// plaintexts behind a and b. The zero handle is the identity.
func (g *Gateway) HomomorphicAdd(a, b types.Handle) (types.Handle, error) {
	if a.IsZero() {
		return b, g.ensureKnown(b)
	}
	if b.IsZero() {
		return a, g.ensureKnown(a)
	}
	x, err := g.ciphertext(a)
	if err != nil {
		return types.Handle{}, err
	}
	y, err := g.ciphertext(b)
	if err != nil {
		return types.Handle{}, err
	}
	sum := elgamal.NewCiphertext(g.publicKey).Add(x, y)
	handle := handleOf(sum)
	if err := g.stg.SetCiphertext(handle, sum.Serialize()); err != nil {
		return types.Handle{}, fmt.Errorf("cannot store ciphertext: %w", err)
	}
	return handle, nil
}

// Decrypt returns the plaintext behind req.Handle sealed to the ephemeral
// key of the authorization. The authorization signature must recover its
// user address, the current time must be inside its window, it must cover
// req.Contract and the ACL must grant the user access to the handle. The
// zero handle decrypts to 0 without touching the ciphertext store.
func (g *Gateway) Decrypt(ctx context.Context, req *DecryptRequest) (*SealedValue, error) {
	auth := &req.Authorization
	if err := auth.Verify(g.domain); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if err := auth.CheckWindow(g.clock()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !auth.Covers(req.Contract) {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, credential.ErrContractNotCovered)
	}

	var plaintext *big.Int
	if req.Handle.IsZero() {
		plaintext = new(big.Int)
	} else {
		g.aclLock.RLock()
		acl := g.acl
		g.aclLock.RUnlock()
		if acl == nil || !acl.CanDecrypt(req.Contract, req.Handle, auth.UserAddress) {
			return nil, fmt.Errorf("%w: %s has no access to %s", ErrUnauthorized, auth.UserAddress.Hex(), req.Handle)
		}
		ct, err := g.ciphertext(req.Handle)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if plaintext, err = ct.Decrypt(g.privateKey, g.dlogTable()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecryptFailure, err)
		}
	}

	c, ephemeral, err := secies.Seal(g.publicKey.New(), plaintext, auth.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	log.Debugw("decrypted handle", "handle", req.Handle.String(),
		"contract", req.Contract.Hex(), "user", auth.UserAddress.Hex())
	return &SealedValue{
		Handle:     req.Handle,
		Ciphertext: new(types.BigInt).SetBigInt(c),
		Ephemeral:  ephemeral,
	}, nil
}

// dlogTable builds the discrete log table on first use. It is expensive for
// large MaxTotal values, so nodes that never decrypt never pay for it.
func (g *Gateway) dlogTable() *elgamal.DLogTable {
	g.tableOnce.Do(func() {
		start := time.Now()
		G := g.publicKey.New()
		G.SetGenerator()
		g.table = elgamal.NewDLogTable(G, g.maxTotal)
		log.Debugw("discrete log table ready", "max", g.maxTotal, "took", time.Since(start).String())
	})
	return g.table
}

func (g *Gateway) ciphertext(handle types.Handle) (*elgamal.Ciphertext, error) {
	data, err := g.stg.Ciphertext(handle)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
		}
		return nil, err
	}
	ct := elgamal.NewCiphertext(g.publicKey)
	if err := ct.Deserialize(data); err != nil {
		return nil, err
	}
	return ct, nil
}

func (g *Gateway) ensureKnown(handle types.Handle) error {
	if handle.IsZero() || g.stg.HasCiphertext(handle) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
}

// handleOf returns the content address of a ciphertext.
func handleOf(ct *elgamal.Ciphertext) types.Handle {
	return types.Handle(ethcrypto.Keccak256Hash(ct.Serialize()))
}

// bindings returns the values an input proof is bound to.
func bindings(contract, sender common.Address) []*big.Int {
	return []*big.Int{contract.Big(), sender.Big()}
}
