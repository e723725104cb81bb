package credential

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/encrypted-survey/crypto/ethereum"
	"github.com/vocdoni/encrypted-survey/storage"
	"github.com/vocdoni/encrypted-survey/types"
)

var testDomain = Domain{
	Name:              "Decryption",
	Version:           "1",
	ChainID:           1337,
	VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000000d0"),
}

var (
	contractA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	contractB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func signedCredential(c *qt.C, signer *ethereum.SignKeys, start time.Time, days uint32, contracts ...common.Address) *Credential {
	cred := &Credential{
		Authorization: Authorization{
			PublicKey:         types.HexBytes{1, 2, 3, 4},
			ContractAddresses: contracts,
			UserAddress:       signer.Address(),
			StartTimestamp:    start.Unix(),
			DurationDays:      days,
		},
		PrivateKey: types.NewInt(42),
	}
	sig, err := signer.SignTypedData(cred.TypedData(testDomain))
	c.Assert(err, qt.IsNil)
	cred.Signature = sig
	return cred
}

func TestAuthorizationVerify(t *testing.T) {
	c := qt.New(t)
	signer := ethereum.NewSignKeys()
	c.Assert(signer.Generate(), qt.IsNil)

	cred := signedCredential(c, signer, time.Now(), 10, contractA)
	c.Assert(cred.Verify(testDomain), qt.IsNil)
	c.Assert(cred.Covers(contractA), qt.IsTrue)
	c.Assert(cred.Covers(contractB), qt.IsFalse)

	// claiming another user fails
	other := cred.Authorization
	other.UserAddress = contractB
	c.Assert(other.Verify(testDomain), qt.ErrorIs, ErrInvalidSignature)

	// extending the contract set invalidates the signature
	extended := cred.Authorization
	extended.ContractAddresses = []common.Address{contractA, contractB}
	c.Assert(extended.Verify(testDomain), qt.ErrorIs, ErrInvalidSignature)

	// a different domain invalidates the signature
	otherDomain := testDomain
	otherDomain.ChainID = 1
	c.Assert(cred.Verify(otherDomain), qt.ErrorIs, ErrInvalidSignature)

	// malformed credentials
	bad := cred.Authorization
	bad.DurationDays = 0
	c.Assert(bad.Verify(testDomain), qt.ErrorIs, ErrInvalidCredential)
}

func TestAuthorizationWindow(t *testing.T) {
	c := qt.New(t)
	start := time.Unix(1_700_000_000, 0)
	a := &Authorization{StartTimestamp: start.Unix(), DurationDays: 1}

	c.Assert(a.CheckWindow(start), qt.IsNil)
	c.Assert(a.CheckWindow(start.Add(24*time.Hour)), qt.IsNil)
	c.Assert(a.CheckWindow(start.Add(24*time.Hour+time.Second)), qt.Equals, ErrExpired)
	c.Assert(a.CheckWindow(start.Add(-time.Hour)), qt.Equals, ErrNotYetValid)
	c.Assert(a.Expired(start.Add(25*time.Hour)), qt.IsTrue)
}

func TestCacheKey(t *testing.T) {
	c := qt.New(t)
	user := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	ctx := []byte("network")

	k1 := CacheKey(user, []common.Address{contractA, contractB}, ctx)
	k2 := CacheKey(user, []common.Address{contractB, contractA, contractA}, ctx)
	c.Assert(k1, qt.DeepEquals, k2)
	c.Assert(CacheKey(user, []common.Address{contractA}, ctx), qt.Not(qt.DeepEquals), k1)
	c.Assert(CacheKey(contractA, []common.Address{contractA, contractB}, ctx), qt.Not(qt.DeepEquals), k1)
	c.Assert(CacheKey(user, []common.Address{contractA, contractB}, []byte("other")), qt.Not(qt.DeepEquals), k1)
}

func testCache(c *qt.C, cache Cache, setClock func(func() time.Time)) {
	signer := ethereum.NewSignKeys()
	c.Assert(signer.Generate(), qt.IsNil)
	now := time.Now()
	setClock(func() time.Time { return now })

	key := CacheKey(signer.Address(), []common.Address{contractA}, []byte("ctx"))
	_, ok := cache.Get(key)
	c.Assert(ok, qt.IsFalse)

	first := signedCredential(c, signer, now, 1, contractA)
	c.Assert(cache.Put(key, first), qt.IsNil)
	got, ok := cache.Get(key)
	c.Assert(ok, qt.IsTrue)
	c.Assert(got.Signature, qt.DeepEquals, first.Signature)
	c.Assert(got.PrivateKey.Equal(first.PrivateKey), qt.IsTrue)

	// an older credential does not replace a fresher live one
	older := signedCredential(c, signer, now.Add(-time.Hour), 1, contractA)
	c.Assert(cache.Put(key, older), qt.IsNil)
	got, ok = cache.Get(key)
	c.Assert(ok, qt.IsTrue)
	c.Assert(got.StartTimestamp, qt.Equals, first.StartTimestamp)

	// expiry is lazy, observed on read
	setClock(func() time.Time { return now.Add(48 * time.Hour) })
	_, ok = cache.Get(key)
	c.Assert(ok, qt.IsFalse)

	// once expired, any credential can take its place
	renewed := signedCredential(c, signer, now.Add(47*time.Hour), 1, contractA)
	c.Assert(cache.Put(key, renewed), qt.IsNil)
	got, ok = cache.Get(key)
	c.Assert(ok, qt.IsTrue)
	c.Assert(got.StartTimestamp, qt.Equals, renewed.StartTimestamp)
}

func TestMemoryCache(t *testing.T) {
	c := qt.New(t)
	cache, err := NewMemoryCache(0)
	c.Assert(err, qt.IsNil)
	testCache(c, cache, cache.SetClock)
}

func TestStorageCache(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(memdb.New())
	_, err := NewStorageCache(stg, []byte("short"))
	c.Assert(err, qt.Not(qt.IsNil))

	cache, err := NewStorageCache(stg, []byte("a client side secret of enough length"))
	c.Assert(err, qt.IsNil)
	testCache(c, cache, cache.SetClock)

	// a cache opened with another secret cannot read the entries
	signer := ethereum.NewSignKeys()
	c.Assert(signer.Generate(), qt.IsNil)
	key := []byte("key")
	c.Assert(cache.Put(key, signedCredential(c, signer, time.Now(), 1, contractA)), qt.IsNil)
	_, ok := cache.Get(key)
	c.Assert(ok, qt.IsTrue)

	other, err := NewStorageCache(stg, []byte("a different secret of enough length"))
	c.Assert(err, qt.IsNil)
	_, ok = other.Get(key)
	c.Assert(ok, qt.IsFalse)

	sealed, err := stg.Credential(key)
	c.Assert(err, qt.IsNil)
	c.Assert(string(sealed), qt.Not(qt.Contains), signer.Address().Hex())
}
