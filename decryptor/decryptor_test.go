package decryptor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/encrypted-survey/credential"
	"github.com/vocdoni/encrypted-survey/crypto/ethereum"
	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/ledger"
	"github.com/vocdoni/encrypted-survey/storage"
	"github.com/vocdoni/encrypted-survey/types"
)

// testSigner wraps SignKeys counting the signing rounds. If release is set,
// signing blocks until it is closed. If deny is set, signing fails.
type testSigner struct {
	*ethereum.SignKeys
	calls   atomic.Int32
	release chan struct{}
	deny    atomic.Bool
}

func newTestSigner(c *qt.C) *testSigner {
	k := ethereum.NewSignKeys()
	c.Assert(k.Generate(), qt.IsNil)
	return &testSigner{SignKeys: k}
}

func (s *testSigner) SignTypedData(td apitypes.TypedData) ([]byte, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.deny.Load() {
		return nil, errors.New("user rejected the request")
	}
	return s.SignKeys.SignTypedData(td)
}

type testEnv struct {
	gw       *gateway.Gateway
	registry *ledger.Registry
	cache    *credential.MemoryCache
	dec      *Decryptor
}

func newTestEnv(c *qt.C) *testEnv {
	stg := storage.New(memdb.New())
	gw, err := gateway.New(stg, gateway.Config{MaxTotal: 1 << 10})
	c.Assert(err, qt.IsNil)
	registry, err := ledger.NewRegistry(stg, gw)
	c.Assert(err, qt.IsNil)
	gw.SetACL(registry)
	cache, err := credential.NewMemoryCache(0)
	c.Assert(err, qt.IsNil)
	return &testEnv{gw: gw, registry: registry, cache: cache, dec: New(gw, cache)}
}

// newSurvey deploys and configures a survey owned by owner with votes of
// weight 1..n for option 0 and grants reader access to option 0.
func (e *testEnv) newSurvey(c *qt.C, owner, reader common.Address, n int) *ledger.Survey {
	s, _, err := e.registry.Deploy(owner)
	c.Assert(err, qt.IsNil)
	_, err = s.ConfigureSurvey(owner, "Q", []string{"A", "B"})
	c.Assert(err, qt.IsNil)
	for i := 1; i <= n; i++ {
		addr := common.BigToAddress(big.NewInt(int64(100 + i)))
		handle, proof, err := e.gw.Encrypt(uint64(i), s.Address(), addr)
		c.Assert(err, qt.IsNil)
		_, err = s.SubmitVote(addr, 0, handle, proof)
		c.Assert(err, qt.IsNil)
	}
	_, err = s.AllowResultFor(owner, reader, 0)
	c.Assert(err, qt.IsNil)
	return s
}

func TestDecrypt(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	owner := newTestSigner(c)
	reader := newTestSigner(c)
	s := env.newSurvey(c, owner.Address(), reader.Address(), 3)
	ctx := context.Background()

	total, err := s.EncryptedTotal(0)
	c.Assert(err, qt.IsNil)
	v, err := env.dec.Decrypt(ctx, reader, s.Address(), total)
	c.Assert(err, qt.IsNil)
	c.Assert(v.Uint64(), qt.Equals, uint64(6))

	// the second decryption reuses the credential
	v, err = env.dec.Decrypt(ctx, reader, s.Address(), total)
	c.Assert(err, qt.IsNil)
	c.Assert(v.Uint64(), qt.Equals, uint64(6))
	c.Assert(reader.calls.Load(), qt.Equals, int32(1))

	// the owner signs but is not allowed until finalization
	_, err = env.dec.Decrypt(ctx, owner, s.Address(), total)
	c.Assert(err, qt.ErrorIs, ErrDecryptionFailed)
	c.Assert(err, qt.ErrorIs, gateway.ErrUnauthorized)
	_, err = s.FinalizeSurvey(owner.Address())
	c.Assert(err, qt.IsNil)
	v, err = env.dec.Decrypt(ctx, owner, s.Address(), total)
	c.Assert(err, qt.IsNil)
	c.Assert(v.Uint64(), qt.Equals, uint64(6))
	c.Assert(owner.calls.Load(), qt.Equals, int32(1))
}

func TestDecryptAll(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	owner := newTestSigner(c)
	s := env.newSurvey(c, owner.Address(), owner.Address(), 4)
	_, err := s.FinalizeSurvey(owner.Address())
	c.Assert(err, qt.IsNil)

	handles := make([]types.Handle, s.OptionCount())
	for i := range handles {
		handles[i], err = s.EncryptedTotal(uint32(i))
		c.Assert(err, qt.IsNil)
	}
	values, err := env.dec.DecryptAll(context.Background(), owner, s.Address(), handles)
	c.Assert(err, qt.IsNil)
	c.Assert(values, qt.HasLen, 2)
	c.Assert(values[0].Uint64(), qt.Equals, uint64(10))
	c.Assert(values[1].Uint64(), qt.Equals, uint64(0))
	c.Assert(owner.calls.Load(), qt.Equals, int32(1))
}

func TestZeroHandleNeedsNoSignature(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	signer := newTestSigner(c)
	contract := common.HexToAddress("0x0000000000000000000000000000000000000abc")

	v, err := env.dec.Decrypt(context.Background(), signer, contract, types.ZeroHandle)
	c.Assert(err, qt.IsNil)
	c.Assert(v.Sign(), qt.Equals, 0)
	values, err := env.dec.DecryptAll(context.Background(), nil, contract, []types.Handle{{}, {}})
	c.Assert(err, qt.IsNil)
	c.Assert(values, qt.HasLen, 2)
	c.Assert(signer.calls.Load(), qt.Equals, int32(0))
	c.Assert(env.cache.Len(), qt.Equals, 0)

	_, err = env.dec.Decrypt(context.Background(), nil, contract, types.Handle{1})
	c.Assert(err, qt.ErrorIs, ErrSignerUnavailable)
}

func TestCredentialSingleFlight(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	signer := newTestSigner(c)
	signer.release = make(chan struct{})
	contracts := []common.Address{{1}, {2}}

	const requests = 16
	var wg sync.WaitGroup
	creds := make([]*credential.Credential, requests)
	errs := make([]error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// the contract order is irrelevant
			cs := contracts
			if i%2 == 1 {
				cs = []common.Address{contracts[1], contracts[0]}
			}
			creds[i], errs[i] = env.dec.Credential(context.Background(), signer, cs)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(signer.release)
	wg.Wait()

	c.Assert(signer.calls.Load(), qt.Equals, int32(1))
	for i := 0; i < requests; i++ {
		c.Assert(errs[i], qt.IsNil)
		c.Assert(creds[i].Signature, qt.DeepEquals, creds[0].Signature)
	}
	c.Assert(creds[0].ContractAddresses, qt.DeepEquals, contracts)

	// a different contract set requires a new signature
	_, err := env.dec.Credential(context.Background(), signer, contracts[:1])
	c.Assert(err, qt.IsNil)
	c.Assert(signer.calls.Load(), qt.Equals, int32(2))
}

func TestSignatureDeniedIsNotCached(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	signer := newTestSigner(c)
	contracts := []common.Address{{1}}

	signer.deny.Store(true)
	_, err := env.dec.Credential(context.Background(), signer, contracts)
	c.Assert(err, qt.ErrorIs, ErrSignatureDenied)
	c.Assert(env.cache.Len(), qt.Equals, 0)

	signer.deny.Store(false)
	cred, err := env.dec.Credential(context.Background(), signer, contracts)
	c.Assert(err, qt.IsNil)
	c.Assert(cred.UserAddress, qt.Equals, signer.Address())
	c.Assert(signer.calls.Load(), qt.Equals, int32(2))

	_, err = env.dec.Credential(context.Background(), signer, nil)
	c.Assert(err, qt.ErrorIs, ErrNoContracts)
}

func TestCredentialExpiry(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	signer := newTestSigner(c)
	contracts := []common.Address{{1}}
	now := time.Now()
	clock := func() time.Time { return now }
	env.dec.SetClock(clock)
	env.cache.SetClock(clock)
	env.dec.SetDuration(1)

	first, err := env.dec.Credential(context.Background(), signer, contracts)
	c.Assert(err, qt.IsNil)
	c.Assert(first.DurationDays, qt.Equals, uint32(1))

	now = now.Add(23 * time.Hour)
	again, err := env.dec.Credential(context.Background(), signer, contracts)
	c.Assert(err, qt.IsNil)
	c.Assert(again.Signature, qt.DeepEquals, first.Signature)
	c.Assert(signer.calls.Load(), qt.Equals, int32(1))

	now = now.Add(2 * time.Hour)
	renewed, err := env.dec.Credential(context.Background(), signer, contracts)
	c.Assert(err, qt.IsNil)
	c.Assert(renewed.Signature, qt.Not(qt.DeepEquals), first.Signature)
	c.Assert(renewed.StartTimestamp, qt.Equals, now.Unix())
	c.Assert(signer.calls.Load(), qt.Equals, int32(2))
}

func TestSettingsDuringIssue(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	signer := newTestSigner(c)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			env.dec.SetDuration(uint32(i%3 + 1))
			env.dec.SetClock(time.Now)
		}()
		go func() {
			defer wg.Done()
			cred, err := env.dec.Credential(context.Background(), signer, []common.Address{{byte(i + 1)}})
			if err != nil {
				c.Error(err)
				return
			}
			if cred.DurationDays < 1 || cred.DurationDays > credential.DefaultDurationDays {
				c.Errorf("unexpected duration %d", cred.DurationDays)
			}
		}()
	}
	wg.Wait()
	c.Assert(signer.calls.Load(), qt.Equals, int32(8))
}

func TestCredentialCancellation(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	signer := newTestSigner(c)
	signer.release = make(chan struct{})
	defer close(signer.release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := env.dec.Credential(ctx, signer, []common.Address{{1}})
	c.Assert(err, qt.ErrorIs, context.DeadlineExceeded)
	c.Assert(env.cache.Len(), qt.Equals, 0)
}
