package client

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/encrypted-survey/api"
	"github.com/vocdoni/encrypted-survey/credential"
	"github.com/vocdoni/encrypted-survey/crypto/ethereum"
	"github.com/vocdoni/encrypted-survey/decryptor"
	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/ledger"
	"github.com/vocdoni/encrypted-survey/storage"
	"github.com/vocdoni/encrypted-survey/types"
)

func testNode(c *qt.C) *HTTPclient {
	stg := storage.New(memdb.New())
	gw, err := gateway.New(stg, gateway.Config{MaxTotal: 1 << 10})
	c.Assert(err, qt.IsNil)
	registry, err := ledger.NewRegistry(stg, gw)
	c.Assert(err, qt.IsNil)
	gw.SetACL(registry)
	srv, err := api.New(&api.APIConfig{Host: "127.0.0.1", Registry: registry, Gateway: gw})
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	cli, err := New("http://" + srv.Addr())
	c.Assert(err, qt.IsNil)
	return cli
}

func testAccount(c *qt.C, cli *HTTPclient) *Account {
	k := ethereum.NewSignKeys()
	c.Assert(k.Generate(), qt.IsNil)
	return NewAccount(cli, k)
}

func TestAccountSurvey(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	cli := testNode(c)
	owner := testAccount(c, cli)

	deployed, err := owner.Deploy(ctx)
	c.Assert(err, qt.IsNil)
	addr := deployed.Address
	_, err = owner.ConfigureSurvey(ctx, addr, "Lunch?", []string{"pizza", "salad", "soup"})
	c.Assert(err, qt.IsNil)

	weights := map[uint32][]uint64{0: {2, 3}, 2: {4}}
	for option, ws := range weights {
		for _, w := range ws {
			voter := testAccount(c, cli)
			handle, proof, err := voter.EncryptVote(ctx, addr, w)
			c.Assert(err, qt.IsNil)
			_, err = voter.SubmitVote(ctx, addr, option, handle, proof)
			c.Assert(err, qt.IsNil)
			voted, err := cli.HasVoted(ctx, addr, voter.Address())
			c.Assert(err, qt.IsNil)
			c.Assert(voted, qt.IsTrue)
		}
	}

	// a proof bound to another sender is rejected
	eve, mallory := testAccount(c, cli), testAccount(c, cli)
	handle, proof, err := eve.EncryptVote(ctx, addr, 1)
	c.Assert(err, qt.IsNil)
	_, err = mallory.SubmitVote(ctx, addr, 1, handle, proof)
	c.Assert(err, qt.ErrorIs, ledger.ErrInvalidProof)

	_, err = owner.FinalizeSurvey(ctx, addr)
	c.Assert(err, qt.IsNil)
	_, err = eve.SubmitVote(ctx, addr, 1, handle, proof)
	c.Assert(err, qt.ErrorIs, ledger.ErrSurveyClosed)

	info, err := cli.Survey(ctx, addr)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Finalized, qt.IsTrue)
	c.Assert(info.Voters, qt.Equals, 3)

	// the owner decrypts all totals through the remote gateway
	cache, err := credential.NewMemoryCache(16)
	c.Assert(err, qt.IsNil)
	dec := decryptor.New(cli, cache)
	handles := make([]types.Handle, len(info.Options))
	for i, o := range info.Options {
		handles[i] = o.EncryptedTotal
	}
	totals, err := dec.DecryptAll(ctx, owner.Signer(), addr, handles)
	c.Assert(err, qt.IsNil)
	c.Assert(totals[0].Uint64(), qt.Equals, uint64(5))
	c.Assert(totals[1].Uint64(), qt.Equals, uint64(0))
	c.Assert(totals[2].Uint64(), qt.Equals, uint64(4))

	// nobody else can
	_, err = dec.Decrypt(ctx, eve.Signer(), addr, handles[0])
	c.Assert(err, qt.ErrorIs, gateway.ErrUnauthorized)

	events, err := cli.Events(ctx, addr, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 5)
	c.Assert(events[4].Kind, qt.Equals, types.EventSurveyFinalized)
}

func TestAccountGrant(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	cli := testNode(c)
	owner, bob := testAccount(c, cli), testAccount(c, cli)

	deployed, err := owner.Deploy(ctx)
	c.Assert(err, qt.IsNil)
	addr := deployed.Address
	_, err = owner.ConfigureSurvey(ctx, addr, "q", []string{"yes", "no"})
	c.Assert(err, qt.IsNil)
	handle, proof, err := owner.EncryptVote(ctx, addr, 7)
	c.Assert(err, qt.IsNil)
	_, err = owner.SubmitVote(ctx, addr, 0, handle, proof)
	c.Assert(err, qt.IsNil)

	_, err = bob.AllowResultFor(ctx, addr, bob.Address(), 0)
	c.Assert(err, qt.ErrorIs, ledger.ErrNotOwner)
	receipt, err := owner.AllowResultFor(ctx, addr, bob.Address(), 0)
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.Event.Kind, qt.Equals, types.EventResultAccessGranted)

	cache, err := credential.NewMemoryCache(16)
	c.Assert(err, qt.IsNil)
	dec := decryptor.New(cli, cache)
	total, err := cli.EncryptedTotal(ctx, addr, 0)
	c.Assert(err, qt.IsNil)
	value, err := dec.Decrypt(ctx, bob.Signer(), addr, total)
	c.Assert(err, qt.IsNil)
	c.Assert(value.Uint64(), qt.Equals, uint64(7))
}

func TestClientErrors(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	cli := testNode(c)

	_, err := cli.Survey(ctx, common.HexToAddress("0xbeef"))
	c.Assert(err, qt.ErrorIs, ledger.ErrSurveyNotFound)

	surveys, err := cli.Surveys(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(surveys, qt.HasLen, 0)

	_, _, err = cli.EncryptRemote(ctx, 0, common.Address{}, common.Address{})
	c.Assert(err, qt.ErrorIs, gateway.ErrInvalidWeight)

	// no server listening, attempts are exhausted
	_, err = New("http://127.0.0.1:1")
	c.Assert(err, qt.IsNotNil)
}
