package surveysync

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/encrypted-survey/api"
	"github.com/vocdoni/encrypted-survey/api/client"
	"github.com/vocdoni/encrypted-survey/credential"
	"github.com/vocdoni/encrypted-survey/crypto/ethereum"
	"github.com/vocdoni/encrypted-survey/decryptor"
	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/ledger"
	"github.com/vocdoni/encrypted-survey/storage"
)

type testNode struct {
	cli *client.HTTPclient
}

func newTestNode(c *qt.C) *testNode {
	stg := storage.New(memdb.New())
	gw, err := gateway.New(stg, gateway.Config{MaxTotal: 1 << 10})
	c.Assert(err, qt.IsNil)
	registry, err := ledger.NewRegistry(stg, gw)
	c.Assert(err, qt.IsNil)
	gw.SetACL(registry)
	srv, err := api.New(&api.APIConfig{Host: "127.0.0.1", Registry: registry, Gateway: gw})
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	cli, err := client.New("http://" + srv.Addr())
	c.Assert(err, qt.IsNil)
	return &testNode{cli: cli}
}

func (n *testNode) account(c *qt.C) *client.Account {
	k := ethereum.NewSignKeys()
	c.Assert(k.Generate(), qt.IsNil)
	return client.NewAccount(n.cli, k)
}

// syncClient returns a Client for survey acting as acc, read only if acc
// is nil.
func (n *testNode) syncClient(c *qt.C, survey common.Address, acc *client.Account, dec *decryptor.Decryptor) *Client {
	conf := Config{Node: n.cli, Decryptor: dec, Survey: survey, Interval: 20 * time.Millisecond}
	if acc != nil {
		conf.Account = acc
		conf.Signer = acc.Signer()
	}
	sc, err := New(conf)
	c.Assert(err, qt.IsNil)
	return sc
}

func newDecryptor(c *qt.C, n *testNode) *decryptor.Decryptor {
	cache, err := credential.NewMemoryCache(8)
	c.Assert(err, qt.IsNil)
	return decryptor.New(n.cli, cache)
}

func TestClientLifecycle(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	node := newTestNode(c)
	owner, voter := node.account(c), node.account(c)

	deployed, err := owner.Deploy(ctx)
	c.Assert(err, qt.IsNil)

	oc, err := New(Config{
		Node: node.cli, Account: owner, Signer: owner.Signer(),
		Decryptor: newDecryptor(c, node), Survey: deployed.Address,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(oc.Refresh(ctx), qt.IsNil)
	st := oc.State()
	c.Assert(st.IsOwner, qt.IsTrue)
	c.Assert(st.Configured, qt.IsFalse)

	c.Assert(oc.ConfigureSurvey(ctx, "Color?", []string{"red"}), qt.ErrorIs, ErrTooFewOptions)
	c.Assert(oc.ConfigureSurvey(ctx, "Color?", []string{"red", "blue"}), qt.IsNil)
	c.Assert(oc.Status(), qt.Equals, "Survey configured successfully.")
	st = oc.State()
	c.Assert(st.Configured, qt.IsTrue)
	c.Assert(st.Options, qt.HasLen, 2)

	vc, err := New(Config{Node: node.cli, Account: voter, Signer: voter.Signer(), Survey: deployed.Address})
	c.Assert(err, qt.IsNil)
	c.Assert(vc.SubmitVote(ctx, 1, 0), qt.ErrorIs, ErrInvalidWeight)
	c.Assert(vc.SubmitVote(ctx, 1, 6), qt.IsNil)
	c.Assert(vc.Status(), qt.Equals, "Vote submitted successfully.")
	c.Assert(vc.State().HasVoted, qt.IsTrue)
	c.Assert(vc.State().IsOwner, qt.IsFalse)

	// the failure is reported in the status
	err = vc.SubmitVote(ctx, 0, 1)
	c.Assert(err, qt.ErrorIs, ledger.ErrAlreadyVoted)
	c.Assert(vc.Status(), qt.Equals, err.Error())
	c.Assert(vc.State().Submitting, qt.IsFalse)

	c.Assert(vc.FinalizeSurvey(ctx), qt.ErrorIs, ledger.ErrNotOwner)
	c.Assert(oc.FinalizeSurvey(ctx), qt.IsNil)
	c.Assert(oc.State().Finalized, qt.IsTrue)

	value, err := oc.DecryptOption(ctx, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(value.Uint64(), qt.Equals, uint64(6))
	c.Assert(oc.State().Options[1].DecryptedTotal.Uint64(), qt.Equals, uint64(6))

	// empty and unknown options are zero without a credential
	value, err = vc.DecryptOption(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(value.Sign(), qt.Equals, 0)
	value, err = vc.DecryptOption(ctx, 9)
	c.Assert(err, qt.IsNil)
	c.Assert(value.Sign(), qt.Equals, 0)

	// the voter has no decryptor
	_, err = vc.DecryptOption(ctx, 1)
	c.Assert(err, qt.ErrorIs, ErrSignerUnavailable)
	c.Assert(vc.State().Options[1].Err, qt.Not(qt.Equals), "")
}

func TestAllowResultFor(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	node := newTestNode(c)
	owner, bob := node.account(c), node.account(c)
	deployed, err := owner.Deploy(ctx)
	c.Assert(err, qt.IsNil)

	oc := node.syncClient(c, deployed.Address, owner, nil)
	c.Assert(oc.ConfigureSurvey(ctx, "q", []string{"a", "b"}), qt.IsNil)
	c.Assert(oc.SubmitVote(ctx, 0, 4), qt.IsNil)

	c.Assert(oc.AllowResultFor(ctx, "0xnot-an-address", 0), qt.ErrorIs, ErrInvalidAddress)
	c.Assert(oc.AllowResultFor(ctx, bob.Address().Hex(), 0), qt.IsNil)
	c.Assert(oc.Status(), qt.Equals, "Decryption access granted.")

	bc := node.syncClient(c, deployed.Address, bob, newDecryptor(c, node))
	c.Assert(bc.Refresh(ctx), qt.IsNil)
	value, err := bc.DecryptOption(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(value.Uint64(), qt.Equals, uint64(4))

	_, err = bc.DecryptOption(ctx, 1)
	c.Assert(err, qt.IsNil)
}

func TestReadOnly(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	node := newTestNode(c)
	owner := node.account(c)
	deployed, err := owner.Deploy(ctx)
	c.Assert(err, qt.IsNil)

	rc := node.syncClient(c, deployed.Address, nil, nil)
	c.Assert(rc.ConfigureSurvey(ctx, "q", []string{"a", "b"}), qt.ErrorIs, ErrSignerUnavailable)
	c.Assert(rc.Refresh(ctx), qt.IsNil)
	c.Assert(rc.State().HasVoted, qt.IsFalse)
	c.Assert(rc.State().Owner, qt.Equals, owner.Address())

	_, err = New(Config{})
	c.Assert(err, qt.IsNotNil)
}

func TestFollowEvents(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	node := newTestNode(c)
	owner, voter := node.account(c), node.account(c)
	deployed, err := owner.Deploy(ctx)
	c.Assert(err, qt.IsNil)
	_, err = owner.ConfigureSurvey(ctx, deployed.Address, "q", []string{"a", "b"})
	c.Assert(err, qt.IsNil)

	follower := node.syncClient(c, deployed.Address, nil, nil)
	c.Assert(follower.Start(ctx), qt.IsNil)
	defer follower.Stop()
	c.Assert(follower.Start(ctx), qt.ErrorIs, ErrAlreadyRunning)
	c.Assert(follower.State().Options[0].EncryptedTotal.IsZero(), qt.IsTrue)

	handle, proof, err := voter.EncryptVote(ctx, deployed.Address, 2)
	c.Assert(err, qt.IsNil)
	_, err = voter.SubmitVote(ctx, deployed.Address, 0, handle, proof)
	c.Assert(err, qt.IsNil)

	c.Assert(waitFor(func() bool {
		return !follower.State().Options[0].EncryptedTotal.IsZero()
	}), qt.IsTrue)
	follower.Stop()
	follower.Stop()
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
