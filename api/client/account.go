package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vocdoni/encrypted-survey/api"
	"github.com/vocdoni/encrypted-survey/crypto/ethereum"
	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/ledger"
	"github.com/vocdoni/encrypted-survey/types"
)

// Account performs survey operations against a node on behalf of the
// holder of a signing key.
type Account struct {
	*HTTPclient
	signer *ethereum.SignKeys
}

// NewAccount returns an Account signing with signer.
func NewAccount(cli *HTTPclient, signer *ethereum.SignKeys) *Account {
	return &Account{HTTPclient: cli, signer: signer}
}

// Address returns the account address.
func (a *Account) Address() common.Address {
	return a.signer.Address()
}

// Signer returns the signing key of the account.
func (a *Account) Signer() *ethereum.SignKeys {
	return a.signer
}

// signed wraps payload in a SignedRequest. The envelope of payload is
// stamped with action, survey, the current time and a fresh nonce.
func (a *Account) signed(action string, survey common.Address, payload any, env *api.Envelope) (*api.SignedRequest, error) {
	env.Action = action
	env.Survey = survey
	env.Timestamp = time.Now().Unix()
	env.Nonce = uuid.NewString()
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	sig, err := a.signer.SignEthereum(data)
	if err != nil {
		return nil, err
	}
	return &api.SignedRequest{Payload: data, Signature: sig}, nil
}

// mutate posts payload, signed for action, to the endpoint of survey named
// by path.
func (a *Account) mutate(ctx context.Context, survey common.Address, action, path string, payload any, env *api.Envelope) (*ledger.Receipt, error) {
	req, err := a.signed(action, survey, payload, env)
	if err != nil {
		return nil, err
	}
	receipt := &ledger.Receipt{}
	if err := a.call(ctx, HTTPPOST, req, receipt, nil, api.SurveysEndpoint, survey.Hex(), path); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Deploy creates a new survey owned by the account.
func (a *Account) Deploy(ctx context.Context) (*api.DeployResponse, error) {
	payload := &api.DeployRequest{}
	req, err := a.signed(api.ActionDeploy, common.Address{}, payload, &payload.Envelope)
	if err != nil {
		return nil, err
	}
	resp := &api.DeployResponse{}
	if err := a.call(ctx, HTTPPOST, req, resp, nil, api.SurveysEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

// ConfigureSurvey sets the question and options of survey.
func (a *Account) ConfigureSurvey(ctx context.Context, survey common.Address, question string, options []string) (*ledger.Receipt, error) {
	payload := &api.ConfigureRequest{Question: question, Options: options}
	return a.mutate(ctx, survey, api.ActionConfigure, "configure", payload, &payload.Envelope)
}

// SubmitVote submits an encrypted vote produced by EncryptVote.
func (a *Account) SubmitVote(ctx context.Context, survey common.Address, option uint32, handle types.Handle, proof []byte) (*ledger.Receipt, error) {
	payload := &api.VoteRequest{Option: option, Handle: handle, Proof: proof}
	return a.mutate(ctx, survey, api.ActionVote, "votes", payload, &payload.Envelope)
}

// FinalizeSurvey closes survey.
func (a *Account) FinalizeSurvey(ctx context.Context, survey common.Address) (*ledger.Receipt, error) {
	payload := &api.FinalizeRequest{}
	return a.mutate(ctx, survey, api.ActionFinalize, "finalize", payload, &payload.Envelope)
}

// AllowResultFor grants grantee access to the total of option.
func (a *Account) AllowResultFor(ctx context.Context, survey, grantee common.Address, option uint32) (*ledger.Receipt, error) {
	payload := &api.GrantRequest{Grantee: grantee, Option: option}
	return a.mutate(ctx, survey, api.ActionGrant, "grants", payload, &payload.Envelope)
}

// EncryptVote encrypts weight locally with the gateway key, bound to survey
// and to the account.
func (a *Account) EncryptVote(ctx context.Context, survey common.Address, weight uint64) (types.Handle, []byte, error) {
	info, err := a.Info(ctx)
	if err != nil {
		return types.Handle{}, nil, err
	}
	pub, err := gateway.PublicKeyFromInfo(info)
	if err != nil {
		return types.Handle{}, nil, err
	}
	return gateway.EncryptInput(pub, weight, survey, a.Address())
}

// Surveys lists the surveys hosted by the node.
func (c *HTTPclient) Surveys(ctx context.Context) ([]common.Address, error) {
	list := &api.SurveyList{}
	if err := c.call(ctx, HTTPGET, nil, list, nil, api.SurveysEndpoint); err != nil {
		return nil, err
	}
	return list.Surveys, nil
}

// Survey returns the snapshot of survey.
func (c *HTTPclient) Survey(ctx context.Context, survey common.Address) (*types.SurveyInfo, error) {
	info := &types.SurveyInfo{}
	if err := c.call(ctx, HTTPGET, nil, info, nil, api.SurveysEndpoint, survey.Hex()); err != nil {
		return nil, err
	}
	return info, nil
}

// EncryptedTotal returns the handle of the encrypted total of option.
func (c *HTTPclient) EncryptedTotal(ctx context.Context, survey common.Address, option uint32) (types.Handle, error) {
	resp := &api.TotalResponse{}
	if err := c.call(ctx, HTTPGET, nil, resp, nil,
		api.SurveysEndpoint, survey.Hex(), "options", strconv.FormatUint(uint64(option), 10), "total"); err != nil {
		return types.Handle{}, err
	}
	return resp.Handle, nil
}

// HasVoted tells whether voter has voted on survey.
func (c *HTTPclient) HasVoted(ctx context.Context, survey, voter common.Address) (bool, error) {
	resp := &api.VoterResponse{}
	if err := c.call(ctx, HTTPGET, nil, resp, nil, api.SurveysEndpoint, survey.Hex(), "voters", voter.Hex()); err != nil {
		return false, err
	}
	return resp.HasVoted, nil
}

// Events returns the events of survey from sequence number from.
func (c *HTTPclient) Events(ctx context.Context, survey common.Address, from uint64) ([]*types.SurveyEvent, error) {
	resp := &api.EventsResponse{}
	params := []string{api.FromQueryParam, strconv.FormatUint(from, 10)}
	if err := c.call(ctx, HTTPGET, nil, resp, params, api.SurveysEndpoint, survey.Hex(), "events"); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// String implements fmt.Stringer.
func (a *Account) String() string {
	return fmt.Sprintf("account %s at %s", a.Address().Hex(), a.host)
}
