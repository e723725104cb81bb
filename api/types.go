package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vocdoni/encrypted-survey/types"
)

// MaxRequestSkew is how far the timestamp of a signed request may be from
// the server clock.
const MaxRequestSkew = 10 * 60 // seconds

// SignedRequest is the body of every mutation. Payload is the JSON encoding
// of one of the request types below and Signature its EIP-191 signature by
// the caller.
type SignedRequest struct {
	Payload   types.HexBytes `json:"payload"`
	Signature types.HexBytes `json:"signature"`
}

// Actions name the operation a signed payload is meant for. Each endpoint
// only accepts payloads signed for its own action.
const (
	ActionDeploy    = "deploy"
	ActionConfigure = "configure"
	ActionVote      = "vote"
	ActionFinalize  = "finalize"
	ActionGrant     = "grant"
)

// Envelope is embedded in every signed payload. Survey must match the
// survey of the URL and Action the endpoint, so a signed payload cannot be
// replayed on another survey or operation. Timestamp is in seconds. Nonce
// tells apart otherwise identical payloads signed within the same second;
// the node executes each signed payload once.
type Envelope struct {
	Action    string         `json:"action"`
	Survey    common.Address `json:"survey"`
	Timestamp int64          `json:"timestamp"`
	Nonce     string         `json:"nonce,omitempty"`
}

func (e *Envelope) envelope() *Envelope {
	return e
}

// DeployRequest deploys a survey owned by the signer. Survey is ignored.
type DeployRequest struct {
	Envelope
}

// DeployResponse is the response to a deployment.
type DeployResponse struct {
	Address common.Address `json:"address"`
	TxID    uuid.UUID      `json:"txId"`
}

// ConfigureRequest sets the question and options of a survey.
type ConfigureRequest struct {
	Envelope
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// VoteRequest submits an encrypted vote.
type VoteRequest struct {
	Envelope
	Option uint32         `json:"option"`
	Handle types.Handle   `json:"handle"`
	Proof  types.HexBytes `json:"proof"`
}

// FinalizeRequest closes a survey.
type FinalizeRequest struct {
	Envelope
}

// GrantRequest grants Grantee access to the total of Option.
type GrantRequest struct {
	Envelope
	Grantee common.Address `json:"grantee"`
	Option  uint32         `json:"option"`
}

// SurveyList is the list of surveys hosted by the node.
type SurveyList struct {
	Surveys []common.Address `json:"surveys"`
}

// TotalResponse is the handle of the encrypted total of an option.
type TotalResponse struct {
	Survey common.Address `json:"survey"`
	Option uint32         `json:"option"`
	Handle types.Handle   `json:"handle"`
}

// VoterResponse tells whether Voter has voted.
type VoterResponse struct {
	Voter    common.Address `json:"voter"`
	HasVoted bool           `json:"hasVoted"`
}

// EventsResponse lists survey events.
type EventsResponse struct {
	Events []*types.SurveyEvent `json:"events"`
}

// EncryptRequest asks the gateway to encrypt Weight for Sender voting on
// the survey at Contract.
type EncryptRequest struct {
	Weight   uint64         `json:"weight"`
	Contract common.Address `json:"contract"`
	Sender   common.Address `json:"sender"`
}

// EncryptResponse carries the handle and the input proof to submit.
type EncryptResponse struct {
	Handle types.Handle   `json:"handle"`
	Proof  types.HexBytes `json:"proof"`
}
