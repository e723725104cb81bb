package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// SurveyState is the persisted state of a survey ledger.
type SurveyState struct {
	Address    common.Address   `json:"address" cbor:"0,keyasint"`
	Owner      common.Address   `json:"owner" cbor:"1,keyasint"`
	Nonce      uint64           `json:"nonce" cbor:"2,keyasint"`
	Question   string           `json:"question" cbor:"3,keyasint"`
	Options    []SurveyOption   `json:"options" cbor:"4,keyasint"`
	Configured bool             `json:"configured" cbor:"5,keyasint"`
	Finalized  bool             `json:"finalized" cbor:"6,keyasint"`
	Voters     []common.Address `json:"voters" cbor:"7,keyasint"`
	Grants     []AccessGrant    `json:"grants" cbor:"8,keyasint"`
	EventSeq   uint64           `json:"eventSeq" cbor:"9,keyasint"`
}

// SurveyOption is one of the enumerated answers of a survey, together with
// the handle of its encrypted running total.
type SurveyOption struct {
	Index          uint32 `json:"index" cbor:"0,keyasint"`
	Label          string `json:"label" cbor:"1,keyasint"`
	EncryptedTotal Handle `json:"encryptedTotal" cbor:"2,keyasint"`
}

// AccessGrant records that Grantee may decrypt the total of option Option.
type AccessGrant struct {
	Grantee common.Address `json:"grantee" cbor:"0,keyasint"`
	Option  uint32         `json:"option" cbor:"1,keyasint"`
}

// EventKind identifies the type of a survey event.
type EventKind string

const (
	EventSurveyConfigured    EventKind = "SurveyConfigured"
	EventVoteSubmitted       EventKind = "VoteSubmitted"
	EventSurveyFinalized     EventKind = "SurveyFinalized"
	EventResultAccessGranted EventKind = "ResultAccessGranted"
)

// SurveyEvent is an observable, ordered record of a successful mutation.
// Only the fields relevant to each kind are set. Vote weights are never
// part of an event.
type SurveyEvent struct {
	Seq         uint64         `json:"seq" cbor:"0,keyasint"`
	Kind        EventKind      `json:"kind" cbor:"1,keyasint"`
	Survey      common.Address `json:"survey" cbor:"2,keyasint"`
	Question    string         `json:"question,omitempty" cbor:"3,keyasint,omitempty"`
	Options     []string       `json:"options,omitempty" cbor:"4,keyasint,omitempty"`
	Voter       common.Address `json:"voter,omitempty" cbor:"5,keyasint,omitempty"`
	Owner       common.Address `json:"owner,omitempty" cbor:"6,keyasint,omitempty"`
	Grantee     common.Address `json:"grantee,omitempty" cbor:"7,keyasint,omitempty"`
	OptionIndex *uint32        `json:"optionIndex,omitempty" cbor:"8,keyasint,omitempty"`
	Timestamp   int64          `json:"timestamp" cbor:"9,keyasint"`
}

// SurveyInfo is the public snapshot of a survey as served to clients.
type SurveyInfo struct {
	Address    common.Address `json:"address"`
	Owner      common.Address `json:"owner"`
	Question   string         `json:"question"`
	Options    []SurveyOption `json:"options"`
	Configured bool           `json:"configured"`
	Finalized  bool           `json:"finalized"`
	Voters     int            `json:"voters"`
	ProtocolID uint64         `json:"protocolId"`
}

// OptionLabels returns the labels of the survey options in index order.
func (s *SurveyInfo) OptionLabels() []string {
	labels := make([]string, len(s.Options))
	for i, o := range s.Options {
		labels[i] = o.Label
	}
	return labels
}
