// Package ledger implements the survey ledger: a state machine per survey
// that only moves forward (unconfigured, configured, finalized), accumulates
// encrypted per option totals and keeps the table of who may decrypt them.
//
// Every mutation is serialized by the survey lock, prepared on a copy of the
// state and committed to storage together with the event it emits before
// becoming visible, so readers never observe a partially applied operation.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vocdoni/encrypted-survey/log"
	"github.com/vocdoni/encrypted-survey/storage"
	"github.com/vocdoni/encrypted-survey/types"
)

const (
	// ProtocolID identifies the survey protocol version implemented here.
	ProtocolID uint64 = 1
	// MaxOptions bounds the number of options a survey can be configured with.
	MaxOptions = 64
)

// Gateway is the part of the encryption gateway the ledger relies on.
type Gateway interface {
	VerifyProof(handle types.Handle, proof []byte, contract, sender common.Address) bool
	HomomorphicAdd(a, b types.Handle) (types.Handle, error)
}

// Receipt is returned by every successful mutation.
type Receipt struct {
	TxID   uuid.UUID          `json:"txId"`
	Survey common.Address     `json:"survey"`
	Event  *types.SurveyEvent `json:"event"`
}

// Survey is a single survey ledger. It is safe for concurrent use.
type Survey struct {
	// fixed at deployment, readable without the lock
	address common.Address
	owner   common.Address

	mu     sync.Mutex
	stg    *storage.Storage
	gw     Gateway
	state  *types.SurveyState
	voters map[common.Address]struct{}
	now    func() time.Time
}

func newSurvey(stg *storage.Storage, gw Gateway, state *types.SurveyState) *Survey {
	s := &Survey{
		address: state.Address,
		owner:   state.Owner,
		stg:     stg,
		gw:      gw,
		state:   state,
		voters:  make(map[common.Address]struct{}, len(state.Voters)),
		now:     time.Now,
	}
	for _, v := range state.Voters {
		s.voters[v] = struct{}{}
	}
	return s
}

// Address returns the survey address.
func (s *Survey) Address() common.Address {
	return s.address
}

// ConfigureSurvey sets the question and the options of the survey. Only the
// owner can call it, and only once.
func (s *Survey) ConfigureSurvey(caller common.Address, question string, labels []string) (*Receipt, error) {
	return s.mutate(func(next *types.SurveyState) (*types.SurveyEvent, error) {
		if caller != next.Owner {
			return nil, ErrNotOwner
		}
		if next.Configured {
			return nil, ErrAlreadyConfigured
		}
		if len(labels) < 2 {
			return nil, fmt.Errorf("%w: got %d", ErrTooFewOptions, len(labels))
		}
		if len(labels) > MaxOptions {
			return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyOptions, len(labels), MaxOptions)
		}
		next.Question = question
		next.Options = make([]types.SurveyOption, len(labels))
		for i, label := range labels {
			next.Options[i] = types.SurveyOption{
				Index:          uint32(i),
				Label:          label,
				EncryptedTotal: types.ZeroHandle,
			}
		}
		next.Configured = true
		return &types.SurveyEvent{
			Kind:     types.EventSurveyConfigured,
			Question: question,
			Options:  append([]string(nil), labels...),
		}, nil
	})
}

// SubmitVote adds the encrypted weight behind handle to the total of option
// index. The proof must bind the ciphertext to this survey and to caller.
// Each address votes at most once, while the survey is configured and not
// finalized.
func (s *Survey) SubmitVote(caller common.Address, index uint32, handle types.Handle, proof []byte) (*Receipt, error) {
	return s.mutate(func(next *types.SurveyState) (*types.SurveyEvent, error) {
		if !next.Configured {
			return nil, ErrSurveyNotConfigured
		}
		if int(index) >= len(next.Options) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidOption, index)
		}
		if next.Finalized {
			return nil, ErrSurveyClosed
		}
		if _, voted := s.voters[caller]; voted {
			return nil, ErrAlreadyVoted
		}
		if !s.gw.VerifyProof(handle, proof, next.Address, caller) {
			return nil, ErrInvalidProof
		}
		total, err := s.gw.HomomorphicAdd(next.Options[index].EncryptedTotal, handle)
		if err != nil {
			return nil, fmt.Errorf("cannot aggregate vote: %w", err)
		}
		next.Options[index].EncryptedTotal = total
		next.Voters = append(next.Voters, caller)
		return &types.SurveyEvent{
			Kind:        types.EventVoteSubmitted,
			Voter:       caller,
			OptionIndex: &index,
		}, nil
	})
}

// FinalizeSurvey closes the survey for good. Only the owner can call it,
// once the survey is configured.
func (s *Survey) FinalizeSurvey(caller common.Address) (*Receipt, error) {
	return s.mutate(func(next *types.SurveyState) (*types.SurveyEvent, error) {
		if caller != next.Owner {
			return nil, ErrNotOwner
		}
		if !next.Configured {
			return nil, ErrSurveyNotConfigured
		}
		if next.Finalized {
			return nil, ErrAlreadyFinalized
		}
		next.Finalized = true
		return &types.SurveyEvent{
			Kind:  types.EventSurveyFinalized,
			Owner: next.Owner,
		}, nil
	})
}

// AllowResultFor grants grantee permission to decrypt the total of option
// index. Grants are never revoked. Before configuration the index is only
// checked against MaxOptions and the grant takes effect once the option
// exists. Granting twice is accepted and emits the event again.
func (s *Survey) AllowResultFor(caller, grantee common.Address, index uint32) (*Receipt, error) {
	return s.mutate(func(next *types.SurveyState) (*types.SurveyEvent, error) {
		if caller != next.Owner {
			return nil, ErrNotOwner
		}
		limit := MaxOptions
		if next.Configured {
			limit = len(next.Options)
		}
		if int(index) >= limit {
			return nil, fmt.Errorf("%w: %d", ErrInvalidOption, index)
		}
		if !hasGrant(next, grantee, index) {
			next.Grants = append(next.Grants, types.AccessGrant{Grantee: grantee, Option: index})
		}
		return &types.SurveyEvent{
			Kind:        types.EventResultAccessGranted,
			Grantee:     grantee,
			OptionIndex: &index,
		}, nil
	})
}

// mutate runs apply on a copy of the state under the survey lock. If apply
// succeeds, the new state and its event are committed to storage and only
// then replace the current state.
func (s *Survey) mutate(apply func(next *types.SurveyState) (*types.SurveyEvent, error)) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneState(s.state)
	event, err := apply(next)
	if err != nil {
		return nil, err
	}
	event.Seq = next.EventSeq
	event.Survey = next.Address
	event.Timestamp = s.now().Unix()
	next.EventSeq++
	if err := s.stg.CommitSurvey(next, event); err != nil {
		return nil, fmt.Errorf("cannot commit survey state: %w", err)
	}
	if event.Kind == types.EventVoteSubmitted {
		s.voters[event.Voter] = struct{}{}
	}
	s.state = next

	log.Debugw("survey event", "survey", next.Address.Hex(), "kind", string(event.Kind), "seq", event.Seq)
	return &Receipt{TxID: uuid.New(), Survey: next.Address, Event: event}, nil
}

// SurveyQuestion returns the configured question.
func (s *Survey) SurveyQuestion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Question
}

// IsConfigured reports whether the survey has been configured.
func (s *Survey) IsConfigured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Configured
}

// IsFinalized reports whether the survey has been finalized.
func (s *Survey) IsFinalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Finalized
}

// OptionCount returns the number of options, zero before configuration.
func (s *Survey) OptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Options)
}

// OptionLabels returns the option labels in index order.
func (s *Survey) OptionLabels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	labels := make([]string, len(s.state.Options))
	for i, o := range s.state.Options {
		labels[i] = o.Label
	}
	return labels
}

// EncryptedTotal returns the handle of the encrypted total of option index.
func (s *Survey) EncryptedTotal(index uint32) (types.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(index) >= len(s.state.Options) {
		return types.Handle{}, fmt.Errorf("%w: %d", ErrInvalidOption, index)
	}
	return s.state.Options[index].EncryptedTotal, nil
}

// HasVoted reports whether voter has submitted a vote.
func (s *Survey) HasVoted(voter common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.voters[voter]
	return ok
}

// HasVoterSubmitted is an alias of HasVoted.
func (s *Survey) HasVoterSubmitted(voter common.Address) bool {
	return s.HasVoted(voter)
}

// Owner returns the survey owner.
func (s *Survey) Owner() common.Address {
	return s.owner
}

// ProtocolID returns the protocol version of the survey.
func (*Survey) ProtocolID() uint64 {
	return ProtocolID
}

// Events returns the events emitted by the survey starting at sequence
// number from.
func (s *Survey) Events(from uint64) ([]*types.SurveyEvent, error) {
	return s.stg.SurveyEvents(s.address, from)
}

// Snapshot returns the public view of the survey.
func (s *Survey) Snapshot() *types.SurveyInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &types.SurveyInfo{
		Address:    s.state.Address,
		Owner:      s.state.Owner,
		Question:   s.state.Question,
		Options:    append([]types.SurveyOption(nil), s.state.Options...),
		Configured: s.state.Configured,
		Finalized:  s.state.Finalized,
		Voters:     len(s.state.Voters),
		ProtocolID: ProtocolID,
	}
}

// CanDecrypt reports whether user may decrypt handle. Only current option
// totals are decryptable: by the owner once the survey is finalized, or by
// anyone holding a grant for that option.
func (s *Survey) CanDecrypt(handle types.Handle, user common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.state.Options {
		if o.EncryptedTotal != handle {
			continue
		}
		if s.state.Finalized && user == s.state.Owner {
			return true
		}
		if hasGrant(s.state, user, o.Index) {
			return true
		}
	}
	return false
}

func hasGrant(state *types.SurveyState, grantee common.Address, index uint32) bool {
	for _, g := range state.Grants {
		if g.Grantee == grantee && g.Option == index {
			return true
		}
	}
	return false
}

func cloneState(st *types.SurveyState) *types.SurveyState {
	c := *st
	c.Options = append([]types.SurveyOption(nil), st.Options...)
	c.Voters = append([]common.Address(nil), st.Voters...)
	c.Grants = append([]types.AccessGrant(nil), st.Grants...)
	return &c
}
