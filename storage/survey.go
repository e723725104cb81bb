package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/encrypted-survey/log"
	"github.com/vocdoni/encrypted-survey/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Survey retrieves the survey state stored for address.
// It returns nil data and ErrNotFound if the survey is not found.
func (s *Storage) Survey(address common.Address) (*types.SurveyState, error) {
	st := &types.SurveyState{}
	if err := s.getArtifact(surveyPrefix, address.Bytes(), st); err != nil {
		return nil, err
	}
	return st, nil
}

// CommitSurvey stores the survey state and, if not nil, the event produced
// by the mutation that led to it. Both writes are part of the same
// transaction.
func (s *Storage) CommitSurvey(state *types.SurveyState, event *types.SurveyEvent) error {
	if state == nil {
		return fmt.Errorf("nil survey state")
	}
	stateData, err := encodeArtifact(state)
	if err != nil {
		return fmt.Errorf("encode survey: %w", err)
	}
	var eventData []byte
	if event != nil {
		if eventData, err = encodeArtifact(event); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}

	tx := s.db.WriteTx()
	if err := prefixeddb.NewPrefixedWriteTx(tx, surveyPrefix).Set(state.Address.Bytes(), stateData); err != nil {
		tx.Discard()
		return err
	}
	if event != nil {
		if err := prefixeddb.NewPrefixedWriteTx(tx, eventPrefix).Set(eventKey(state.Address, event.Seq), eventData); err != nil {
			tx.Discard()
			return err
		}
	}
	return tx.Commit()
}

// ListSurveys returns the addresses of all the stored surveys.
func (s *Storage) ListSurveys() ([]common.Address, error) {
	keys, err := s.listArtifacts(surveyPrefix)
	if err != nil {
		return nil, err
	}
	addrs := make([]common.Address, 0, len(keys))
	for _, k := range keys {
		addrs = append(addrs, common.BytesToAddress(k))
	}
	return addrs, nil
}

// SurveyEvents returns the events of a survey with sequence number equal or
// greater than from, in emission order.
func (s *Storage) SurveyEvents(address common.Address, from uint64) ([]*types.SurveyEvent, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, eventPrefix)
	var events []*types.SurveyEvent
	if err := rd.Iterate(address.Bytes(), func(k, v []byte) bool {
		if len(k) != 8 || binary.BigEndian.Uint64(k) < from {
			return true
		}
		ev := &types.SurveyEvent{}
		if err := decodeArtifact(v, ev); err != nil {
			log.Warnw("failed to decode survey event", "survey", address.Hex(), "error", err.Error())
			return true
		}
		events = append(events, ev)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func eventKey(address common.Address, seq uint64) []byte {
	key := make([]byte, common.AddressLength+8)
	copy(key, address.Bytes())
	binary.BigEndian.PutUint64(key[common.AddressLength:], seq)
	return key
}
