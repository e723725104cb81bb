package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/vocdoni/encrypted-survey/log"
	"github.com/vocdoni/encrypted-survey/storage"
	"github.com/vocdoni/encrypted-survey/types"
)

// Registry holds every survey hosted by the node. It also acts as the access
// control list of the encryption gateway.
type Registry struct {
	mu      sync.RWMutex
	stg     *storage.Storage
	gw      Gateway
	surveys map[common.Address]*Survey
	nonces  map[common.Address]uint64
}

// NewRegistry returns a registry backed by stg, loading the surveys already
// stored in it.
func NewRegistry(stg *storage.Storage, gw Gateway) (*Registry, error) {
	r := &Registry{
		stg:     stg,
		gw:      gw,
		surveys: make(map[common.Address]*Survey),
		nonces:  make(map[common.Address]uint64),
	}
	addrs, err := stg.ListSurveys()
	if err != nil {
		return nil, fmt.Errorf("cannot list surveys: %w", err)
	}
	for _, addr := range addrs {
		state, err := stg.Survey(addr)
		if err != nil {
			return nil, fmt.Errorf("cannot load survey %s: %w", addr.Hex(), err)
		}
		r.surveys[addr] = newSurvey(stg, gw, state)
		if state.Nonce+1 > r.nonces[state.Owner] {
			r.nonces[state.Owner] = state.Nonce + 1
		}
	}
	if len(addrs) > 0 {
		log.Infow("loaded surveys", "count", len(addrs))
	}
	return r, nil
}

// Deploy creates a new, unconfigured survey owned by owner. The survey
// address is derived from the owner and its deployment count.
func (r *Registry) Deploy(owner common.Address) (*Survey, *Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nonce := r.nonces[owner]
	state := &types.SurveyState{
		Address: ethcrypto.CreateAddress(owner, nonce),
		Owner:   owner,
		Nonce:   nonce,
	}
	if _, ok := r.surveys[state.Address]; ok {
		return nil, nil, fmt.Errorf("survey %s already exists", state.Address.Hex())
	}
	if err := r.stg.CommitSurvey(state, nil); err != nil {
		return nil, nil, fmt.Errorf("cannot store survey: %w", err)
	}
	s := newSurvey(r.stg, r.gw, state)
	r.surveys[state.Address] = s
	r.nonces[owner] = nonce + 1

	log.Infow("survey deployed", "address", state.Address.Hex(), "owner", owner.Hex())
	return s, &Receipt{TxID: uuid.New(), Survey: state.Address}, nil
}

// Survey returns the survey deployed at address.
func (r *Registry) Survey(address common.Address) (*Survey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surveys[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSurveyNotFound, address.Hex())
	}
	return s, nil
}

// List returns the addresses of all the surveys, sorted.
func (r *Registry) List() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addrs := make([]common.Address, 0, len(r.surveys))
	for addr := range r.surveys {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].Cmp(addrs[j]) < 0
	})
	return addrs
}

// CanDecrypt reports whether user may decrypt handle read from the survey
// at contract.
func (r *Registry) CanDecrypt(contract common.Address, handle types.Handle, user common.Address) bool {
	s, err := r.Survey(contract)
	if err != nil {
		return false
	}
	return s.CanDecrypt(handle, user)
}
