package service

import (
	"fmt"

	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/ledger"
	"github.com/vocdoni/encrypted-survey/log"
	"github.com/vocdoni/encrypted-survey/storage"
)

// LedgerService holds the survey ledgers of a node together with the
// encryption gateway they accumulate votes with.
type LedgerService struct {
	storage  *storage.Storage
	gateway  *gateway.Gateway
	registry *ledger.Registry
}

// NewLedger loads the gateway keys and the surveys persisted in stg, and
// wires the gateway access control to the survey grants.
func NewLedger(stg *storage.Storage, conf gateway.Config) (*LedgerService, error) {
	gw, err := gateway.New(stg, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	registry, err := ledger.NewRegistry(stg, gw)
	if err != nil {
		return nil, fmt.Errorf("failed to load surveys: %w", err)
	}
	gw.SetACL(registry)
	log.Infow("ledger service ready", "surveys", len(registry.List()), "curve", gw.PublicKey().Type())
	return &LedgerService{
		storage:  stg,
		gateway:  gw,
		registry: registry,
	}, nil
}

// Registry returns the survey registry.
func (ls *LedgerService) Registry() *ledger.Registry {
	return ls.registry
}

// Gateway returns the encryption gateway.
func (ls *LedgerService) Gateway() *gateway.Gateway {
	return ls.gateway
}

// Close closes the underlying storage.
func (ls *LedgerService) Close() {
	ls.storage.Close()
}
