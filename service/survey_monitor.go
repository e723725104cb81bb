package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/encrypted-survey/ledger"
	"github.com/vocdoni/encrypted-survey/log"
	"github.com/vocdoni/encrypted-survey/types"
)

// SurveyMonitor represents a service that follows the events of all the
// surveys of a registry and forwards them to a channel.
type SurveyMonitor struct {
	registry *ledger.Registry
	interval time.Duration
	events   chan *types.SurveyEvent
	next     map[common.Address]uint64
	mu       sync.Mutex
	cancel   context.CancelFunc
}

// NewSurveyMonitor creates a new SurveyMonitor service. Events already
// stored when the monitor starts are forwarded too.
func NewSurveyMonitor(registry *ledger.Registry, interval time.Duration) *SurveyMonitor {
	return &SurveyMonitor{
		registry: registry,
		interval: interval,
		events:   make(chan *types.SurveyEvent, 256),
		next:     make(map[common.Address]uint64),
	}
}

// Events returns the channel new events are sent to. If nobody reads it,
// the monitor blocks until Stop is called.
func (sm *SurveyMonitor) Events() <-chan *types.SurveyEvent {
	return sm.events
}

// Start begins monitoring the surveys. It returns an error if the service
// is already running.
func (sm *SurveyMonitor) Start(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.cancel != nil {
		return fmt.Errorf("service already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	sm.cancel = cancel
	go sm.monitorSurveys(ctx)
	return nil
}

// Stop halts the monitoring service.
func (sm *SurveyMonitor) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.cancel != nil {
		sm.cancel()
		sm.cancel = nil
	}
}

func (sm *SurveyMonitor) monitorSurveys(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()
	for {
		if !sm.scan(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// scan forwards the events stored since the last scan. It returns false
// once ctx is done.
func (sm *SurveyMonitor) scan(ctx context.Context) bool {
	for _, addr := range sm.registry.List() {
		s, err := sm.registry.Survey(addr)
		if err != nil {
			continue
		}
		next, seen := sm.next[addr]
		if !seen {
			log.Debugw("new survey found", "survey", addr.Hex(), "owner", s.Owner().Hex())
			sm.next[addr] = 0
		}
		events, err := s.Events(next)
		if err != nil {
			log.Warnw("failed to read survey events", "survey", addr.Hex(), "error", err.Error())
			continue
		}
		for _, ev := range events {
			select {
			case sm.events <- ev:
			case <-ctx.Done():
				return false
			}
			sm.next[addr] = ev.Seq + 1
		}
	}
	return true
}
