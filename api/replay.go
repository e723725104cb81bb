package api

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// replayWindow is how long an accepted payload is remembered. A payload
	// stops passing the timestamp check before it is forgotten.
	replayWindow = 2 * MaxRequestSkew * time.Second
	// maxSeenRequests bounds the memory used by the replay guard.
	maxSeenRequests = 1 << 18
)

// replayGuard remembers the signed payloads accepted recently, so each one
// is executed at most once.
type replayGuard struct {
	mu   sync.Mutex
	seen *expirable.LRU[common.Hash, struct{}]
}

func newReplayGuard(size int, ttl time.Duration) *replayGuard {
	return &replayGuard{seen: expirable.NewLRU[common.Hash, struct{}](size, nil, ttl)}
}

// firstSeen records payload and reports whether it was not recorded before.
func (g *replayGuard) firstSeen(payload []byte) bool {
	key := ethcrypto.Keccak256Hash(payload)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen.Peek(key); ok {
		return false
	}
	g.seen.Add(key, struct{}{})
	return true
}
