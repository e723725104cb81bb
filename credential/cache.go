package credential

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Cache stores credentials by CacheKey. Implementations expire entries
// lazily: Get never returns a credential whose window has ended.
type Cache interface {
	// Get returns the live credential stored under key, if any.
	Get(key []byte) (*Credential, bool)
	// Put stores cred under key. If a credential issued later is already
	// stored and still valid, it is kept instead.
	Put(key []byte, cred *Credential) error
}

// CacheKey derives the cache key of a credential issued by user for the
// given contracts against the decryption service identified by context.
// The contract order does not matter.
func CacheKey(user common.Address, contracts []common.Address, context []byte) []byte {
	sorted := SortedContracts(contracts)
	data := make([]byte, 0, common.AddressLength*(len(sorted)+1)+len(context))
	data = append(data, user.Bytes()...)
	for _, c := range sorted {
		data = append(data, c.Bytes()...)
	}
	data = append(data, context...)
	return ethcrypto.Keccak256(data)
}

// SortedContracts returns a sorted copy of contracts without duplicates.
func SortedContracts(contracts []common.Address) []common.Address {
	sorted := make([]common.Address, len(contracts))
	copy(sorted, contracts)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Bytes(), sorted[j].Bytes()) < 0
	})
	out := sorted[:0]
	for i, c := range sorted {
		if i == 0 || c != sorted[i-1] {
			out = append(out, c)
		}
	}
	return out
}

// fresher reports whether candidate should replace current.
func fresher(current, candidate *Credential) bool {
	return current == nil || candidate.StartTimestamp >= current.StartTimestamp
}
