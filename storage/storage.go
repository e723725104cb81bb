// storage package contains all the artifacts that are stored in the database.
// It includes a prefixed key-value store that allows to store the different
// types of artifacts in the database. The following prefixes are used:
//   - 'gk/' for the encryption gateway key pair
//   - 'ct/' for ciphertexts, indexed by their handle
//   - 's/' for survey ledger states, indexed by survey address
//   - 'e/' for survey events, indexed by survey address and sequence number
//   - 'cr/' for sealed decryption credentials, indexed by cache key
//
// Survey state and the event it produced are always written in the same
// transaction, so readers never observe one without the other.
package storage

import (
	"errors"
	"sync"

	"github.com/vocdoni/encrypted-survey/log"
	"go.vocdoni.io/dvote/db"
)

var (
	// Prefixes for the keys in the database.
	gatewayKeyPrefix = []byte("gk/")
	ciphertextPrefix = []byte("ct/")
	surveyPrefix     = []byte("s/")
	eventPrefix      = []byte("e/")
	credentialPrefix = []byte("cr/")

	// gatewayKeyID is the key under which the gateway key pair is stored.
	gatewayKeyID = []byte("network")
)

var (
	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoMoreElements is returned when an iteration has nothing else to return.
	ErrNoMoreElements = errors.New("no more elements")
)

const (
	// maxKeySize is the maximum size of the key in bytes. It is used to
	// generate the key of the artifacts stored in the database by truncating
	// the hash of the artifact itself.
	maxKeySize = 12
)

// Storage wraps the database and exposes typed accessors for every artifact
// handled by the node.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance.
func New(db db.Database) *Storage {
	return &Storage{db: db}
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err.Error())
	}
}
