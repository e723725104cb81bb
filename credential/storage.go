package credential

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vocdoni/encrypted-survey/log"
	"github.com/vocdoni/encrypted-survey/storage"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealingInfo = "survey credential cache v1"

// StorageCache is a persistent Cache. Credentials hold ephemeral private
// keys, so they are sealed with XChaCha20-Poly1305 before reaching the
// database, using a key derived from a client side secret.
type StorageCache struct {
	mu   sync.Mutex
	stg  *storage.Storage
	aead cipher.AEAD
	now  func() time.Time
}

// NewStorageCache returns a StorageCache persisting into stg. The secret
// must be kept by the client; without it the stored credentials are useless.
func NewStorageCache(stg *storage.Storage, secret []byte) (*StorageCache, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("credential cache secret too short")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(sealingInfo)), key); err != nil {
		return nil, fmt.Errorf("cannot derive sealing key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &StorageCache{stg: stg, aead: aead, now: time.Now}, nil
}

// SetClock replaces the time source used to expire entries.
func (s *StorageCache) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *StorageCache) Get(key []byte) (*Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, err := s.load(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warnw("cannot load cached credential", "error", err.Error())
		}
		return nil, false
	}
	if cred.Expired(s.now()) {
		if err := s.stg.DeleteCredential(key); err != nil {
			log.Warnw("cannot delete expired credential", "error", err.Error())
		}
		return nil, false
	}
	return cred, true
}

func (s *StorageCache) Put(key []byte, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, err := s.load(key); err == nil && !current.Expired(s.now()) && !fresher(current, cred) {
		return nil
	}
	plaintext, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("cannot encode credential: %w", err)
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, key)
	return s.stg.SetCredential(key, sealed)
}

func (s *StorageCache) load(key []byte) (*Credential, error) {
	sealed, err := s.stg.Credential(key)
	if err != nil {
		return nil, err
	}
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, fmt.Errorf("sealed credential too short")
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], key)
	if err != nil {
		return nil, fmt.Errorf("cannot open sealed credential: %w", err)
	}
	cred := &Credential{}
	if err := json.Unmarshal(plaintext, cred); err != nil {
		return nil, fmt.Errorf("cannot decode credential: %w", err)
	}
	return cred, nil
}
