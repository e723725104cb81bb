package storage

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Artifact encoding/decoding
func encodeArtifact(a any) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

func hashKey(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:maxKeySize]
}

// setArtifact encodes and stores an artifact under prefix/key.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}
	return s.setRaw(prefix, key, data)
}

// setRaw stores data as is under prefix/key.
func (s *Storage) setRaw(prefix, key, data []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, data); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// getArtifact reads and decodes the artifact stored under prefix/key into
// out. Returns ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := s.getRaw(prefix, key)
	if err != nil {
		return err
	}
	if err := decodeArtifact(data, out); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

// getRaw returns the bytes stored under prefix/key.
func (s *Storage) getRaw(prefix, key []byte) ([]byte, error) {
	rTx := prefixeddb.NewPrefixedReader(s.db, prefix)
	data, err := rTx.Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// deleteArtifact removes the artifact stored under prefix/key.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Delete(key); err != nil {
		wTx.Discard()
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return wTx.Commit()
}

// listArtifacts returns the keys of all the artifacts stored under prefix.
func (s *Storage) listArtifacts(prefix []byte) ([][]byte, error) {
	pr := prefixeddb.NewPrefixedReader(s.db, prefix)
	var keys [][]byte
	if err := pr.Iterate(nil, func(k, _ []byte) bool {
		key := make([]byte, len(k))
		copy(key, k)
		keys = append(keys, key)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return keys, nil
}
