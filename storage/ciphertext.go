package storage

import (
	"bytes"
	"errors"

	"github.com/vocdoni/encrypted-survey/types"
)

// SetCiphertext stores the serialized ciphertext referenced by handle.
// Ciphertexts are content addressed, so storing the same handle twice is a
// no-op as long as the data matches.
func (s *Storage) SetCiphertext(handle types.Handle, data []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	stored, err := s.getRaw(ciphertextPrefix, handle[:])
	switch {
	case err == nil:
		if !bytes.Equal(stored, data) {
			return errors.New("handle already bound to a different ciphertext")
		}
		return nil
	case errors.Is(err, ErrNotFound):
		return s.setRaw(ciphertextPrefix, handle[:], data)
	default:
		return err
	}
}

// Ciphertext returns the serialized ciphertext referenced by handle, or
// ErrNotFound.
func (s *Storage) Ciphertext(handle types.Handle) ([]byte, error) {
	return s.getRaw(ciphertextPrefix, handle[:])
}

// HasCiphertext reports whether handle references a known ciphertext.
func (s *Storage) HasCiphertext(handle types.Handle) bool {
	_, err := s.getRaw(ciphertextPrefix, handle[:])
	return err == nil
}
