package storage

// SetCredential stores an already sealed credential blob under key.
func (s *Storage) SetCredential(key, sealed []byte) error {
	return s.setRaw(credentialPrefix, hashKey(key), sealed)
}

// Credential returns the sealed credential stored under key, or ErrNotFound.
func (s *Storage) Credential(key []byte) ([]byte, error) {
	return s.getRaw(credentialPrefix, hashKey(key))
}

// DeleteCredential removes the credential stored under key.
func (s *Storage) DeleteCredential(key []byte) error {
	return s.deleteArtifact(credentialPrefix, hashKey(key))
}
