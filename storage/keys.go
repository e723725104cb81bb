package storage

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/vocdoni/encrypted-survey/crypto/ecc"
	"github.com/vocdoni/encrypted-survey/crypto/ecc/curves"
)

// EncryptionKeys is the persisted form of the gateway ElGamal key pair.
type EncryptionKeys struct {
	CurveType  string   `cbor:"0,keyasint"`
	X          *big.Int `cbor:"1,keyasint"`
	Y          *big.Int `cbor:"2,keyasint"`
	PrivateKey *big.Int `cbor:"3,keyasint"`
}

// SetEncryptionKeys stores the gateway encryption key pair.
func (s *Storage) SetEncryptionKeys(publicKey ecc.Point, privateKey *big.Int) error {
	x, y := publicKey.Point()
	eks := EncryptionKeys{
		CurveType:  publicKey.Type(),
		X:          x,
		Y:          y,
		PrivateKey: privateKey,
	}
	return s.setArtifact(gatewayKeyPrefix, gatewayKeyID, eks)
}

// EncryptionKeys loads the gateway encryption key pair. Returns ErrNotFound
// if the keys do not exist.
func (s *Storage) EncryptionKeys() (ecc.Point, *big.Int, error) {
	eks := EncryptionKeys{}
	if err := s.getArtifact(gatewayKeyPrefix, gatewayKeyID, &eks); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("could not read encryption keys: %w", err)
	}
	if !curves.IsValid(eks.CurveType) {
		return nil, nil, fmt.Errorf("stored encryption keys use an unknown curve %q", eks.CurveType)
	}
	pubKey := curves.New(eks.CurveType).SetPoint(eks.X, eks.Y)
	return pubKey, eks.PrivateKey, nil
}
