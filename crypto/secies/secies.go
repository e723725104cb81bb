// Package secies seals scalars to an elliptic curve public key. It is used
// to return decrypted values to the holder of an ephemeral key pair, so the
// plaintext is never exposed to anybody else on the way back.
package secies

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/vocdoni/encrypted-survey/crypto/ecc"
)

// ScalarECIES encapsulates methods for encryption and decryption of a scalar, using elliptic curve cryptography.
type ScalarECIES struct {
	privateKey *big.Int
	publicKey  ecc.Point
	curvePoint ecc.Point
	hashFunc   func([]byte) [32]byte
}

// New initializes a new ScalarECIES instance and generates keys if privateKey is nil.
// The curve parameter is an instance of the elliptic curve group.
// The hashFunc parameter is the hash function used to derive shared secrets. If nil, SHA-256 is used.
func New(privateKey *big.Int, curve ecc.Point, hashFunc func([]byte) [32]byte) (*ScalarECIES, error) {
	if curve == nil {
		return nil, fmt.Errorf("curve cannot be nil")
	}
	se := &ScalarECIES{
		curvePoint: curve,
		hashFunc:   hashFunc,
	}
	if hashFunc == nil {
		se.hashFunc = sha256.Sum256
	}
	if privateKey == nil {
		var err error
		if privateKey, err = ecc.RandomScalar(curve); err != nil {
			return nil, err
		}
	}
	se.privateKey = new(big.Int).Set(privateKey)
	se.publicKey = curve.New()
	se.publicKey.ScalarBaseMult(se.privateKey)
	return se, nil
}

// GetPublicKey returns the marshaled public key.
func (se *ScalarECIES) GetPublicKey() []byte {
	return se.publicKey.Marshal()
}

// PublicKey returns the public key point.
func (se *ScalarECIES) PublicKey() ecc.Point {
	return se.publicKey
}

// GetPrivateKey returns the private key.
func (se *ScalarECIES) GetPrivateKey() *big.Int {
	return se.privateKey
}

// Encrypt encrypts a message (scalar) using the recipient's public key.
func (se *ScalarECIES) Encrypt(message *big.Int, recipientPublicKey ecc.Point) (*big.Int, []byte, error) {
	return encrypt(se.curvePoint, se.hashFunc, message, recipientPublicKey)
}

// Decrypt decrypts a message given the ciphertext components.
func (se *ScalarECIES) Decrypt(c *big.Int, RBytes []byte) (*big.Int, error) {
	R := se.curvePoint.New()
	if err := R.Unmarshal(RBytes); err != nil {
		return nil, fmt.Errorf("invalid ephemeral point: %w", err)
	}

	// Compute shared secret point S = sk * R
	S := se.curvePoint.New()
	S.ScalarMult(R, se.privateKey)
	s := hashPointToScalar(se.hashFunc, S)

	// Recover message m = c - s mod Fr
	m := new(big.Int).Sub(c, s)
	m.Mod(m, se.curvePoint.Order())
	return m, nil
}

// Seal encrypts message for the holder of the marshaled public key
// recipientPublicKey without requiring a local key pair.
func Seal(curve ecc.Point, message *big.Int, recipientPublicKey []byte) (*big.Int, []byte, error) {
	pub := curve.New()
	if err := pub.Unmarshal(recipientPublicKey); err != nil {
		return nil, nil, fmt.Errorf("invalid recipient public key: %w", err)
	}
	if !pub.IsOnCurve() {
		return nil, nil, fmt.Errorf("recipient public key is not on the curve")
	}
	return encrypt(curve, sha256.Sum256, message, pub)
}

func encrypt(curve ecc.Point, hashFunc func([]byte) [32]byte, message *big.Int, recipientPublicKey ecc.Point) (*big.Int, []byte, error) {
	order := curve.Order()
	m := new(big.Int).Mod(message, order)

	// Generate ephemeral scalar r
	r, err := ecc.RandomScalar(curve)
	if err != nil {
		return nil, nil, err
	}

	// Compute R = r * G
	R := curve.New()
	R.ScalarBaseMult(r)

	// Compute shared secret point S = r * recipientPublicKey
	S := curve.New()
	S.ScalarMult(recipientPublicKey, r)
	s := hashPointToScalar(hashFunc, S)

	// Compute ciphertext c = message + s mod Fr
	c := new(big.Int).Add(m, s)
	c.Mod(c, order)
	return c, R.Marshal(), nil
}

// hashPointToScalar hashes an elliptic curve point to a scalar in Fr.
func hashPointToScalar(hashFunc func([]byte) [32]byte, point ecc.Point) *big.Int {
	hashBytes := hashFunc(point.Marshal())
	hashInt := new(big.Int).SetBytes(hashBytes[:])
	return hashInt.Mod(hashInt, point.Order())
}
