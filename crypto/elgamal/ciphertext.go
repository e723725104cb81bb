package elgamal

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/vocdoni/arbo"
	"github.com/vocdoni/encrypted-survey/crypto/ecc"
)

// sizes in bytes needed to serialize a Ciphertext
const (
	sizeCoord      = 32
	sizePoint      = 2 * sizeCoord
	SizeCiphertext = 2 * sizePoint
)

// Ciphertext represents an ElGamal encrypted message with homomorphic properties.
// It is a wrapper for convenience of the elGamal ciphersystem that encapsulates the two points of a ciphertext.
type Ciphertext struct {
	C1 ecc.Point `json:"c1"`
	C2 ecc.Point `json:"c2"`
}

// NewCiphertext creates a new Ciphertext on the same curve as the given Point.
// The Point must be one on of the supported curves by crypto/ecc/curves package,
// can be easily created with curves.New(type)
func NewCiphertext(curve ecc.Point) *Ciphertext {
	return &Ciphertext{C1: curve.New(), C2: curve.New()}
}

// NewZeroCiphertext returns the trivial encryption of zero, (O, O), which is
// the identity for Add.
func NewZeroCiphertext(curve ecc.Point) *Ciphertext {
	z := NewCiphertext(curve)
	z.C1.SetZero()
	z.C2.SetZero()
	return z
}

// Encrypt encrypts message under publicKey and stores the result in z,
// which is also returned. A nil k draws fresh randomness; callers that
// need to prove the encryption pass their own.
func (z *Ciphertext) Encrypt(message *big.Int, publicKey ecc.Point, k *big.Int) (*Ciphertext, error) {
	if k == nil {
		var err error
		if k, err = ecc.RandomScalar(publicKey); err != nil {
			return nil, fmt.Errorf("elgamal encryption failed: %w", err)
		}
	}
	z.C1, z.C2 = encrypt(publicKey, message, k)
	return z, nil
}

// Add sets z to the component-wise sum of x and y, an encryption of the sum
// of their plaintexts, and returns z.
func (z *Ciphertext) Add(x, y *Ciphertext) *Ciphertext {
	z.C1.Add(x.C1, y.C1)
	z.C2.Add(x.C2, y.C2)
	return z
}

// Decrypt returns the plaintext of z. The table bounds the values that can
// be recovered; larger plaintexts return an error.
func (z *Ciphertext) Decrypt(privateKey *big.Int, table *DLogTable) (*big.Int, error) {
	msg, err := table.Solve(DecryptPoint(privateKey, z.C1, z.C2))
	if err != nil {
		return nil, fmt.Errorf("elgamal decryption failed: %w", err)
	}
	return msg, nil
}

// IsValid reports whether both points belong to the curve group.
func (z *Ciphertext) IsValid() bool {
	return z != nil && z.C1 != nil && z.C2 != nil && z.C1.IsOnCurve() && z.C2.IsOnCurve()
}

// Serialize returns a slice of len 4*32 bytes,
// representing the C1.X, C1.Y, C2.X, C2.Y as little-endian.
func (z *Ciphertext) Serialize() []byte {
	var buf bytes.Buffer
	c1x, c1y := z.C1.Point()
	c2x, c2y := z.C2.Point()
	for _, bi := range []*big.Int{c1x, c1y, c2x, c2y} {
		buf.Write(arbo.BigIntToBytes(sizeCoord, bi))
	}
	return buf.Bytes()
}

// Deserialize reconstructs an Ciphertext from a slice of bytes.
// The input must be of len 4*32 bytes (otherwise it returns an error),
// representing the C1.X, C1.Y, C2.X, C2.Y as little-endian.
func (z *Ciphertext) Deserialize(data []byte) error {
	if len(data) != SizeCiphertext {
		return fmt.Errorf("invalid input length: got %d bytes, expected %d bytes", len(data), SizeCiphertext)
	}
	readBigInt := func(offset int) *big.Int {
		return arbo.BytesToBigInt(data[offset : offset+sizeCoord])
	}
	z.C1 = z.C1.SetPoint(readBigInt(0*sizeCoord), readBigInt(1*sizeCoord))
	z.C2 = z.C2.SetPoint(readBigInt(2*sizeCoord), readBigInt(3*sizeCoord))
	return nil
}

// String returns a string representation of the Ciphertext.
func (z *Ciphertext) String() string {
	if z == nil || z.C1 == nil || z.C2 == nil {
		return "{C1: nil, C2: nil}"
	}
	return fmt.Sprintf("{C1: %s, C2: %s}", z.C1.String(), z.C2.String())
}
