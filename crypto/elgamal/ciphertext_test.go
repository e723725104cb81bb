package elgamal

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/encrypted-survey/crypto/ecc/bn254"
	"github.com/vocdoni/encrypted-survey/crypto/ecc/curves"
)

func TestNewCiphertext(t *testing.T) {
	c := qt.New(t)

	cipher := NewCiphertext(curves.New(bn254.CurveType))
	c.Assert(cipher, qt.Not(qt.IsNil))
	c.Assert(cipher.C1, qt.Not(qt.IsNil))
	c.Assert(cipher.C2, qt.Not(qt.IsNil))
}

func TestCiphertextAddIsHomomorphic(t *testing.T) {
	for _, curveType := range curves.Curves() {
		t.Run(curveType, func(t *testing.T) {
			c := qt.New(t)
			curve := curves.New(curveType)
			publicKey, privateKey, err := GenerateKey(curve)
			c.Assert(err, qt.IsNil)
			G := curve.New()
			G.SetGenerator()
			table := NewDLogTable(G, 1<<12)

			total := NewZeroCiphertext(curve)
			expected := int64(0)
			for _, v := range []int64{42, 58, 1, 0, 3} {
				ct, err := NewCiphertext(curve).Encrypt(big.NewInt(v), publicKey, nil)
				c.Assert(err, qt.IsNil)
				total = NewCiphertext(curve).Add(total, ct)
				expected += v
			}
			msg, err := total.Decrypt(privateKey, table)
			c.Assert(err, qt.IsNil)
			c.Assert(msg.Int64(), qt.Equals, expected)

			// the zero ciphertext decrypts to zero
			msg, err = NewZeroCiphertext(curve).Decrypt(privateKey, table)
			c.Assert(err, qt.IsNil)
			c.Assert(msg.Int64(), qt.Equals, int64(0))
		})
	}
}

func TestCiphertextSerializeDeserialize(t *testing.T) {
	for _, curveType := range curves.Curves() {
		t.Run(curveType, func(t *testing.T) {
			c := qt.New(t)
			curve := curves.New(curveType)
			publicKey, _, err := GenerateKey(curve)
			c.Assert(err, qt.IsNil)

			original, err := NewCiphertext(curve).Encrypt(big.NewInt(100), publicKey, nil)
			c.Assert(err, qt.IsNil)
			data := original.Serialize()
			c.Assert(data, qt.HasLen, SizeCiphertext)

			restored := NewCiphertext(curve)
			c.Assert(restored.Deserialize(data), qt.IsNil)
			c.Assert(restored.C1.Equal(original.C1), qt.IsTrue)
			c.Assert(restored.C2.Equal(original.C2), qt.IsTrue)
			c.Assert(restored.IsValid(), qt.IsTrue)

			// JSON and CBOR carry the curve type along the points
			jsonData, err := json.Marshal(original)
			c.Assert(err, qt.IsNil)
			fromJSON := &Ciphertext{}
			c.Assert(json.Unmarshal(jsonData, fromJSON), qt.IsNil)
			c.Assert(fromJSON.Serialize(), qt.DeepEquals, data)

			cborData, err := cbor.Marshal(original)
			c.Assert(err, qt.IsNil)
			fromCBOR := &Ciphertext{}
			c.Assert(cbor.Unmarshal(cborData, fromCBOR), qt.IsNil)
			c.Assert(fromCBOR.Serialize(), qt.DeepEquals, data)
		})
	}
}

func TestCiphertextDeserializeError(t *testing.T) {
	c := qt.New(t)
	ct := NewCiphertext(curves.New(curves.CurveTypeBN254))
	c.Assert(ct.Deserialize(make([]byte, SizeCiphertext-1)), qt.ErrorMatches, "invalid input length.*")
}

func TestCiphertextString(t *testing.T) {
	c := qt.New(t)
	var nilCt *Ciphertext
	c.Assert(nilCt.String(), qt.Equals, "{C1: nil, C2: nil}")
	zero := NewZeroCiphertext(curves.New(curves.CurveTypeBabyJubJubIden3))
	c.Assert(zero.String(), qt.Equals, "{C1: 0,1, C2: 0,1}")
}
