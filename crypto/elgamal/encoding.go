package elgamal

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/encrypted-survey/crypto/ecc/curves"
	"github.com/vocdoni/encrypted-survey/types"
)

// ciphertextWire is the on-wire representation of a Ciphertext, shared by
// the JSON and CBOR encodings.
type ciphertextWire struct {
	CurveType string         `json:"curveType" cbor:"0,keyasint"`
	Data      types.HexBytes `json:"data" cbor:"1,keyasint"`
}

func (z *Ciphertext) wire() ciphertextWire {
	return ciphertextWire{CurveType: z.C1.Type(), Data: z.Serialize()}
}

func (z *Ciphertext) fromWire(w *ciphertextWire) error {
	if !curves.IsValid(w.CurveType) {
		return fmt.Errorf("unsupported curve type %q", w.CurveType)
	}
	*z = *NewCiphertext(curves.New(w.CurveType))
	return z.Deserialize(w.Data)
}

// MarshalJSON serializes the Ciphertext to JSON.
func (z *Ciphertext) MarshalJSON() ([]byte, error) {
	return json.Marshal(z.wire())
}

// UnmarshalJSON deserializes the Ciphertext from JSON.
func (z *Ciphertext) UnmarshalJSON(data []byte) error {
	var w ciphertextWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("failed to unmarshal ciphertext container: %w", err)
	}
	return z.fromWire(&w)
}

// MarshalCBOR serializes the Ciphertext to CBOR.
func (z *Ciphertext) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(z.wire())
}

// UnmarshalCBOR deserializes the Ciphertext from CBOR.
func (z *Ciphertext) UnmarshalCBOR(buf []byte) error {
	var w ciphertextWire
	if err := cbor.Unmarshal(buf, &w); err != nil {
		return fmt.Errorf("failed to unmarshal ciphertext container: %w", err)
	}
	return z.fromWire(&w)
}
