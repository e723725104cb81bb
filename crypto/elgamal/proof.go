package elgamal

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/arbo"
	"github.com/vocdoni/encrypted-survey/crypto/ecc"
	"github.com/vocdoni/encrypted-survey/crypto/ecc/curves"
)

// RangeBits is the bit length of the values covered by a RangeProof.
const RangeBits = 32

// maxChallengeContext is the number of context values a proof can be bound
// to, besides the public key and the ciphertext, in a single Poseidon call.
const maxChallengeContext = 10

// BitProof proves that Ciphertext encrypts either 0 or 1. It is the OR of
// two Chaum-Pedersen proofs, log_G(C1) == log_P(C2 - j*G) for j = 0 and
// j = 1, where the branch that does not hold is simulated. The challenges
// E0 and E1 must add up to the Fiat-Shamir challenge.
type BitProof struct {
	Ciphertext *Ciphertext
	E0, E1     *big.Int
	Z0, Z1     *big.Int
}

// RangeProof proves that a ciphertext encrypts a value in [0, 2^RangeBits).
// The value is split in bits, each one encrypted and proven on its own, and
// the proven ciphertext must be the weighted sum of the bit ciphertexts.
type RangeProof struct {
	Bits []*BitProof
}

// ProveRange encrypts msg under publicKey and proves that the ciphertext
// holds a value of at most RangeBits bits. The proof is bound to the public
// key, to the ciphertext and to the context values, so it cannot be replayed
// under a different context.
func ProveRange(publicKey ecc.Point, msg uint64, context ...*big.Int) (*Ciphertext, *RangeProof, error) {
	if msg>>RangeBits != 0 {
		return nil, nil, fmt.Errorf("value %d does not fit in %d bits", msg, RangeBits)
	}
	bits := make([]*Ciphertext, RangeBits)
	randomness := make([]*big.Int, RangeBits)
	for i := range bits {
		k, err := ecc.RandomScalar(publicKey)
		if err != nil {
			return nil, nil, err
		}
		bit := new(big.Int).SetUint64((msg >> i) & 1)
		if bits[i], err = NewCiphertext(publicKey).Encrypt(bit, publicKey, k); err != nil {
			return nil, nil, err
		}
		randomness[i] = k
	}
	ct := weightedSum(publicKey, bits)

	h, err := contextHash(publicKey, ct, context)
	if err != nil {
		return nil, nil, err
	}
	proof := &RangeProof{Bits: make([]*BitProof, RangeBits)}
	for i := range bits {
		bit := int64((msg >> i) & 1)
		if proof.Bits[i], err = proveBit(publicKey, bits[i], bit, randomness[i], h, i); err != nil {
			return nil, nil, fmt.Errorf("bit %d: %w", i, err)
		}
	}
	return ct, proof, nil
}

// Verify checks that ct, encrypted under publicKey, holds a value in
// [0, 2^RangeBits) and that the proof was built for the same context.
func (p *RangeProof) Verify(publicKey ecc.Point, ct *Ciphertext, context ...*big.Int) bool {
	if p == nil || len(p.Bits) != RangeBits || !ct.IsValid() || ct.C1.Type() != publicKey.Type() {
		return false
	}
	h, err := contextHash(publicKey, ct, context)
	if err != nil {
		return false
	}
	bits := make([]*Ciphertext, RangeBits)
	for i, b := range p.Bits {
		if !b.verify(publicKey, h, i) {
			return false
		}
		bits[i] = b.Ciphertext
	}
	sum := weightedSum(publicKey, bits)
	return sum.C1.Equal(ct.C1) && sum.C2.Equal(ct.C2)
}

// proveBit proves that ct encrypts bit with randomness k.
func proveBit(publicKey ecc.Point, ct *Ciphertext, bit int64, k, ctxHash *big.Int, index int) (*BitProof, error) {
	if bit != 0 && bit != 1 {
		return nil, fmt.Errorf("invalid bit %d", bit)
	}
	if !checkRandomness(ct.C1, k) {
		return nil, fmt.Errorf("randomness does not match the ciphertext")
	}
	order := publicKey.Order()
	w, err := ecc.RandomScalar(publicKey)
	if err != nil {
		return nil, err
	}
	eSim, err := ecc.RandomScalar(publicKey)
	if err != nil {
		return nil, err
	}
	zSim, err := ecc.RandomScalar(publicKey)
	if err != nil {
		return nil, err
	}

	held, sim := bit, 1-bit
	points := make([]ecc.Point, 4)
	points[2*held] = publicKey.New()
	points[2*held].ScalarBaseMult(w)
	points[2*held+1] = publicKey.New()
	points[2*held+1].ScalarMult(publicKey, w)
	points[2*sim], points[2*sim+1] = bitCommitments(publicKey, ct, sim, eSim, zSim)

	e, err := bitChallenge(ctxHash, index, ct, points)
	if err != nil {
		return nil, err
	}
	eHeld := new(big.Int).Sub(e, eSim)
	eHeld.Mod(eHeld, order)
	zHeld := new(big.Int).Mul(eHeld, k)
	zHeld.Add(zHeld, w)
	zHeld.Mod(zHeld, order)

	if held == 0 {
		return &BitProof{Ciphertext: ct, E0: eHeld, Z0: zHeld, E1: eSim, Z1: zSim}, nil
	}
	return &BitProof{Ciphertext: ct, E0: eSim, Z0: zSim, E1: eHeld, Z1: zHeld}, nil
}

func (b *BitProof) verify(publicKey ecc.Point, ctxHash *big.Int, index int) bool {
	if b == nil || !b.Ciphertext.IsValid() || b.Ciphertext.C1.Type() != publicKey.Type() {
		return false
	}
	order := publicKey.Order()
	for _, s := range []*big.Int{b.E0, b.E1, b.Z0, b.Z1} {
		if s == nil || s.Sign() < 0 || s.Cmp(order) >= 0 {
			return false
		}
	}
	A0, B0 := bitCommitments(publicKey, b.Ciphertext, 0, b.E0, b.Z0)
	A1, B1 := bitCommitments(publicKey, b.Ciphertext, 1, b.E1, b.Z1)
	e, err := bitChallenge(ctxHash, index, b.Ciphertext, []ecc.Point{A0, B0, A1, B1})
	if err != nil {
		return false
	}
	sum := new(big.Int).Add(b.E0, b.E1)
	return sum.Mod(sum, order).Cmp(e) == 0
}

// bitCommitments recomputes the commitments of branch j from its challenge
// and response: A = z*G - e*C1 and B = z*P - e*(C2 - j*G).
func bitCommitments(publicKey ecc.Point, ct *Ciphertext, j int64, e, z *big.Int) (ecc.Point, ecc.Point) {
	negE := new(big.Int).Neg(e)
	negE.Mod(negE, publicKey.Order())

	A := publicKey.New()
	A.ScalarBaseMult(z)
	t := publicKey.New()
	t.ScalarMult(ct.C1, negE)
	A.Add(A, t)

	shifted := publicKey.New()
	shifted.Set(ct.C2)
	if j != 0 {
		jG := publicKey.New()
		jG.ScalarBaseMult(big.NewInt(j))
		jG.Neg(jG)
		shifted.Add(shifted, jG)
	}
	B := publicKey.New()
	B.ScalarMult(publicKey, z)
	t = publicKey.New()
	t.ScalarMult(shifted, negE)
	B.Add(B, t)
	return A, B
}

// weightedSum returns sum(2^i * bits[i]), computed with the Horner scheme.
func weightedSum(curve ecc.Point, bits []*Ciphertext) *Ciphertext {
	acc := NewZeroCiphertext(curve)
	for i := len(bits) - 1; i >= 0; i-- {
		acc.Add(acc, acc)
		acc.Add(acc, bits[i])
	}
	return acc
}

// contextHash commits to the public key, the proven ciphertext and the
// context values. Every bit challenge is derived from it.
func contextHash(publicKey ecc.Point, ct *Ciphertext, context []*big.Int) (*big.Int, error) {
	if len(context) > maxChallengeContext {
		return nil, fmt.Errorf("too many context values (%d)", len(context))
	}
	inputs := fieldCoords(publicKey, ct.C1, ct.C2)
	for _, v := range context {
		inputs = append(inputs, ecc.BigToFF(arbo.BN254BaseField, v))
	}
	h, err := poseidon.Hash(inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to hash proof context: %w", err)
	}
	return h, nil
}

// bitChallenge hashes the context, the bit index, the bit ciphertext and
// the four branch commitments into a scalar of the curve group.
func bitChallenge(ctxHash *big.Int, index int, ct *Ciphertext, commitments []ecc.Point) (*big.Int, error) {
	inputs := []*big.Int{ctxHash, big.NewInt(int64(index))}
	inputs = append(inputs, fieldCoords(append([]ecc.Point{ct.C1, ct.C2}, commitments...)...)...)
	h, err := poseidon.Hash(inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to compute challenge: %w", err)
	}
	return h.Mod(h, ct.C1.Order()), nil
}

// fieldCoords returns the affine coordinates of points reduced into the
// BN254 scalar field, as required by Poseidon.
func fieldCoords(points ...ecc.Point) []*big.Int {
	coords := make([]*big.Int, 0, 2*len(points))
	for _, p := range points {
		x, y := p.Point()
		coords = append(coords,
			ecc.BigToFF(arbo.BN254BaseField, x),
			ecc.BigToFF(arbo.BN254BaseField, y))
	}
	return coords
}

// InputProof bundles a ciphertext with the proof that it encrypts a value
// in range. It is the opaque proof submitted along a handle.
type InputProof struct {
	Ciphertext *Ciphertext
	Proof      *RangeProof
}

type bitProofWire struct {
	Ciphertext []byte `cbor:"0,keyasint"`
	E0         []byte `cbor:"1,keyasint"`
	E1         []byte `cbor:"2,keyasint"`
	Z0         []byte `cbor:"3,keyasint"`
	Z1         []byte `cbor:"4,keyasint"`
}

type inputProofWire struct {
	CurveType  string         `cbor:"0,keyasint"`
	Ciphertext []byte         `cbor:"1,keyasint"`
	Bits       []bitProofWire `cbor:"2,keyasint"`
}

// Marshal encodes the input proof with CBOR.
func (ip *InputProof) Marshal() ([]byte, error) {
	if ip == nil || ip.Ciphertext == nil || ip.Proof == nil {
		return nil, fmt.Errorf("incomplete input proof")
	}
	w := inputProofWire{
		CurveType:  ip.Ciphertext.C1.Type(),
		Ciphertext: ip.Ciphertext.Serialize(),
		Bits:       make([]bitProofWire, len(ip.Proof.Bits)),
	}
	for i, b := range ip.Proof.Bits {
		if b == nil || b.Ciphertext == nil || b.E0 == nil || b.E1 == nil || b.Z0 == nil || b.Z1 == nil {
			return nil, fmt.Errorf("incomplete proof for bit %d", i)
		}
		w.Bits[i] = bitProofWire{
			Ciphertext: b.Ciphertext.Serialize(),
			E0:         b.E0.Bytes(),
			E1:         b.E1.Bytes(),
			Z0:         b.Z0.Bytes(),
			Z1:         b.Z1.Bytes(),
		}
	}
	return cbor.Marshal(w)
}

// Unmarshal decodes an input proof encoded with Marshal. The points are not
// validated here; RangeProof.Verify does it.
func (ip *InputProof) Unmarshal(data []byte) error {
	var w inputProofWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("invalid input proof encoding: %w", err)
	}
	if !curves.IsValid(w.CurveType) {
		return fmt.Errorf("unsupported curve type %q", w.CurveType)
	}
	if len(w.Bits) != RangeBits {
		return fmt.Errorf("expected %d bit proofs, got %d", RangeBits, len(w.Bits))
	}
	curve := curves.New(w.CurveType)
	ct := NewCiphertext(curve)
	if err := ct.Deserialize(w.Ciphertext); err != nil {
		return err
	}
	proof := &RangeProof{Bits: make([]*BitProof, RangeBits)}
	for i, b := range w.Bits {
		bct := NewCiphertext(curve)
		if err := bct.Deserialize(b.Ciphertext); err != nil {
			return fmt.Errorf("bit %d: %w", i, err)
		}
		proof.Bits[i] = &BitProof{
			Ciphertext: bct,
			E0:         new(big.Int).SetBytes(b.E0),
			E1:         new(big.Int).SetBytes(b.E1),
			Z0:         new(big.Int).SetBytes(b.Z0),
			Z1:         new(big.Int).SetBytes(b.Z1),
		}
	}
	ip.Ciphertext = ct
	ip.Proof = proof
	return nil
}
