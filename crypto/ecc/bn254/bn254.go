// Package bn254 implements ecc.Point over the G1 group of BN254, backed by
// gnark-crypto.
package bn254

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"

	curve "github.com/vocdoni/encrypted-survey/crypto/ecc"
	"github.com/vocdoni/encrypted-survey/types"
)

const CurveType = "bn254"

var generator bn254.G1Affine

func init() {
	_, _, generator, _ = bn254.Generators()
}

// G1 is a point of the BN254 G1 group in affine coordinates. The point at
// infinity is (0, 0).
type G1 struct {
	inner bn254.G1Affine
}

func (g *G1) New() curve.Point {
	return &G1{}
}

func (*G1) Order() *big.Int {
	return fr.Modulus()
}

func (g *G1) Add(a, b curve.Point) {
	var sum bn254.G1Affine
	sum.Add(affine(a), affine(b))
	g.inner = sum
}

func (g *G1) ScalarMult(a curve.Point, scalar *big.Int) {
	var r bn254.G1Affine
	r.ScalarMultiplication(affine(a), scalar)
	g.inner = r
}

func (g *G1) ScalarBaseMult(scalar *big.Int) {
	g.inner.ScalarMultiplicationBase(scalar)
}

// Marshal returns the 32 byte compressed encoding of the point.
func (g *G1) Marshal() []byte {
	b := g.inner.Bytes()
	return b[:]
}

// Unmarshal decodes a compressed or uncompressed point, checking that it
// belongs to G1.
func (g *G1) Unmarshal(buf []byte) error {
	_, err := g.inner.SetBytes(buf)
	return err
}

func (g *G1) MarshalJSON() ([]byte, error) {
	x, y := g.Point()
	return json.Marshal([]*types.BigInt{(*types.BigInt)(x), (*types.BigInt)(y)})
}

func (g *G1) UnmarshalJSON(buf []byte) error {
	var coords []*types.BigInt
	if err := json.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 || coords[0] == nil || coords[1] == nil {
		return fmt.Errorf("bn254: expected 2 coordinates, got %d", len(coords))
	}
	return g.setCoords(coords[0].MathBigInt(), coords[1].MathBigInt())
}

func (g *G1) MarshalCBOR() ([]byte, error) {
	x, y := g.Point()
	return cbor.Marshal([]*big.Int{x, y})
}

func (g *G1) UnmarshalCBOR(buf []byte) error {
	var coords []*big.Int
	if err := cbor.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("bn254: expected 2 coordinates, got %d", len(coords))
	}
	return g.setCoords(coords[0], coords[1])
}

// setCoords sets the affine coordinates of g, rejecting points that are not
// in the prime order subgroup.
func (g *G1) setCoords(x, y *big.Int) error {
	var p bn254.G1Affine
	p.X.SetBigInt(x)
	p.Y.SetBigInt(y)
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return fmt.Errorf("bn254: point (%s, %s) is not in G1", x, y)
	}
	g.inner = p
	return nil
}

func (g *G1) Equal(a curve.Point) bool {
	return g.inner.Equal(affine(a))
}

func (g *G1) Neg(a curve.Point) {
	g.inner.Neg(affine(a))
}

func (g *G1) SetZero() {
	g.inner = bn254.G1Affine{}
}

func (g *G1) Set(a curve.Point) {
	g.inner = *affine(a)
}

func (g *G1) SetGenerator() {
	g.inner = generator
}

func (g *G1) String() string {
	return fmt.Sprintf("%x", g.Marshal())
}

func (g *G1) Point() (*big.Int, *big.Int) {
	return g.inner.X.BigInt(new(big.Int)), g.inner.Y.BigInt(new(big.Int))
}

// SetPoint returns a new point with the given coordinates. The receiver is
// left untouched and the result is not validated; use IsOnCurve for that.
func (*G1) SetPoint(x, y *big.Int) curve.Point {
	p := &G1{}
	p.inner.X.SetBigInt(x)
	p.inner.Y.SetBigInt(y)
	return p
}

func (g *G1) IsOnCurve() bool {
	return g.inner.IsOnCurve() && g.inner.IsInSubGroup()
}

func (*G1) Type() string {
	return CurveType
}

func affine(p curve.Point) *bn254.G1Affine {
	return &p.(*G1).inner
}
