// Package bjj implements ecc.Point over the prime order subgroup of
// BabyJubJub, backed by go-iden3-crypto. It is the default curve of the
// encryption gateway.
package bjj

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	babyjubjub "github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/iden3/go-iden3-crypto/constants"

	curve "github.com/vocdoni/encrypted-survey/crypto/ecc"
	"github.com/vocdoni/encrypted-survey/types"
)

const CurveType = "bjj_iden3"

// BJJ is a BabyJubJub point in affine coordinates. The identity is (0, 1).
type BJJ struct {
	inner *babyjubjub.Point
}

// New returns the identity element.
func New() curve.Point {
	return &BJJ{inner: babyjubjub.NewPoint()}
}

func (*BJJ) New() curve.Point {
	return New()
}

func (*BJJ) Order() *big.Int {
	return babyjubjub.SubOrder
}

func (g *BJJ) Add(a, b curve.Point) {
	sum := babyjubjub.NewPoint().Projective()
	g.inner = sum.Add(point(a).Projective(), point(b).Projective()).Affine()
}

func (g *BJJ) ScalarMult(a curve.Point, scalar *big.Int) {
	g.inner = babyjubjub.NewPoint().Mul(scalar, point(a))
}

func (g *BJJ) ScalarBaseMult(scalar *big.Int) {
	g.inner = babyjubjub.NewPoint().Mul(scalar, babyjubjub.B8)
}

// Marshal returns the 32 byte compressed encoding of the point.
func (g *BJJ) Marshal() []byte {
	b := g.inner.Compress()
	return b[:]
}

func (g *BJJ) Unmarshal(buf []byte) error {
	var compressed [32]byte
	if len(buf) != len(compressed) {
		return fmt.Errorf("bjj: invalid compressed point length %d", len(buf))
	}
	copy(compressed[:], buf)
	p, err := babyjubjub.NewPoint().Decompress(compressed)
	if err != nil {
		return fmt.Errorf("bjj: %w", err)
	}
	g.inner = p
	return nil
}

func (g *BJJ) MarshalJSON() ([]byte, error) {
	return json.Marshal([]*types.BigInt{(*types.BigInt)(g.inner.X), (*types.BigInt)(g.inner.Y)})
}

func (g *BJJ) UnmarshalJSON(buf []byte) error {
	var coords []*types.BigInt
	if err := json.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 || coords[0] == nil || coords[1] == nil {
		return fmt.Errorf("bjj: expected 2 coordinates, got %d", len(coords))
	}
	return g.setCoords(coords[0].MathBigInt(), coords[1].MathBigInt())
}

func (g *BJJ) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal([]*big.Int{g.inner.X, g.inner.Y})
}

func (g *BJJ) UnmarshalCBOR(buf []byte) error {
	var coords []*big.Int
	if err := cbor.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("bjj: expected 2 coordinates, got %d", len(coords))
	}
	return g.setCoords(coords[0], coords[1])
}

// setCoords sets the coordinates of g, rejecting points outside of the
// prime order subgroup.
func (g *BJJ) setCoords(x, y *big.Int) error {
	p := &babyjubjub.Point{X: new(big.Int).Set(x), Y: new(big.Int).Set(y)}
	if !p.InCurve() || !p.InSubGroup() {
		return fmt.Errorf("bjj: point (%s, %s) is not in the subgroup", x, y)
	}
	g.inner = p
	return nil
}

func (g *BJJ) Equal(a curve.Point) bool {
	ax, ay := a.Point()
	return g.inner.X.Cmp(ax) == 0 && g.inner.Y.Cmp(ay) == 0
}

// Neg sets g to -a = (-x, y).
func (g *BJJ) Neg(a curve.Point) {
	ax, ay := a.Point()
	x := new(big.Int).Neg(ax)
	g.inner = &babyjubjub.Point{X: x.Mod(x, constants.Q), Y: new(big.Int).Set(ay)}
}

func (g *BJJ) SetZero() {
	g.inner = babyjubjub.NewPoint()
}

func (g *BJJ) Set(a curve.Point) {
	g.inner = copyPoint(point(a))
}

func (g *BJJ) SetGenerator() {
	g.inner = copyPoint(babyjubjub.B8)
}

func (g *BJJ) String() string {
	return g.inner.X.String() + "," + g.inner.Y.String()
}

func (g *BJJ) Point() (*big.Int, *big.Int) {
	return g.inner.X, g.inner.Y
}

// SetPoint returns a new point with the given coordinates without
// validating them.
func (*BJJ) SetPoint(x, y *big.Int) curve.Point {
	return &BJJ{inner: &babyjubjub.Point{X: new(big.Int).Set(x), Y: new(big.Int).Set(y)}}
}

func (g *BJJ) IsOnCurve() bool {
	return g.inner.InCurve() && g.inner.InSubGroup()
}

func (*BJJ) Type() string {
	return CurveType
}

func point(p curve.Point) *babyjubjub.Point {
	return p.(*BJJ).inner
}

func copyPoint(p *babyjubjub.Point) *babyjubjub.Point {
	return &babyjubjub.Point{X: new(big.Int).Set(p.X), Y: new(big.Int).Set(p.Y)}
}
