package ecc

import (
	"math/big"
)

// Point defines the common operations that can be performed on elliptic
// curve group elements. It represents the affine coordinates of a point and
// provides methods for arithmetic, serialization and comparison.
type Point interface {
	// New returns a new point on the same curve.
	New() Point

	// Order returns the order of the group.
	Order() *big.Int

	// Add sets the receiver to a + b. The receiver may alias a or b.
	Add(a, b Point)

	// ScalarMult sets the receiver to scalar * a.
	ScalarMult(a Point, scalar *big.Int)

	// ScalarBaseMult sets the receiver to scalar * G.
	ScalarBaseMult(scalar *big.Int)

	// Marshal serializes the point into a byte slice.
	Marshal() []byte

	// Unmarshal deserializes a byte slice produced by Marshal.
	Unmarshal(buf []byte) error

	// Equal reports whether both points are the same group element.
	Equal(a Point) bool

	// Neg sets the receiver to -a.
	Neg(a Point)

	// SetZero sets the receiver to the identity element.
	SetZero()

	// Set copies a into the receiver.
	Set(a Point)

	// SetGenerator sets the receiver to the group generator.
	SetGenerator()

	// String returns a representation that is unique per group element.
	String() string

	// Point returns the affine X and Y coordinates.
	Point() (*big.Int, *big.Int)

	// SetPoint returns a new point with the given affine coordinates.
	SetPoint(x, y *big.Int) Point

	// IsOnCurve reports whether the point belongs to the prime order group.
	IsOnCurve() bool

	// Type returns the curve identifier.
	Type() string
}
