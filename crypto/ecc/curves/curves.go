// Package curves maps curve identifiers, as found in configuration files and
// serialized keys, to their ecc.Point implementations.
package curves

import (
	"fmt"

	"github.com/vocdoni/encrypted-survey/crypto/ecc"
	bjj "github.com/vocdoni/encrypted-survey/crypto/ecc/bjj_iden3"
	"github.com/vocdoni/encrypted-survey/crypto/ecc/bn254"
)

const (
	CurveTypeBabyJubJubIden3 = bjj.CurveType
	CurveTypeBN254           = bn254.CurveType

	// CurveTypeBabyJubJub is the curve used when none is configured.
	CurveTypeBabyJubJub = CurveTypeBabyJubJubIden3
)

var constructors = map[string]func() ecc.Point{
	CurveTypeBabyJubJubIden3: bjj.New,
	CurveTypeBN254:           func() ecc.Point { return &bn254.G1{} },
}

// New returns the identity element of curveType. It panics on unsupported
// curves; check with IsValid first when the type comes from user input.
func New(curveType string) ecc.Point {
	newPoint, ok := constructors[curveType]
	if !ok {
		panic(fmt.Sprintf("unsupported curve type: %s", curveType))
	}
	return newPoint()
}

// IsValid reports whether curveType is supported by New.
func IsValid(curveType string) bool {
	_, ok := constructors[curveType]
	return ok
}

// Curves returns the supported curve types, the default one first.
func Curves() []string {
	return []string{CurveTypeBabyJubJubIden3, CurveTypeBN254}
}
