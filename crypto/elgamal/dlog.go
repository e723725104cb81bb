package elgamal

import (
	"fmt"
	"math"
	"math/big"

	"github.com/vocdoni/encrypted-survey/crypto/ecc"
)

// DLogTable holds the baby steps of the baby-step giant-step algorithm for
// a fixed generator and search bound. It is read only once built and can be
// shared by concurrent decryptions.
type DLogTable struct {
	max       uint64
	m         uint64
	babySteps map[string]uint64
	giant     ecc.Point // -m*G
}

// NewDLogTable precomputes the baby steps 0*G ... (m-1)*G with
// m = sqrt(maxMessage)+1.
func NewDLogTable(G ecc.Point, maxMessage uint64) *DLogTable {
	m := uint64(math.Sqrt(float64(maxMessage))) + 1
	t := &DLogTable{
		max:       maxMessage,
		m:         m,
		babySteps: make(map[string]uint64, m),
	}
	babyStep := G.New()
	babyStep.SetZero()
	for j := uint64(0); j < m; j++ {
		t.babySteps[babyStep.String()] = j
		babyStep.Add(babyStep, G)
	}
	t.giant = G.New()
	t.giant.ScalarMult(G, new(big.Int).SetUint64(m))
	t.giant.Neg(t.giant)
	return t
}

// Max returns the largest value the table can solve for.
func (t *DLogTable) Max() uint64 {
	return t.max
}

// Solve returns x such that M = x*G and x <= Max().
func (t *DLogTable) Solve(M ecc.Point) (*big.Int, error) {
	giantStep := M.New()
	giantStep.Set(M)
	for i := uint64(0); i <= t.m; i++ {
		if j, found := t.babySteps[giantStep.String()]; found {
			x := i*t.m + j
			if x > t.max {
				break
			}
			return new(big.Int).SetUint64(x), nil
		}
		giantStep.Add(giantStep, t.giant)
	}
	return nil, fmt.Errorf("failed to compute discrete logarithm using Baby-Step Giant-Step algorithm")
}
