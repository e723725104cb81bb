package types

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int wrapper which marshals JSON to a string representation
// of the big number.
type BigInt big.Int

// NewInt returns a BigInt holding x.
func NewInt(x int64) *BigInt {
	return (*BigInt)(big.NewInt(x))
}

func (i *BigInt) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *BigInt) UnmarshalText(data []byte) error {
	if i == nil {
		return fmt.Errorf("cannot unmarshal into nil BigInt")
	}
	if _, ok := i.MathBigInt().SetString(string(data), 0); !ok {
		return fmt.Errorf("wrong format for bigInt: %q", data)
	}
	return nil
}

func (i *BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(i.MathBigInt())
}

func (i *BigInt) UnmarshalCBOR(data []byte) error {
	bi := new(big.Int)
	if err := cbor.Unmarshal(data, bi); err != nil {
		return err
	}
	*i = BigInt(*bi)
	return nil
}

// String returns the decimal representation of the big number.
func (i *BigInt) String() string {
	return i.MathBigInt().String()
}

// MathBigInt converts b to a math/big *Int.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

// SetUint64 sets the value of i to x and returns i.
func (i *BigInt) SetUint64(x uint64) *BigInt {
	return (*BigInt)(i.MathBigInt().SetUint64(x))
}

// SetBigInt sets the value of i to x and returns i.
func (i *BigInt) SetBigInt(x *big.Int) *BigInt {
	return (*BigInt)(i.MathBigInt().Set(x))
}

// Equal helps us with go-cmp.
func (i *BigInt) Equal(j *BigInt) bool {
	if i == nil || j == nil {
		return (i == nil) == (j == nil)
	}
	return i.MathBigInt().Cmp(j.MathBigInt()) == 0
}
