package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// HandleSize is the size in bytes of a ciphertext handle.
const HandleSize = 32

// ErrInvalidHandle is returned when a value cannot be converted to a Handle.
var ErrInvalidHandle = errors.New("invalid ciphertext handle")

// Handle is an opaque reference to a ciphertext held by the encryption
// gateway. The all zero handle means "no contribution yet" and decrypts to 0.
type Handle [HandleSize]byte

// ZeroHandle is the canonical encrypted zero.
var ZeroHandle = Handle{}

// IsZero reports whether h is the canonical zero handle.
func (h Handle) IsZero() bool {
	return h == ZeroHandle
}

// Bytes returns a copy of the handle as a byte slice.
func (h Handle) Bytes() []byte {
	b := make([]byte, HandleSize)
	copy(b, h[:])
	return b
}

// BigInt returns the handle interpreted as a big endian unsigned integer.
func (h Handle) BigInt() *big.Int {
	return new(big.Int).SetBytes(h[:])
}

func (h Handle) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Handle) UnmarshalText(data []byte) error {
	parsed, err := HandleFromHex(string(data))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HandleFromBytes builds a handle from a byte slice of at most HandleSize
// bytes. Shorter inputs are left padded with zeros.
func HandleFromBytes(b []byte) (Handle, error) {
	var h Handle
	if len(b) > HandleSize {
		return h, fmt.Errorf("%w: %d bytes", ErrInvalidHandle, len(b))
	}
	copy(h[HandleSize-len(b):], b)
	return h, nil
}

// HandleFromHex parses a hexadecimal handle, with or without the 0x prefix.
func HandleFromHex(s string) (Handle, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrInvalidHandle, err)
	}
	return HandleFromBytes(b)
}

// HandleFromBigInt converts a non negative integer of at most 256 bits.
func HandleFromBigInt(i *big.Int) (Handle, error) {
	if i == nil || i.Sign() < 0 || i.BitLen() > 8*HandleSize {
		return Handle{}, fmt.Errorf("%w: %v", ErrInvalidHandle, i)
	}
	return HandleFromBytes(i.Bytes())
}

// ParseHandle converts any of the representations a handle can take on the
// wire: hex strings, decimal strings, byte slices or arrays, big integers,
// BigInt and values implementing fmt.Stringer. Anything else is rejected.
func ParseHandle(v any) (Handle, error) {
	switch t := v.(type) {
	case Handle:
		return t, nil
	case *Handle:
		if t == nil {
			return Handle{}, ErrInvalidHandle
		}
		return *t, nil
	case [HandleSize]byte:
		return Handle(t), nil
	case []byte:
		return HandleFromBytes(t)
	case HexBytes:
		return HandleFromBytes(t)
	case *big.Int:
		return HandleFromBigInt(t)
	case *BigInt:
		if t == nil {
			return Handle{}, ErrInvalidHandle
		}
		return HandleFromBigInt(t.MathBigInt())
	case string:
		return parseHandleString(t)
	case fmt.Stringer:
		return parseHandleString(t.String())
	default:
		return Handle{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidHandle, v)
	}
}

func parseHandleString(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return HandleFromHex(s)
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	return HandleFromBigInt(i)
}
