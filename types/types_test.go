package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
)

func TestParseHandle(t *testing.T) {
	c := qt.New(t)
	want := Handle{}
	want[HandleSize-2] = 0x01
	want[HandleSize-1] = 0x02 // 258

	for _, v := range []any{
		want,
		&want,
		[HandleSize]byte(want),
		[]byte{0x01, 0x02},
		HexBytes{0x01, 0x02},
		big.NewInt(258),
		NewInt(258),
		"0x0102",
		"0X102",
		" 258 ",
		HexBytes{0x01, 0x02}.String(),
	} {
		h, err := ParseHandle(v)
		c.Assert(err, qt.IsNil, qt.Commentf("%T %v", v, v))
		c.Assert(h, qt.Equals, want, qt.Commentf("%T %v", v, v))
	}

	var nilHandle *Handle
	var nilBig *BigInt
	for _, v := range []any{
		nilHandle,
		nilBig,
		make([]byte, HandleSize+1),
		big.NewInt(-1),
		new(big.Int).Lsh(big.NewInt(1), 256),
		"0xzz",
		"twelve",
		3.14,
		nil,
	} {
		_, err := ParseHandle(v)
		c.Assert(err, qt.ErrorIs, ErrInvalidHandle, qt.Commentf("%T %v", v, v))
	}
}

func TestHandleZero(t *testing.T) {
	c := qt.New(t)
	c.Assert(ZeroHandle.IsZero(), qt.IsTrue)
	c.Assert(ZeroHandle.BigInt().Sign(), qt.Equals, 0)

	h, err := ParseHandle("0")
	c.Assert(err, qt.IsNil)
	c.Assert(h.IsZero(), qt.IsTrue)

	h, err = HandleFromBigInt(big.NewInt(7))
	c.Assert(err, qt.IsNil)
	c.Assert(h.IsZero(), qt.IsFalse)
	c.Assert(h.BigInt().Int64(), qt.Equals, int64(7))

	b := h.Bytes()
	b[HandleSize-1] = 0
	c.Assert(h.BigInt().Int64(), qt.Equals, int64(7))
}

func TestHandleText(t *testing.T) {
	c := qt.New(t)
	h, err := HandleFromHex("ff")
	c.Assert(err, qt.IsNil)
	c.Assert(h.String(), qt.Equals, "0x"+"00000000000000000000000000000000000000000000000000000000000000ff")

	opt := SurveyOption{Index: 2, Label: "maybe", EncryptedTotal: h}
	data, err := json.Marshal(opt)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, `"encryptedTotal":"`+h.String()+`"`)

	var decoded SurveyOption
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(decoded, qt.DeepEquals, opt)

	c.Assert(json.Unmarshal([]byte(`{"encryptedTotal":"0xnothex"}`), &decoded), qt.ErrorIs, ErrInvalidHandle)
}

func TestBigInt(t *testing.T) {
	c := qt.New(t)
	total := new(BigInt).SetUint64(1 << 40)
	values := map[string]*BigInt{"total": total}

	data, err := json.Marshal(values)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `{"total":"1099511627776"}`)
	var fromJSON map[string]*BigInt
	c.Assert(json.Unmarshal(data, &fromJSON), qt.IsNil)
	c.Assert(fromJSON["total"].Equal(total), qt.IsTrue)

	data, err = cbor.Marshal(values)
	c.Assert(err, qt.IsNil)
	var fromCBOR map[string]*BigInt
	c.Assert(cbor.Unmarshal(data, &fromCBOR), qt.IsNil)
	c.Assert(fromCBOR["total"].Equal(total), qt.IsTrue)

	var hexValue BigInt
	c.Assert(hexValue.UnmarshalText([]byte("0x10")), qt.IsNil)
	c.Assert(hexValue.String(), qt.Equals, "16")
	c.Assert(hexValue.UnmarshalText([]byte("sixteen")), qt.ErrorMatches, "wrong format.*")

	c.Assert((*BigInt)(nil).Equal(nil), qt.IsTrue)
	c.Assert(total.Equal(nil), qt.IsFalse)
}

func TestHexBytes(t *testing.T) {
	c := qt.New(t)
	data, err := json.Marshal(HexBytes{0xde, 0xad})
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `"0xdead"`)

	var b HexBytes
	c.Assert(json.Unmarshal([]byte(`"BEEF"`), &b), qt.IsNil)
	c.Assert(b.Bytes(), qt.DeepEquals, []byte{0xbe, 0xef})
	c.Assert(json.Unmarshal([]byte(`"0xabc"`), &b), qt.ErrorMatches, "invalid hex string.*")
	c.Assert(b.FromString("0x"), qt.IsNil)
	c.Assert(b, qt.HasLen, 0)
}

func TestSurveyStateCBOR(t *testing.T) {
	c := qt.New(t)
	h, err := HandleFromBigInt(big.NewInt(99))
	c.Assert(err, qt.IsNil)
	state := &SurveyState{
		Address:    common.HexToAddress("0x01"),
		Owner:      common.HexToAddress("0x02"),
		Nonce:      4,
		Question:   "Lunch?",
		Options:    []SurveyOption{{Index: 0, Label: "pizza", EncryptedTotal: h}, {Index: 1, Label: "sushi"}},
		Configured: true,
		Voters:     []common.Address{common.HexToAddress("0x03")},
		Grants:     []AccessGrant{{Grantee: common.HexToAddress("0x04"), Option: 1}},
		EventSeq:   3,
	}
	data, err := cbor.Marshal(state)
	c.Assert(err, qt.IsNil)
	decoded := &SurveyState{}
	c.Assert(cbor.Unmarshal(data, decoded), qt.IsNil)
	c.Assert(decoded, qt.DeepEquals, state)

	info := &SurveyInfo{Options: state.Options}
	c.Assert(info.OptionLabels(), qt.DeepEquals, []string{"pizza", "sushi"})
}
