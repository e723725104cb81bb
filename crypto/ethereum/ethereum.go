// Package ethereum provides secp256k1 signing keys compatible with Ethereum
// wallets: personal message signatures (EIP-191) and typed structured data
// signatures (EIP-712), plus the address recovery for both.
package ethereum

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vocdoni/encrypted-survey/types"
)

const (
	// SignatureLength is the size of an ECDSA signature in hexString format
	SignatureLength = ethcrypto.SignatureLength
	// PubKeyLengthBytes is the size of a Public Key
	PubKeyLengthBytes = 33
	// SigningPrefix is the prefix added when hashing
	SigningPrefix = "\u0019Ethereum Signed Message:\n"
)

// ErrNoPrivateKey is returned when signing with keys that only hold a public
// key.
var ErrNoPrivateKey = errors.New("no private key available")

// SignKeys represents an ECDSA pair of keys for signing.
type SignKeys struct {
	Public  ecdsa.PublicKey
	Private ecdsa.PrivateKey
}

// NewSignKeys creates an ECDSA pair of keys for signing
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate generates new keys
func (k *SignKeys) Generate() error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return err
	}
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// AddHexKey imports a private hex key, with or without the 0x prefix.
func (k *SignKeys) AddHexKey(privHex string) error {
	key, err := ethcrypto.ToECDSA(common.FromHex(privHex))
	if err != nil {
		return err
	}
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// HexString returns the public compressed and private keys as hex strings
func (k *SignKeys) HexString() (string, string) {
	pubHexComp := fmt.Sprintf("%x", ethcrypto.CompressPubkey(&k.Public))
	privHex := fmt.Sprintf("%x", ethcrypto.FromECDSA(&k.Private))
	return pubHexComp, privHex
}

// PublicKey returns the compressed public key
func (k *SignKeys) PublicKey() types.HexBytes {
	return ethcrypto.CompressPubkey(&k.Public)
}

// Address returns the SignKeys ethereum address
func (k *SignKeys) Address() common.Address {
	return ethcrypto.PubkeyToAddress(k.Public)
}

// AddressString returns the ethereum Address as string
func (k *SignKeys) AddressString() string {
	return ethcrypto.PubkeyToAddress(k.Public).String()
}

// SignEthereum signs a message. Message is a normal string (no HexString nor a Hash)
func (k *SignKeys) SignEthereum(message []byte) ([]byte, error) {
	if k.Private.D == nil {
		return nil, ErrNoPrivateKey
	}
	signature, err := ethcrypto.Sign(Hash(message), &k.Private)
	if err != nil {
		return nil, err
	}
	return signature, nil
}

// SignTypedData signs EIP-712 typed structured data.
func (k *SignKeys) SignTypedData(typedData apitypes.TypedData) ([]byte, error) {
	if k.Private.D == nil {
		return nil, ErrNoPrivateKey
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("cannot hash typed data: %w", err)
	}
	return ethcrypto.Sign(hash, &k.Private)
}

// AddrFromPublicKey standaolone function to obtain the Ethereum address from a ECDSA public key.
func AddrFromPublicKey(pub []byte) (common.Address, error) {
	var pubHex *ecdsa.PublicKey
	var err error
	if len(pub) == PubKeyLengthBytes {
		pubHex, err = ethcrypto.DecompressPubkey(pub)
	} else {
		pubHex, err = ethcrypto.UnmarshalPubkey(pub)
	}
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pubHex), nil
}

// AddrFromSignature recovers the Ethereum address that created the signature of a message.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	return addrFromHashSignature(Hash(message), signature)
}

// AddrFromTypedDataSignature recovers the address that signed typedData.
func AddrFromTypedDataSignature(typedData apitypes.TypedData, signature []byte) (common.Address, error) {
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot hash typed data: %w", err)
	}
	return addrFromHashSignature(hash, signature)
}

func addrFromHashSignature(hash, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature length not correct (%d)", len(signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	// wallets produce v in {27, 28}, go-ethereum expects {0, 1}
	if sig[64] > 1 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, fmt.Errorf("invalid signature recovery id %d", signature[64])
	}
	pubKey, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

// Hash data adding Ethereum prefix
func Hash(data []byte) []byte {
	payloadToSign := fmt.Sprintf("%s%d%s", SigningPrefix, len(data), data)
	return HashRaw([]byte(payloadToSign))
}

// HashRaw hashes data with no prefix
func HashRaw(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}
