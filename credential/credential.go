// Package credential implements the user decryption credential: an
// ephemeral key pair whose public half is authorized, for a bounded time
// window and a set of contracts, by an EIP-712 signature of the user.
// Credentials are kept in a Cache so users sign once per window.
package credential

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vocdoni/encrypted-survey/crypto/ethereum"
	"github.com/vocdoni/encrypted-survey/types"
)

const (
	// PrimaryType is the EIP-712 primary type signed by users.
	PrimaryType = "UserDecryptRequestVerification"
	// DefaultDurationDays is the validity window requested by default.
	DefaultDurationDays = 10
	// MaxDurationDays is the longest validity window accepted.
	MaxDurationDays = 365
	// maxClockSkew tolerates start timestamps slightly in the future.
	maxClockSkew = 5 * time.Minute
)

var (
	ErrInvalidSignature   = errors.New("credential signature does not match the user")
	ErrExpired            = errors.New("credential expired")
	ErrNotYetValid        = errors.New("credential not valid yet")
	ErrContractNotCovered = errors.New("contract not covered by the credential")
	ErrInvalidCredential  = errors.New("invalid credential")
)

// Domain is the EIP-712 domain of the decryption service.
type Domain struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ChainID           uint64         `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
}

// Authorization is the public part of a credential, the one presented to the
// decryption service.
type Authorization struct {
	PublicKey         types.HexBytes   `json:"publicKey"`
	Signature         types.HexBytes   `json:"signature"`
	ContractAddresses []common.Address `json:"contractAddresses"`
	UserAddress       common.Address   `json:"userAddress"`
	StartTimestamp    int64            `json:"startTimestamp"`
	DurationDays      uint32           `json:"durationDays"`
}

// Credential is an Authorization together with the ephemeral private key
// able to open the values sealed to PublicKey. It never leaves the client.
type Credential struct {
	Authorization
	PrivateKey *types.BigInt `json:"privateKey"`
}

// TypedData returns the EIP-712 payload the user signs to issue a.
func (a *Authorization) TypedData(d Domain) apitypes.TypedData {
	contracts := make([]any, len(a.ContractAddresses))
	for i, addr := range a.ContractAddresses {
		contracts[i] = addr.Hex()
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			PrimaryType: {
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
			},
		},
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              d.Name,
			Version:           d.Version,
			ChainId:           math.NewHexOrDecimal256(int64(d.ChainID)),
			VerifyingContract: d.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(a.PublicKey),
			"contractAddresses": contracts,
			"startTimestamp":    strconv.FormatInt(a.StartTimestamp, 10),
			"durationDays":      strconv.FormatUint(uint64(a.DurationDays), 10),
		},
	}
}

// Verify checks that the signature was produced by UserAddress over the
// typed data of a for domain d.
func (a *Authorization) Verify(d Domain) error {
	if len(a.PublicKey) == 0 || len(a.ContractAddresses) == 0 {
		return fmt.Errorf("%w: missing public key or contracts", ErrInvalidCredential)
	}
	if a.DurationDays == 0 || a.DurationDays > MaxDurationDays {
		return fmt.Errorf("%w: duration of %d days", ErrInvalidCredential, a.DurationDays)
	}
	signer, err := ethereum.AddrFromTypedDataSignature(a.TypedData(d), a.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer != a.UserAddress {
		return ErrInvalidSignature
	}
	return nil
}

// ExpiresAt returns the end of the validity window.
func (a *Authorization) ExpiresAt() time.Time {
	return time.Unix(a.StartTimestamp, 0).Add(time.Duration(a.DurationDays) * 24 * time.Hour)
}

// Expired reports whether now is past the validity window.
func (a *Authorization) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt())
}

// CheckWindow returns an error unless now is inside the validity window.
func (a *Authorization) CheckWindow(now time.Time) error {
	if time.Unix(a.StartTimestamp, 0).After(now.Add(maxClockSkew)) {
		return ErrNotYetValid
	}
	if a.Expired(now) {
		return ErrExpired
	}
	return nil
}

// Covers reports whether contract is one of the authorized contracts.
func (a *Authorization) Covers(contract common.Address) bool {
	for _, c := range a.ContractAddresses {
		if c == contract {
			return true
		}
	}
	return false
}
