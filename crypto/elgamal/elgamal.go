// Package elgamal implements additively homomorphic ElGamal over the curves
// of crypto/ecc. A message m is encoded as m*G, so adding two ciphertexts
// adds their plaintexts and decrypting requires solving a discrete logarithm
// bounded by the largest expected total.
package elgamal

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/encrypted-survey/crypto/ecc"
)

// GenerateKey returns a new key pair on curve: a private scalar d in
// [1, order) and the public point d*G.
func GenerateKey(curve ecc.Point) (ecc.Point, *big.Int, error) {
	d, err := ecc.RandomScalar(curve)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot generate private key: %w", err)
	}
	publicKey := curve.New()
	publicKey.ScalarBaseMult(d)
	return publicKey, d, nil
}

// encrypt returns C1 = k*G and C2 = m*G + k*P. The message is reduced
// modulo the group order.
func encrypt(publicKey ecc.Point, msg, k *big.Int) (c1, c2 ecc.Point) {
	c1 = publicKey.New()
	c1.ScalarBaseMult(k)

	shared := publicKey.New()
	shared.ScalarMult(publicKey, k)
	c2 = publicKey.New()
	c2.ScalarBaseMult(new(big.Int).Mod(msg, publicKey.Order()))
	c2.Add(c2, shared)
	return c1, c2
}

// DecryptPoint returns the encoded message point M = C2 - d*C1.
func DecryptPoint(privateKey *big.Int, c1, c2 ecc.Point) ecc.Point {
	mask := c2.New()
	mask.ScalarMult(c1, privateKey)
	mask.Neg(mask)

	M := c2.New()
	M.Add(c2, mask)
	return M
}

// checkRandomness reports whether k is the randomness behind C1, that is
// whether C1 == k*G.
func checkRandomness(c1 ecc.Point, k *big.Int) bool {
	if k == nil || k.Sign() <= 0 || k.Cmp(c1.Order()) >= 0 {
		return false
	}
	expected := c1.New()
	expected.ScalarBaseMult(k)
	return expected.Equal(c1)
}
