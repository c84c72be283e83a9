package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// VerificationCodeDigits is the length of human-typable verification codes.
const VerificationCodeDigits = 6

var verificationCodeSpace = big.NewInt(1_000_000)

// VerificationCode returns a 6-digit decimal code drawn uniformly from
// [0, 10^6). Leading zeros are preserved; the code space is exactly one
// million values.
func VerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, verificationCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", VerificationCodeDigits, n), nil
}

// OpaqueTokenHex returns nBytes of cryptographically secure randomness,
// hex-encoded. Used for password-reset codes (16 bytes) and refresh
// tokens (32 bytes).
func OpaqueTokenHex(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
