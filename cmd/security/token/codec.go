package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/crypto/scrypt"
)

// Claims is the identity payload embedded in a session token.
// JSON keys match the wire format of the deployment this service replaces,
// so tokens remain mutually decodable across the cutover.
type Claims struct {
	AccountID string `json:"userId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	// IssuedAt is epoch milliseconds; it is the token's only expiry mechanism.
	IssuedAt int64 `json:"timestamp"`
}

// Key derivation parameters. The salt is static and application-wide: a
// recognized weakness carried for wire compatibility (every deployment
// sharing a secret derives the same key). A per-deployment salt or an
// AEAD construction is the follow-up once the old tokens age out.
const (
	kdfSalt = "salt"
	kdfN    = 1 << 14 // 16384
	kdfR    = 8
	kdfP    = 1
	keyLen  = 32

	minSecretLen = 16
)

// DefaultMaxAge is the session token validity window.
const DefaultMaxAge = 24 * time.Hour

// Codec encrypts and decrypts session token claims. It is stateless after
// construction and safe for concurrent use. The server secret is injected
// exactly once here; nothing else in the process reads it.
type Codec struct {
	key    []byte
	maxAge time.Duration
}

// NewCodec derives the AES key from secret and returns a ready codec.
// maxAge <= 0 selects DefaultMaxAge.
func NewCodec(secret string, maxAge time.Duration) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minSecretLen {
		return nil, ErrConfig
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	// scrypt is deliberately slow; derive once at startup, not per token.
	key, err := scrypt.Key([]byte(secret), []byte(kdfSalt), kdfN, kdfR, kdfP, keyLen)
	if err != nil {
		return nil, ErrConfig
	}

	return &Codec{key: key, maxAge: maxAge}, nil
}

// MaxAge returns the validity window applied during Decode.
func (c *Codec) MaxAge() time.Duration { return c.maxAge }

// Encode encrypts claims into a transportable token.
// A fresh random IV is drawn per call, so equal claims yield distinct tokens.
func (c *Codec) Encode(claims Claims) (string, error) {
	if err := validateClaims(claims); err != nil {
		return "", err
	}

	plain, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	framed := hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct)
	return base64.StdEncoding.EncodeToString([]byte(framed)), nil
}

// Decode reverses Encode and enforces the validity window against now.
// Every failure mode (parse, padding, tamper, missing claims, expiry)
// collapses to ErrInvalidOrExpiredToken.
func (c *Codec) Decode(tok string, now time.Time) (Claims, error) {
	framed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(tok))
	if err != nil {
		return Claims{}, ErrInvalidOrExpiredToken
	}

	ivHex, ctHex, ok := strings.Cut(string(framed), ":")
	if !ok {
		return Claims{}, ErrInvalidOrExpiredToken
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return Claims{}, ErrInvalidOrExpiredToken
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return Claims{}, ErrInvalidOrExpiredToken
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return Claims{}, ErrInvalidOrExpiredToken
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, ok = pkcs7Unpad(plain, aes.BlockSize)
	if !ok {
		return Claims{}, ErrInvalidOrExpiredToken
	}

	var claims Claims
	if err := json.Unmarshal(plain, &claims); err != nil {
		return Claims{}, ErrInvalidOrExpiredToken
	}
	if validateClaims(claims) != nil {
		return Claims{}, ErrInvalidOrExpiredToken
	}

	if now.UnixMilli()-claims.IssuedAt > c.maxAge.Milliseconds() {
		return Claims{}, ErrInvalidOrExpiredToken
	}

	return claims, nil
}

func validateClaims(c Claims) error {
	if c.AccountID == "" || c.Email == "" || c.Role == "" || c.IssuedAt <= 0 {
		return ErrInvalidOrExpiredToken
	}
	return nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, bool) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, false
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
