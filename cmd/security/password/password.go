package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = 19 // argon2.Version (0x13)

// Hash hashes a plaintext with Argon2id and a fresh random salt.
// The same plaintext produces a different digest on every call.
func (c Config) Hash(plain string) (string, error) {
	if err := c.Validate(plain); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(plain),
		salt,
		c.Params.Iterations,
		c.Params.MemoryKiB,
		c.Params.Parallelism,
		c.Params.KeyLength,
	)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		c.Params.MemoryKiB,
		c.Params.Iterations,
		c.Params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify checks whether plain matches the encoded digest.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed/unsupported digests.
func (c Config) Verify(encoded, plain string) (bool, error) {
	params, salt, expected, err := decode(encoded)
	if err != nil {
		return false, err
	}

	// Anti-DoS boundary: refuse attacker-controlled digests whose cost
	// parameters exceed the configured maxima by a large margin.
	if !withinBounds(params, c.Params) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey(
		[]byte(plain),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)), // #nosec G115 -- expected length is bounded by decode(); safe conversion.
	)

	if subtle.ConstantTimeCompare(key, expected) == 1 {
		return true, nil
	}
	return false, nil
}

func withinBounds(got, limits Argon2idParams) bool {
	// Allow digests produced with older/smaller settings, reject wildly larger ones.
	if got.MemoryKiB > limits.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limits.Iterations*2 {
		return false
	}
	if got.Parallelism > limits.Parallelism*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

// decode parses the encoded digest and returns params, salt and expected key.
func decode(encoded string) (Argon2idParams, []byte, []byte, error) {
	// Expected: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != "v=19" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	params := Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par), // #nosec G115 -- par <= 255 checked above; safe conversion.
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}
	return params, salt, key, nil
}
