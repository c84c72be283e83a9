package password

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls plaintext validation bounds.
type Policy struct {
	MinLength int
	MaxLength int
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns a baseline suitable for interactive logins.
// Parallelism is clamped to [1..4] to keep container resource usage predictable.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above; safe conversion.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 8,
			MaxLength: 256,
		},
	}
}

// FromEnv loads config from environment variables, falling back to defaults.
//
// Env surface:
//   - LQ_PASSWORD_MIN_LEN
//   - LQ_PASSWORD_MAX_LEN
//   - LQ_ARGON2_MEMORY_KIB
//   - LQ_ARGON2_ITERATIONS
//   - LQ_ARGON2_PARALLELISM
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("LQ_PASSWORD_MIN_LEN"); ok {
		n, err := envInt(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("LQ_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("LQ_PASSWORD_MAX_LEN"); ok {
		n, err := envInt(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("LQ_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := os.LookupEnv("LQ_ARGON2_MEMORY_KIB"); ok {
		n, err := envInt(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Config{}, fmt.Errorf("LQ_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Params.MemoryKiB = uint32(n) // #nosec G115 -- bounded above; safe conversion.
	}

	if v, ok := os.LookupEnv("LQ_ARGON2_ITERATIONS"); ok {
		n, err := envInt(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("LQ_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Params.Iterations = uint32(n) // #nosec G115 -- bounded above; safe conversion.
	}

	if v, ok := os.LookupEnv("LQ_ARGON2_PARALLELISM"); ok {
		n, err := envInt(v, 1, 64)
		if err != nil {
			return Config{}, fmt.Errorf("LQ_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Params.Parallelism = uint8(n) // #nosec G115 -- bounded above; safe conversion.
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

// Validate checks a plaintext against the policy before hashing.
func (c Config) Validate(plain string) error {
	if len(plain) < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if len(plain) > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	return nil
}

func envInt(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	if n < minVal || n > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return n, nil
}
