package auth

import "time"

// Config carries the lifecycle policy knobs.
type Config struct {
	// VerificationTTL bounds how long an emailed verification code stays
	// redeemable.
	VerificationTTL time.Duration

	// ResetTTL bounds how long a password-reset code stays redeemable.
	// Deliberately much shorter than VerificationTTL.
	ResetTTL time.Duration

	// RefreshTokenBytes is the entropy of each opaque refresh token.
	RefreshTokenBytes int
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		VerificationTTL:   24 * time.Hour,
		ResetTTL:          time.Hour,
		RefreshTokenBytes: 32,
	}
}

func (c Config) withDefaults() Config {
	if c.VerificationTTL <= 0 {
		c.VerificationTTL = 24 * time.Hour
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = time.Hour
	}
	if c.RefreshTokenBytes <= 0 {
		c.RefreshTokenBytes = 32
	}
	return c
}
