package token

import "errors"

var (
	// ErrInvalidOrExpiredToken is the single failure surfaced by Decode.
	// Tampered, malformed and expired tokens are deliberately
	// indistinguishable to callers to avoid oracle behavior.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrConfig reports an unusable codec configuration (missing/short secret).
	ErrConfig = errors.New("invalid token codec config")
)
