package auth

import "errors"

// Sentinel errors returned by Service operations. The HTTP layer maps
// these to status codes; the messages never reach clients verbatim.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailNotVerified rejects logins before email verification.
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrAccountInactive rejects any operation on a deactivated account.
	ErrAccountInactive = errors.New("account inactive")

	// ErrEmailTaken reports a registration against an existing email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrAlreadyVerified rejects re-verification of a verified account.
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrInvalidOrExpiredCode covers unknown, mismatched, consumed and
	// expired one-time codes, deliberately indistinguishable.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")

	// ErrInvalidRefreshToken covers unknown and already-rotated refresh
	// tokens.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)
