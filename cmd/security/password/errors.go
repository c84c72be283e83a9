package password

import "errors"

// Public, stable errors for callers.
var (
	// ErrPasswordTooShort rejects plaintexts below the policy minimum.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong rejects plaintexts above the policy maximum.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrInvalidHash reports a malformed or unsupported stored digest.
	// This is a server integrity fault, never a wrong-password signal.
	ErrInvalidHash = errors.New("malformed password digest")
)
