// Package auth implements the account lifecycle: registration, email
// verification, login, token refresh with rotation, logout, and password
// reset. It composes the account directory, the password hasher, the
// session token codec, and the event publisher behind one service type.
package auth
