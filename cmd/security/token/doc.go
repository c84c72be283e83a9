// Package token implements the session token codec and the random
// code/token generators used by the credential lifecycle.
//
// Session tokens are a small claims record encrypted with AES-256-CBC under
// a key derived from the injected server secret via scrypt. The wire format
// is base64(hex(iv) + ":" + hex(ciphertext)) and is kept byte-compatible
// with the deployment this service replaces, including the fixed scrypt
// salt (see Codec for the recorded trade-off).
//
// Random output comes exclusively from crypto/rand: short decimal
// verification codes drawn uniformly, and high-entropy hex tokens for
// password reset and refresh credentials.
package token
