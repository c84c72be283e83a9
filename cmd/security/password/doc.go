// Package password implements the credential hasher for the user service.
//
// Hashing uses Argon2id with a PHC-style encoded string format:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<key_b64>
//
// Every call salts independently, so the same plaintext never produces the
// same digest twice. Verification compares in constant time and treats the
// stored digest as untrusted input: malformed digests fail with
// ErrInvalidHash, and digests whose cost parameters exceed the configured
// bounds are refused before any key derivation happens.
package password
