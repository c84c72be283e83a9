package directory

import "strings"

// NormalizeEmail performs case-insensitive canonicalization. All lookups
// and uniqueness checks run against the normalized form.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
