package directory

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a new account ID (26-char ULID).
// ULIDs are lexicographically sortable and safe to mint concurrently.
func NewID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
