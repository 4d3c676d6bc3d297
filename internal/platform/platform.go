// Package platform binds the patent interfaces that talk to the host:
// wall clock, page digests and run identifiers.
package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/patent-collector/internal/patent"
)

var (
	_ patent.Clock       = SystemClock{}
	_ patent.Hasher      = PageHasher{}
	_ patent.IDGenerator = RunIDs{}
)

// SystemClock implements patent.Clock in UTC.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// PageHasher implements patent.Hasher with SHA-256 hex digests.
type PageHasher struct{}

// Hash hashes the input and returns a hex digest.
func (PageHasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// RunIDs implements patent.IDGenerator with time-ordered UUIDv7 strings.
type RunIDs struct{}

// NewID returns a UUIDv7 string.
func (RunIDs) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
