// Package id provides identifier generation for editor sessions.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// Generate creates a new unique session ID.
// Format: sess-<timestamp>-<random>
// Example: sess-1701432000-a1b2c3d4e5f6
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		// Fallback to nanosecond timestamp if crypto/rand fails
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("sess-%d-%s", timestamp, hex.EncodeToString(random))
}

var validID = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Valid reports whether a client-supplied session ID is acceptable.
// IDs end up in log lines and file names, so the alphabet is restricted.
func Valid(id string) bool {
	return validID.MatchString(id) && id != "." && id != ".."
}
