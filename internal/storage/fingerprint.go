// File path: internal/storage/fingerprint.go
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Fingerprint derives a stable hash over the content of one or more
// readers. Identical content always yields the same workspace key, so a
// repeated upload of the same file pair lands in the same directory, while
// changed content gets a fresh one.
func Fingerprint(readers ...io.Reader) (string, error) {
	hasher := sha256.New()
	for _, r := range readers {
		if _, err := io.Copy(hasher, r); err != nil {
			return "", &StorageError{Op: "fingerprint", Err: err}
		}
		// Separator guards against boundary shifts between streams.
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// FingerprintStrings hashes string parts the same way Fingerprint hashes
// streams. Remote mode keys workspaces by (username, dataset) with it.
func FingerprintStrings(parts ...string) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(part))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
