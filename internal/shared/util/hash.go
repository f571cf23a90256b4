package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserKey maps an owner ID to the directory name used under originals/.
func HashUserKey(ownerID string) string {
	return Fingerprint([]byte(ownerID))
}

// Fingerprint is the lowercase hex SHA-256 of data. It is printed on audit
// trails so a reader can match a PDF to the one that was signed.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
