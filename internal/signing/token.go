package signing

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

const tokenBytes = 32

// NewAccessToken returns an unguessable, URL-safe signer credential.
func NewAccessToken() (string, error) {
	var b [tokenBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

func credentialMatches(signer Signer, credential string) bool {
	if signer.AccessToken == "" || credential == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signer.AccessToken), []byte(credential)) == 1
}
