package service

import (
	"crypto/rand"
	"encoding/base64"
)

// Webhook tokens carry 256 bits of entropy, base64url encoded without
// padding. They are returned to the caller only at creation and
// rotation time and are never logged.
func NewWebhookToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
