// Package secrets wraps symmetric encryption of stored secrets (cloud secret
// keys, SSH private keys). Plaintext only ever exists in memory for the
// duration of one call.
package secrets

import (
	"errors"

	"github.com/fernet/fernet-go"
)

// ErrDecrypt is returned when a stored token cannot be verified with the
// configured key.
var ErrDecrypt = errors.New("secrets: decryption failed")

// Codec encrypts and decrypts fernet tokens with a single configured key.
type Codec struct {
	key *fernet.Key
}

// NewCodec parses the base64 fernet key from configuration.
func NewCodec(encoded string) (*Codec, error) {
	key, err := fernet.DecodeKey(encoded)
	if err != nil {
		return nil, err
	}
	return &Codec{key: key}, nil
}

// Encrypt returns the fernet token for a plaintext secret.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), c.key)
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts a stored token. Tokens do not expire; the
// record store is the source of truth for secret lifetime.
func (c *Codec) Decrypt(token string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{c.key})
	if msg == nil {
		return "", ErrDecrypt
	}
	return string(msg), nil
}
