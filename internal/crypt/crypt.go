// Package crypt defines the pluggable encryption capability for setting
// values flagged as encrypted. The algorithm is supplied by the embedding
// application; the store only tracks the encrypted flag.
package crypt

// Provider encrypts and decrypts setting values.
type Provider interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// NoOp passes values through unchanged. It is the default provider.
type NoOp struct{}

// Encrypt returns the plaintext unchanged.
func (NoOp) Encrypt(plaintext string) (string, error) { return plaintext, nil }

// Decrypt returns the ciphertext unchanged.
func (NoOp) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }
