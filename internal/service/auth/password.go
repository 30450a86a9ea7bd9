package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// TriggerKeyVerifier checks the shared key presented by external schedulers
// and operator tools that call the function gateway.
type TriggerKeyVerifier interface {
	Verify(key string) error
}

// BcryptVerifier verifies trigger keys against a bcrypt hash.
type BcryptVerifier struct {
	hash []byte
}

// NewBcryptVerifier creates a verifier for the given bcrypt hash.
func NewBcryptVerifier(hash string) (*BcryptVerifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("trigger key hash is not a bcrypt hash: %w", err)
	}
	return &BcryptVerifier{hash: []byte(hash)}, nil
}

// Verify implements TriggerKeyVerifier.
func (v *BcryptVerifier) Verify(key string) error {
	if key == "" {
		return ErrInvalidTriggerKey
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrInvalidTriggerKey
	}
	return nil
}

// HashTriggerKey returns the bcrypt hash to store in configuration for a key.
func HashTriggerKey(key string, cost int) (string, error) {
	if len(key) < 24 {
		return "", fmt.Errorf("trigger key must be at least 24 characters")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash trigger key: %w", err)
	}
	return string(h), nil
}

// StaticKeyVerifier compares against a plaintext key in constant time. Used
// in tests and local development.
type StaticKeyVerifier string

// Verify implements TriggerKeyVerifier.
func (k StaticKeyVerifier) Verify(key string) error {
	if key == "" || subtle.ConstantTimeCompare([]byte(k), []byte(key)) != 1 {
		return ErrInvalidTriggerKey
	}
	return nil
}
