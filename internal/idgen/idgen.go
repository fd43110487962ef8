package idgen

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// TokenBytes is the amount of randomness behind every token id.
const TokenBytes = 16

// NewFunc returns a new globally unique identifier as string.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier (session ids).
func New() string { return NewFunc() }

// TokenFunc returns a random, unguessable token id.
var TokenFunc = func() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Token returns a new random token id.
func Token() (string, error) { return TokenFunc() }
