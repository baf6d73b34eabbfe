// Package id generates the opaque tokens the sandbox store hands out.
package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// Base62 alphabet: 0-9, A-Z, a-z
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// ReceiptLength is the random part of a sandbox receipt token.
	ReceiptLength = 32
)

// PrefixReceipt marks receipt tokens issued by the sandbox store.
const PrefixReceipt = "rcpt"

// Generate creates a cryptographically random Base62 string of length.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid token length: %d", length)
	}

	result := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphabet)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}

	return string(result), nil
}

// NewReceipt returns a fresh "rcpt_<random>" token.
func NewReceipt() (string, error) {
	token, err := Generate(ReceiptLength)
	if err != nil {
		return "", err
	}
	return PrefixReceipt + "_" + token, nil
}

// IsSandboxReceipt reports whether receipt has the sandbox shape.
func IsSandboxReceipt(receipt string) bool {
	prefix, token, ok := strings.Cut(receipt, "_")
	if !ok || prefix != PrefixReceipt || len(token) != ReceiptLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		if !strings.ContainsRune(alphabet, rune(token[i])) {
			return false
		}
	}
	return true
}
