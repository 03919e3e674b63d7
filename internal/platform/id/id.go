package id

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// urlSafeAlphabet is the character set used by NewCode.
const urlSafeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewToken returns n random bytes encoded as lowercase hex.
func NewToken(n int) (string, error) {
	return newToken(rand.Reader, n)
}

func newToken(reader io.Reader, n int) (string, error) {
	if n <= 0 {
		return "", errors.New("token length must be greater than zero")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewCode returns an n character alphanumeric code.
//
// Rejection sampling keeps the distribution uniform over the alphabet.
func NewCode(n int) (string, error) {
	return newCode(rand.Reader, n)
}

func newCode(reader io.Reader, n int) (string, error) {
	if n <= 0 {
		return "", errors.New("code length must be greater than zero")
	}
	const limit = 256 - 256%len(urlSafeAlphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(reader, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, urlSafeAlphabet[int(b)%len(urlSafeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
