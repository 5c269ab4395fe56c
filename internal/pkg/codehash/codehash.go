// Package codehash generates and hashes one-time verification codes. Raw
// codes are never persisted; storage only ever sees the salted digest.
package codehash

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	codeMin  = 100000
	codeMax  = 999999
	codeSpan = codeMax - codeMin + 1
)

// Hasher computes deterministic salted digests of (code, email) pairs.
type Hasher struct {
	key []byte
}

// New derives the hashing key from the server secret via HKDF so the code
// hasher and the relay signer never share raw key bytes.
func New(serverSecret []byte) (*Hasher, error) {
	if len(serverSecret) == 0 {
		return nil, fmt.Errorf("codehash: server secret is required")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, serverSecret, nil, []byte("vibez/verification-code/v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("codehash: derive key: %w", err)
	}
	return &Hasher{key: key}, nil
}

// Hash returns the hex digest of code bound to the lowercased email.
func (h *Hasher) Hash(code, email string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(code))
	mac.Write([]byte{0})
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares two hex digests in constant time. Length is checked first;
// subtle.ConstantTimeCompare requires equal-length inputs.
func (h *Hasher) Verify(candidateDigest, storedDigest string) bool {
	if len(candidateDigest) != len(storedDigest) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidateDigest), []byte(storedDigest)) == 1
}

// GenerateCode draws a uniform 6-digit code from crypto/rand using rejection
// sampling, so no residue bias sneaks in.
func GenerateCode() (string, error) {
	const limit = ^uint32(0) - (^uint32(0) % codeSpan)
	var buf [4]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("codehash: generate code: %w", err)
		}
		v := binary.BigEndian.Uint32(buf[:])
		if v >= limit {
			continue
		}
		return fmt.Sprintf("%06d", codeMin+v%codeSpan), nil
	}
}
