// Package relaysign signs and verifies requests to the trusted email relay.
// Signatures are HMAC-SHA256 over a canonical payload plus a unix timestamp;
// verification enforces a freshness window so captured requests cannot be
// replayed later.
package relaysign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// DefaultFreshness is the maximum tolerated skew between signing and
// verification.
const DefaultFreshness = 5 * time.Minute

// Signer computes and checks relay request signatures.
type Signer struct {
	key       []byte
	freshness time.Duration
	now       func() time.Time
}

// New derives the signing key from the server secret via HKDF.
func New(serverSecret []byte, freshness time.Duration) (*Signer, error) {
	if len(serverSecret) == 0 {
		return nil, fmt.Errorf("relaysign: server secret is required")
	}
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, serverSecret, nil, []byte("vibez/relay-auth/v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("relaysign: derive key: %w", err)
	}
	return &Signer{key: key, freshness: freshness, now: time.Now}, nil
}

// Sign returns the hex HMAC over the canonicalized payload and timestamp.
func (s *Signer) Sign(payload map[string]string, ts int64) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(Canonicalize(payload)))
	mac.Write([]byte("\nts=" + strconv.FormatInt(ts, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and checks both integrity and freshness.
// The length guard runs before the constant-time compare, which requires
// equal-length inputs; a malformed signature must not become an oracle.
func (s *Signer) Verify(payload map[string]string, ts int64, signature string) bool {
	now := s.now().Unix()
	skew := now - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > s.freshness {
		return false
	}
	expected := s.Sign(payload, ts)
	if len(signature) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

// Canonicalize renders the payload with stable field ordering: one
// "key=value" per line, keys sorted bytewise.
func Canonicalize(payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(payload[k])
	}
	return b.String()
}
