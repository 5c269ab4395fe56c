package verification

import (
	"context"
	"time"

	"github.com/Vibez0-CONNECT/vibez/internal/models"
)

// Outcome is the result of attempting to consume a code.
type Outcome string

const (
	OutcomeValid            Outcome = "valid"
	OutcomeInvalid          Outcome = "invalid"
	OutcomeExpired          Outcome = "expired"
	OutcomeAttemptsExceeded Outcome = "attempts_exceeded"
	OutcomeNotFound         Outcome = "not_found"
)

// Store is the persistence collaborator for verification records. Consume
// must execute read-decide-write as one atomic unit per (purpose, email) key:
// two concurrent consumers may never both observe attempt count N and both
// write N+1, which would double an attacker's budget.
type Store interface {
	// Replace atomically writes rec, superseding any prior record for the
	// same (purpose, email) key.
	Replace(ctx context.Context, rec *models.VerificationCode) error
	// Consume reads the record under the key lock, calls decide, then applies
	// the outcome: Valid, Expired and AttemptsExceeded destroy the record,
	// Invalid increments the attempt counter in place. A missing record
	// short-circuits to OutcomeNotFound without calling decide.
	Consume(ctx context.Context, purpose models.VerificationPurpose, email string, decide func(rec *models.VerificationCode) Outcome) (Outcome, error)
}

// CodeSender dispatches the plaintext code through the trusted relay.
type CodeSender interface {
	SendCode(ctx context.Context, email string, purpose models.VerificationPurpose, code string, ttl time.Duration) error
}
