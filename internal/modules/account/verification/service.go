package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
	"github.com/Vibez0-CONNECT/vibez/internal/models"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/codehash"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/ratelimit"
)

// Config tunes the code lifecycle per purpose.
type Config struct {
	VerifyTTL   time.Duration
	ResetTTL    time.Duration
	MaxAttempts int
	// BindIP rejects consumption from a different IP than the issuing one.
	BindIP bool
}

// Service owns the lifecycle of one verification record per (purpose, email).
type Service struct {
	store   Store
	hasher  *codehash.Hasher
	sender  CodeSender
	limiter *ratelimit.Limiter
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(store Store, hasher *codehash.Hasher, sender CodeSender, limiter *ratelimit.Limiter, cfg Config, logger *zap.Logger) *Service {
	if cfg.VerifyTTL <= 0 {
		cfg.VerifyTTL = 10 * time.Minute
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 30 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Service{
		store:   store,
		hasher:  hasher,
		sender:  sender,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Issue generates a fresh code, commits its record (superseding any prior one
// for the key), then asks the relay to deliver it. A dispatch failure leaves
// the committed record in place — a stored-but-undelivered code is inert —
// but is reported distinctly so callers never confuse "undelivered" with
// "not created".
func (s *Service) Issue(ctx context.Context, email string, purpose models.VerificationPurpose, clientIP string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := validPurpose(purpose); err != nil {
		return err
	}
	// The email budget spans purposes: verify plus reset issues share it.
	if !s.limiter.Allow("code:email:"+email) ||
		!s.limiter.Allow("code:ip:"+clientIP) {
		return errs.ErrRateLimited
	}

	code, err := codehash.GenerateCode()
	if err != nil {
		return err
	}
	ttl := s.ttlFor(purpose)

	if err := s.store.Replace(ctx, &models.VerificationCode{
		Purpose:   purpose,
		Email:     email,
		Digest:    s.hasher.Hash(code, email),
		ExpiresAt: s.now().Add(ttl),
		OriginIP:  clientIP,
	}); err != nil {
		return err
	}

	if err := s.sender.SendCode(ctx, email, purpose, code, ttl); err != nil {
		s.logger.Warn("code dispatch failed",
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		return fmt.Errorf("%w: dispatch", errs.ErrTransportFailure)
	}
	return nil
}

// Consume checks a candidate code against the stored record. The whole
// read-decide-write runs inside the store's per-key transaction.
func (s *Service) Consume(ctx context.Context, email string, purpose models.VerificationPurpose, candidate, clientIP string) (Outcome, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return OutcomeNotFound, err
	}
	if err := validPurpose(purpose); err != nil {
		return OutcomeNotFound, err
	}
	if len(candidate) != 6 {
		return OutcomeInvalid, fmt.Errorf("%w: code must be 6 digits", errs.ErrInvalidInput)
	}

	return s.store.Consume(ctx, purpose, email, func(rec *models.VerificationCode) Outcome {
		if s.now().After(rec.ExpiresAt) {
			return OutcomeExpired
		}
		if rec.Attempts >= s.cfg.MaxAttempts {
			return OutcomeAttemptsExceeded
		}
		if s.cfg.BindIP && rec.OriginIP != "" && rec.OriginIP != clientIP {
			return OutcomeInvalid
		}
		if s.hasher.Verify(s.hasher.Hash(candidate, email), rec.Digest) {
			return OutcomeValid
		}
		return OutcomeInvalid
	})
}

func (s *Service) ttlFor(purpose models.VerificationPurpose) time.Duration {
	if purpose == models.PurposeReset {
		return s.cfg.ResetTTL
	}
	return s.cfg.VerifyTTL
}

func validPurpose(p models.VerificationPurpose) error {
	switch p {
	case models.PurposeVerify, models.PurposeReset:
		return nil
	}
	return fmt.Errorf("%w: unknown purpose %q", errs.ErrInvalidInput, p)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || len(email) > 254 {
		return "", fmt.Errorf("%w: email", errs.ErrInvalidInput)
	}
	// Control bytes or embedded whitespace must never reach the relay payload
	// or the canonical signing string.
	for i := 0; i < len(email); i++ {
		if email[i] <= ' ' || email[i] == 0x7f {
			return "", fmt.Errorf("%w: email", errs.ErrInvalidInput)
		}
	}
	return email, nil
}
