package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
	"github.com/Vibez0-CONNECT/vibez/internal/models"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/codehash"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/ratelimit"
)

// memCodeStore is an in-memory Store honoring the Consume contract: the whole
// read-decide-write runs under one lock per call.
type memCodeStore struct {
	mu   sync.Mutex
	recs map[string]*models.VerificationCode
}

func newMemCodeStore() *memCodeStore {
	return &memCodeStore{recs: make(map[string]*models.VerificationCode)}
}

func codeKey(purpose models.VerificationPurpose, email string) string {
	return string(purpose) + "|" + email
}

func (s *memCodeStore) Replace(_ context.Context, rec *models.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.recs[codeKey(rec.Purpose, rec.Email)] = &cp
	return nil
}

func (s *memCodeStore) Consume(_ context.Context, purpose models.VerificationPurpose, email string, decide func(rec *models.VerificationCode) Outcome) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := codeKey(purpose, email)
	rec, ok := s.recs[key]
	if !ok {
		return OutcomeNotFound, nil
	}

	outcome := decide(rec)
	switch outcome {
	case OutcomeValid, OutcomeExpired, OutcomeAttemptsExceeded:
		delete(s.recs, key)
	case OutcomeInvalid:
		rec.Attempts++
	}
	return outcome, nil
}

// memSender records dispatched codes instead of calling the relay.
type memSender struct {
	mu       sync.Mutex
	err      error
	lastCode string
	lastTTL  time.Duration
	calls    int
}

func (m *memSender) SendCode(_ context.Context, email string, purpose models.VerificationPurpose, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastCode = code
	m.lastTTL = ttl
	return m.err
}

type fixture struct {
	svc    *Service
	store  *memCodeStore
	sender *memSender
	now    time.Time
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	hasher, err := codehash.New([]byte("test-server-secret"))
	require.NoError(t, err)

	f := &fixture{
		store:  newMemCodeStore(),
		sender: &memSender{},
		now:    time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, hasher, f.sender, ratelimit.New(1000, time.Minute), cfg, zap.NewNop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

const (
	testEmail = "alice@example.com"
	testIP    = "203.0.113.7"
)

func TestIssueThenConsumeValid(t *testing.T) {
	f := newFixture(t, Config{})

	require.NoError(t, f.svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))
	require.Len(t, f.sender.lastCode, 6)
	assert.Equal(t, 10*time.Minute, f.sender.lastTTL)

	// The store never sees the raw code.
	rec := f.store.recs[codeKey(models.PurposeVerify, testEmail)]
	require.NotNil(t, rec)
	assert.NotEqual(t, f.sender.lastCode, rec.Digest)
	assert.Len(t, rec.Digest, 64)
	assert.Equal(t, testIP, rec.OriginIP)

	outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)

	// A valid consumption is single-use.
	outcome, err = f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)
}

func TestConsumeWrongCode(t *testing.T) {
	f := newFixture(t, Config{})

	require.NoError(t, f.svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))

	wrong := "000000"
	if wrong == f.sender.lastCode {
		wrong = "000001"
	}
	outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, wrong, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, outcome)
	assert.Equal(t, 1, f.store.recs[codeKey(models.PurposeVerify, testEmail)].Attempts)

	// The right code still works afterwards.
	outcome, err = f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
}

func TestConsumeAttemptsExceeded(t *testing.T) {
	f := newFixture(t, Config{MaxAttempts: 5})

	require.NoError(t, f.svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))

	wrong := "000000"
	if wrong == f.sender.lastCode {
		wrong = "000001"
	}
	for i := 0; i < 5; i++ {
		outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, wrong, testIP)
		require.NoError(t, err)
		require.Equal(t, OutcomeInvalid, outcome)
	}

	// Budget burned: even the correct code is refused and the record dies.
	outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAttemptsExceeded, outcome)

	outcome, err = f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)
}

func TestConsumeExpiry(t *testing.T) {
	f := newFixture(t, Config{VerifyTTL: 10 * time.Minute})
	issuedAt := f.now

	require.NoError(t, f.svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))

	// Exactly at the deadline the code still passes.
	f.now = issuedAt.Add(10 * time.Minute)
	outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)

	// One second past the deadline it is expired and destroyed.
	f.now = issuedAt
	require.NoError(t, f.svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))
	f.now = issuedAt.Add(10*time.Minute + time.Second)
	outcome, err = f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)

	outcome, err = f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)
}

func TestReissueSupersedesPriorCode(t *testing.T) {
	f := newFixture(t, Config{})

	require.NoError(t, f.svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))
	firstCode := f.sender.lastCode

	require.NoError(t, f.svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))
	secondCode := f.sender.lastCode

	if firstCode != secondCode {
		outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, firstCode, testIP)
		require.NoError(t, err)
		assert.Equal(t, OutcomeInvalid, outcome)
	}

	outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, secondCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
}

func TestPurposesAreIndependent(t *testing.T) {
	f := newFixture(t, Config{})

	require.NoError(t, f.svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))
	verifyCode := f.sender.lastCode

	require.NoError(t, f.svc.Issue(context.Background(), testEmail, models.PurposeReset, testIP))
	resetCode := f.sender.lastCode
	assert.Equal(t, 30*time.Minute, f.sender.lastTTL)

	// A reset code cannot satisfy a verify challenge; purposes partition the
	// key space, and issuing one did not clobber the other.
	outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, verifyCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)

	outcome, err = f.svc.Consume(context.Background(), testEmail, models.PurposeReset, resetCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
}

func TestIssueTransportFailureLeavesRecord(t *testing.T) {
	f := newFixture(t, Config{})
	f.sender.err = errors.New("relay unreachable")

	err := f.svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP)
	assert.True(t, errors.Is(err, errs.ErrTransportFailure))

	// The committed record survives the dispatch failure; an undelivered code
	// is inert, not absent.
	require.NotNil(t, f.store.recs[codeKey(models.PurposeVerify, testEmail)])

	f.sender.err = nil
	outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
}

func TestIssueRateLimited(t *testing.T) {
	hasher, err := codehash.New([]byte("test-server-secret"))
	require.NoError(t, err)
	store := newMemCodeStore()
	sender := &memSender{}
	svc := NewService(store, hasher, sender, ratelimit.New(2, 10*time.Minute), Config{}, zap.NewNop())

	require.NoError(t, svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))
	require.NoError(t, svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))

	err = svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP)
	assert.True(t, errors.Is(err, errs.ErrRateLimited))
}

func TestIssueEmailBudgetSharedAcrossPurposes(t *testing.T) {
	hasher, err := codehash.New([]byte("test-server-secret"))
	require.NoError(t, err)
	svc := NewService(newMemCodeStore(), hasher, &memSender{}, ratelimit.New(2, 10*time.Minute), Config{}, zap.NewNop())

	require.NoError(t, svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))
	require.NoError(t, svc.Issue(context.Background(), testEmail, models.PurposeReset, testIP))

	// One per-email budget covers both purposes.
	err = svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP)
	assert.True(t, errors.Is(err, errs.ErrRateLimited))
	err = svc.Issue(context.Background(), testEmail, models.PurposeReset, testIP)
	assert.True(t, errors.Is(err, errs.ErrRateLimited))
}

func TestIssueValidatesInput(t *testing.T) {
	f := newFixture(t, Config{})

	malformed := []string{
		"", "no-at-sign", "@host", "user@",
		// Control bytes and embedded whitespace must never reach the relay
		// payload or the signing string.
		"a\nb@x.com", "a\rb@x.com", "a b@x.com", "a\x00b@x.com", "a\tb@x.com",
	}
	for _, email := range malformed {
		err := f.svc.Issue(context.Background(), email, models.PurposeVerify, testIP)
		assert.True(t, errors.Is(err, errs.ErrInvalidInput), "email %q", email)
	}

	err := f.svc.Issue(context.Background(), testEmail, models.VerificationPurpose("login"), testIP)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestIssueNormalizesEmail(t *testing.T) {
	f := newFixture(t, Config{})

	require.NoError(t, f.svc.Issue(context.Background(), "  ALICE@Example.COM ", models.PurposeVerify, testIP))

	// Consumption with any casing of the same address finds the record.
	outcome, err := f.svc.Consume(context.Background(), "alice@example.com", models.PurposeVerify, f.sender.lastCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
}

func TestConsumeRejectsMalformedCode(t *testing.T) {
	f := newFixture(t, Config{})

	outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, "123", testIP)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
	assert.Equal(t, OutcomeInvalid, outcome)
}

func TestConsumeBindIP(t *testing.T) {
	f := newFixture(t, Config{BindIP: true})

	require.NoError(t, f.svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))

	// A different consumer IP counts as a failed attempt.
	outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, "198.51.100.9")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, outcome)
	assert.Equal(t, 1, f.store.recs[codeKey(models.PurposeVerify, testEmail)].Attempts)

	outcome, err = f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, testIP)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
}

func TestConsumeBindIPDisabled(t *testing.T) {
	f := newFixture(t, Config{BindIP: false})

	require.NoError(t, f.svc.Issue(context.Background(), testEmail, models.PurposeVerify, testIP))

	outcome, err := f.svc.Consume(context.Background(), testEmail, models.PurposeVerify, f.sender.lastCode, "198.51.100.9")
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
}
