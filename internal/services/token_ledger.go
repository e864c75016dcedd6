package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/repository"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/fundopatronos/carreiras-api/pkg/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultTokenBytes is the entropy of verification and reset tokens
	DefaultTokenBytes = 32

	maxIssueAttempts = 3
)

// Clock returns the current time
type Clock func() time.Time

// TokenGenerator returns a new random hex token
type TokenGenerator func() (string, error)

// RandomHex returns a generator of n random bytes, hex encoded
func RandomHex(n int) TokenGenerator {
	return func() (string, error) {
		b := make([]byte, n)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		return hex.EncodeToString(b), nil
	}
}

// TokenLedger issues and redeems single-use tokens of one purpose
type TokenLedger struct {
	store    repository.TokenStore
	purpose  models.TokenPurpose
	ttl      time.Duration
	now      Clock
	generate TokenGenerator
}

// LedgerOption customises a TokenLedger
type LedgerOption func(*TokenLedger)

// WithClock overrides the time source
func WithClock(now Clock) LedgerOption {
	return func(l *TokenLedger) { l.now = now }
}

// WithGenerator overrides the token generator
func WithGenerator(g TokenGenerator) LedgerOption {
	return func(l *TokenLedger) { l.generate = g }
}

// NewTokenLedger creates a ledger for purpose whose tokens live for ttl
func NewTokenLedger(store repository.TokenStore, purpose models.TokenPurpose, ttl time.Duration, opts ...LedgerOption) *TokenLedger {
	l := &TokenLedger{
		store:    store,
		purpose:  purpose,
		ttl:      ttl,
		now:      time.Now,
		generate: RandomHex(DefaultTokenBytes),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Purpose returns the purpose this ledger serves
func (l *TokenLedger) Purpose() models.TokenPurpose {
	return l.purpose
}

// TTL returns how long issued tokens stay valid
func (l *TokenLedger) TTL() time.Duration {
	return l.ttl
}

// Issue creates and stores a fresh token bound to the subject
func (l *TokenLedger) Issue(ctx context.Context, uid, email string, metadata map[string]string) (*models.VerificationToken, error) {
	now := l.now()

	for attempt := 1; ; attempt++ {
		value, err := l.generate()
		if err != nil {
			return nil, err
		}

		token := &models.VerificationToken{
			Token:        value,
			Purpose:      l.purpose,
			SubjectUID:   uid,
			SubjectEmail: email,
			Metadata:     metadata,
			CreatedAt:    now,
			ExpiresAt:    now.Add(l.ttl),
		}

		err = l.store.Insert(ctx, token)
		if err == nil {
			metrics.TokensIssued.WithLabelValues(string(l.purpose)).Inc()
			logger.Debug("Token issued",
				zap.String("purpose", string(l.purpose)),
				zap.String("uid", uid),
				logger.TokenPrefix(value))
			return token, nil
		}

		// A collision on 256 random bits means a broken generator; retry a
		// couple of times before giving up.
		if !errors.Is(err, repository.ErrDuplicate) || attempt >= maxIssueAttempts {
			return nil, fmt.Errorf("failed to store %s token: %w", l.purpose, err)
		}
	}
}

// Redeem consumes a token. Exactly one concurrent caller succeeds; the rest
// get ErrTokenAlreadyUsed. Failures wrap ErrInvalidToken.
func (l *TokenLedger) Redeem(ctx context.Context, value string) (*models.VerificationToken, error) {
	if value == "" {
		l.recordRedemption("not_found")
		return nil, ErrTokenNotFound
	}

	now := l.now()
	token, err := l.store.Consume(ctx, l.purpose, value, now)
	if err == nil {
		l.recordRedemption("success")
		return token, nil
	}
	if !errors.Is(err, repository.ErrNotConsumed) {
		l.recordRedemption("error")
		return nil, fmt.Errorf("failed to consume %s token: %w", l.purpose, err)
	}

	err = l.classify(ctx, value, now)
	if errors.Is(err, ErrInvalidToken) {
		logger.Warn("Token redemption rejected",
			zap.String("purpose", string(l.purpose)),
			zap.Error(err),
			logger.TokenPrefix(value))
	}
	return nil, err
}

// classify explains why Consume refused a token
func (l *TokenLedger) classify(ctx context.Context, value string, now time.Time) error {
	token, err := l.store.Get(ctx, l.purpose, value)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		l.recordRedemption("not_found")
		return ErrTokenNotFound
	case err != nil:
		l.recordRedemption("error")
		return fmt.Errorf("failed to load %s token: %w", l.purpose, err)
	case token.Used:
		l.recordRedemption("already_used")
		return ErrTokenAlreadyUsed
	case token.ExpiredAt(now):
		l.recordRedemption("expired")
		return ErrTokenExpired
	default:
		// Consume lost a race that Get did not observe
		l.recordRedemption("already_used")
		return ErrTokenAlreadyUsed
	}
}

func (l *TokenLedger) recordRedemption(outcome string) {
	metrics.TokenRedemptions.WithLabelValues(string(l.purpose), outcome).Inc()
}

// InvalidateAllForSubject marks every outstanding token of this purpose for
// uid as used. Returns how many were invalidated.
func (l *TokenLedger) InvalidateAllForSubject(ctx context.Context, uid string) (int, error) {
	n, err := l.store.InvalidateForSubject(ctx, l.purpose, uid, l.now())
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate %s tokens: %w", l.purpose, err)
	}
	if n > 0 {
		metrics.TokensInvalidated.WithLabelValues(string(l.purpose)).Add(float64(n))
	}
	return n, nil
}
