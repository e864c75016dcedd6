package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/repository"
	"github.com/fundopatronos/carreiras-api/internal/repository/memory"
	"github.com/fundopatronos/carreiras-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(store *memory.Store, purpose models.TokenPurpose, ttl time.Duration, clock *fakeClock) *services.TokenLedger {
	return services.NewTokenLedger(store.Tokens(), purpose, ttl, services.WithClock(clock.Now))
}

func TestTokenLedger_IssueAndRedeem(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newFakeClock()
	ledger := newLedger(store, models.PurposeVerification, 24*time.Hour, clock)

	token, err := ledger.Issue(ctx, "uid-1", "ana@dac.unicamp.br", nil)
	require.NoError(t, err)
	assert.Len(t, token.Token, 64)
	assert.Equal(t, clock.Now().Add(24*time.Hour), token.ExpiresAt)
	assert.False(t, token.Used)

	redeemed, err := ledger.Redeem(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", redeemed.SubjectUID)
	assert.True(t, redeemed.Used)
	require.NotNil(t, redeemed.UsedAt)

	_, err = ledger.Redeem(ctx, token.Token)
	assert.ErrorIs(t, err, services.ErrTokenAlreadyUsed)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}

func TestTokenLedger_TokensAreUnique(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(memory.NewStore(), models.PurposeVerification, time.Hour, newFakeClock())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := ledger.Issue(ctx, "uid-1", "a@patronos.org", nil)
		require.NoError(t, err)
		assert.False(t, seen[token.Token])
		seen[token.Token] = true
	}
}

func TestTokenLedger_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newFakeClock()
	ledger := newLedger(store, models.PurposeVerification, 24*time.Hour, clock)

	atBoundary, err := ledger.Issue(ctx, "uid-1", "a@patronos.org", nil)
	require.NoError(t, err)
	pastBoundary, err := ledger.Issue(ctx, "uid-1", "a@patronos.org", nil)
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	_, err = ledger.Redeem(ctx, atBoundary.Token)
	assert.NoError(t, err, "a token is still valid at exactly its expiry instant")

	clock.Advance(time.Nanosecond)
	_, err = ledger.Redeem(ctx, pastBoundary.Token)
	assert.ErrorIs(t, err, services.ErrTokenExpired)

	stored, err := store.Tokens().Get(ctx, models.PurposeVerification, pastBoundary.Token)
	require.NoError(t, err)
	assert.False(t, stored.Used, "an expired token is not consumed")
}

func TestTokenLedger_RedeemUnknown(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(memory.NewStore(), models.PurposeVerification, time.Hour, newFakeClock())

	_, err := ledger.Redeem(ctx, "does-not-exist")
	assert.ErrorIs(t, err, services.ErrTokenNotFound)

	_, err = ledger.Redeem(ctx, "")
	assert.ErrorIs(t, err, services.ErrTokenNotFound)
}

func TestTokenLedger_PurposesAreSeparate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newFakeClock()
	verification := newLedger(store, models.PurposeVerification, time.Hour, clock)
	reset := newLedger(store, models.PurposeReset, time.Hour, clock)

	token, err := verification.Issue(ctx, "uid-1", "a@patronos.org", nil)
	require.NoError(t, err)

	_, err = reset.Redeem(ctx, token.Token)
	assert.ErrorIs(t, err, services.ErrTokenNotFound)

	_, err = verification.Redeem(ctx, token.Token)
	assert.NoError(t, err)
}

func TestTokenLedger_InvalidateAllForSubject(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ledger := newLedger(store, models.PurposeVerification, time.Hour, newFakeClock())

	first, err := ledger.Issue(ctx, "uid-1", "a@patronos.org", nil)
	require.NoError(t, err)
	second, err := ledger.Issue(ctx, "uid-1", "a@patronos.org", nil)
	require.NoError(t, err)
	other, err := ledger.Issue(ctx, "uid-2", "b@patronos.org", nil)
	require.NoError(t, err)

	n, err := ledger.InvalidateAllForSubject(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, tok := range []string{first.Token, second.Token} {
		_, err = ledger.Redeem(ctx, tok)
		assert.ErrorIs(t, err, services.ErrTokenAlreadyUsed)
	}

	_, err = ledger.Redeem(ctx, other.Token)
	assert.NoError(t, err)

	n, err = ledger.InvalidateAllForSubject(ctx, "uid-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTokenLedger_ConcurrentRedeemHasOneWinner(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(memory.NewStore(), models.PurposeReset, time.Hour, newFakeClock())

	token, err := ledger.Issue(ctx, "uid-1", "a@patronos.org", nil)
	require.NoError(t, err)

	const callers = 32
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		losers  atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Redeem(ctx, token.Token)
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, services.ErrTokenAlreadyUsed):
				losers.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(callers-1), losers.Load())
}

func TestTokenLedger_RetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	values := []string{"same", "same", "fresh"}
	var i int
	gen := func() (string, error) {
		v := values[i]
		i++
		return v, nil
	}
	ledger := services.NewTokenLedger(store.Tokens(), models.PurposeReset, time.Hour, services.WithGenerator(gen))

	first, err := ledger.Issue(ctx, "uid-1", "a@patronos.org", nil)
	require.NoError(t, err)
	assert.Equal(t, "same", first.Token)

	second, err := ledger.Issue(ctx, "uid-1", "a@patronos.org", nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", second.Token)
}

func TestTokenLedger_StoreFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	ledger := services.NewTokenLedger(&failingTokenStore{err: boom}, models.PurposeVerification, time.Hour)

	_, err := ledger.Issue(ctx, "uid-1", "a@patronos.org", nil)
	assert.ErrorIs(t, err, boom)

	_, err = ledger.Redeem(ctx, "abc")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, services.ErrInvalidToken)
}

type failingTokenStore struct {
	err error
}

func (f *failingTokenStore) Insert(context.Context, *models.VerificationToken) error {
	return f.err
}

func (f *failingTokenStore) Get(context.Context, models.TokenPurpose, string) (*models.VerificationToken, error) {
	return nil, f.err
}

func (f *failingTokenStore) Consume(context.Context, models.TokenPurpose, string, time.Time) (*models.VerificationToken, error) {
	return nil, f.err
}

func (f *failingTokenStore) InvalidateForSubject(context.Context, models.TokenPurpose, string, time.Time) (int, error) {
	return 0, f.err
}

var _ repository.TokenStore = (*failingTokenStore)(nil)
