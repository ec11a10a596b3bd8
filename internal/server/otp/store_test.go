package otp

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhaven/keyhaven/internal/common"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client, 5*time.Minute), mr
}

func TestIssueAndVerify(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Len(t, code, codeDigits)

	require.NoError(t, store.Verify(ctx, "alice@example.com", code))
}

func TestVerify_SingleUse(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	require.NoError(t, store.Verify(ctx, "alice@example.com", code))

	// Second use of the same code must fail.
	err = store.Verify(ctx, "alice@example.com", code)
	assert.ErrorIs(t, err, common.ErrOTPInvalid)
}

func TestVerify_WrongCodeDoesNotBurnTheClaim(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	err = store.Verify(ctx, "alice@example.com", "000000")
	assert.ErrorIs(t, err, common.ErrOTPInvalid)

	// A typo within the attempt budget keeps the real code valid.
	require.NoError(t, store.Verify(ctx, "alice@example.com", code))
}

func TestVerify_AttemptBudgetBurnsTheClaim(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	for i := 0; i < maxAttempts; i++ {
		err = store.Verify(ctx, "alice@example.com", "000000")
		assert.ErrorIs(t, err, common.ErrOTPInvalid)
	}

	// The budget is spent: even the real code is rejected now.
	err = store.Verify(ctx, "alice@example.com", code)
	assert.ErrorIs(t, err, common.ErrOTPInvalid)
}

func TestIssue_ResetsAttemptBudget(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	for i := 0; i < maxAttempts-1; i++ {
		err = store.Verify(ctx, "alice@example.com", "000000")
		assert.ErrorIs(t, err, common.ErrOTPInvalid)
	}

	code, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	err = store.Verify(ctx, "alice@example.com", "000000")
	assert.ErrorIs(t, err, common.ErrOTPInvalid)
	require.NoError(t, store.Verify(ctx, "alice@example.com", code))
}

func TestVerify_Expired(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	mr.FastForward(6 * time.Minute)

	err = store.Verify(ctx, "alice@example.com", code)
	assert.ErrorIs(t, err, common.ErrOTPInvalid)
}

func TestIssue_ReplacesPreviousCode(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	second, err := store.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	// Only the most recent code is valid.
	require.NoError(t, store.Verify(ctx, "alice@example.com", second))
}
