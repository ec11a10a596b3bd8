// Package otp implements the single-use email verification codes as an
// expiring claim-check: a code is stored under the email with a TTL, a
// correct guess consumes it, and a few wrong guesses burn it. Nothing
// lives in process memory.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyhaven/keyhaven/internal/common"
)

const (
	keyPrefix      = "otp:"
	attemptsSuffix = ":attempts"
	codeDigits     = 6

	// maxAttempts bounds wrong guesses per issued code. A handful of typos
	// does not lock the user out, but the code burns before the 6-digit
	// space becomes guessable.
	maxAttempts = 3
)

// Sender delivers an issued code to the user. Actual mail transport is a
// collaborator concern; implementations may wrap any provider.
type Sender interface {
	Send(ctx context.Context, email, code string) error
}

// Store issues and verifies single-use codes backed by Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Issue generates a fresh numeric code for email and stores it with the
// configured TTL, replacing any previous code for the same email.
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	key := keyPrefix + email
	if err := s.client.Set(ctx, key, code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	// A fresh code starts with a clean attempt budget.
	if err := s.client.Del(ctx, key+attemptsSuffix).Err(); err != nil {
		return "", fmt.Errorf("reset otp attempts: %w", err)
	}

	return code, nil
}

// Verify checks the code for email. A correct code consumes the claim, so
// it is single-use. A wrong code counts against the attempt budget and the
// claim burns once the budget is spent.
func (s *Store) Verify(ctx context.Context, email, code string) error {
	key := keyPrefix + email

	stored, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return common.ErrOTPInvalid
		}
		return fmt.Errorf("load otp: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		attempts, err := s.client.Incr(ctx, key+attemptsSuffix).Result()
		if err != nil {
			return fmt.Errorf("count otp attempt: %w", err)
		}
		if err := s.client.Expire(ctx, key+attemptsSuffix, s.ttl).Err(); err != nil {
			return fmt.Errorf("expire otp attempts: %w", err)
		}
		if attempts >= maxAttempts {
			if err := s.client.Del(ctx, key, key+attemptsSuffix).Err(); err != nil {
				return fmt.Errorf("burn otp: %w", err)
			}
		}
		return common.ErrOTPInvalid
	}

	if err := s.client.Del(ctx, key, key+attemptsSuffix).Err(); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}

	return nil
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
