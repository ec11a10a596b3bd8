package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/server/auth"
	"github.com/keyhaven/keyhaven/internal/server/models"
	"github.com/keyhaven/keyhaven/internal/server/otp"
	"github.com/keyhaven/keyhaven/internal/server/repositories/repomanager"
)

// UserService handles registration, credential login and the OTP login
// leg.
type UserService struct {
	db            *sql.DB
	rm            repomanager.RepositoryManager
	otp           *otp.Store
	sender        otp.Sender
	secretKey     []byte
	tokenValidity time.Duration
}

func NewUserService(db *sql.DB, rm repomanager.RepositoryManager, otpStore *otp.Store, sender otp.Sender, secretKey []byte, tokenValidity time.Duration) *UserService {
	return &UserService{
		db:            db,
		rm:            rm,
		otp:           otpStore,
		sender:        sender,
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
	}
}

// Register creates an account with an argon2id password hash. Fails with
// common.ErrAlreadyExists when the email is taken.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
	}
	return s.rm.Users(s.db).Create(ctx, user)
}

// Login verifies the password and mints a bearer token. A wrong password
// and an unknown email are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.rm.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return "", nil, common.ErrUnauthorized
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return "", nil, common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, s.secretKey, s.tokenValidity)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

// ChangePassword re-hashes and stores a new password after verifying the
// current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if next == "" {
		return fmt.Errorf("%w: new password is required", common.ErrValidation)
	}

	user, err := s.rm.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := auth.VerifyPassword(current, user.PasswordHash)
	if err != nil || !ok {
		return common.ErrUnauthorized
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}

	return s.rm.Users(s.db).UpdatePasswordHash(ctx, userID, hash)
}

// RequestOTP issues a single-use code for a registered email. The response
// to an unknown email is identical to the success path so the endpoint
// cannot be used to enumerate accounts.
func (s *UserService) RequestOTP(ctx context.Context, email string) error {
	if _, err := s.rm.Users(s.db).GetByEmail(ctx, email); err != nil {
		return nil
	}

	code, err := s.otp.Issue(ctx, email)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, email, code)
}

// VerifyOTP consumes the code and mints a bearer token on success.
func (s *UserService) VerifyOTP(ctx context.Context, email, code string) (string, *models.User, error) {
	if err := s.otp.Verify(ctx, email, code); err != nil {
		return "", nil, err
	}

	user, err := s.rm.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return "", nil, common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, s.secretKey, s.tokenValidity)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}
