package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/dentaheal-api/internal/apperrors"
	"github.com/harentsoaR/dentaheal-api/internal/config"
	"github.com/harentsoaR/dentaheal-api/internal/models"
	"github.com/harentsoaR/dentaheal-api/internal/ratelimit"
	"github.com/harentsoaR/dentaheal-api/internal/repository"
	"github.com/harentsoaR/dentaheal-api/internal/utils"
	"github.com/harentsoaR/dentaheal-api/internal/validation"
)

// IdentityService runs registration, OTP verification, purge and login.
type IdentityService struct {
	accounts      repository.AccountRepository
	notifier      *NotificationService
	tokens        *utils.TokenManager
	limiter       ratelimit.Limiter
	logger        *zap.Logger
	now           func() time.Time
	bcryptCost    int
	otpTTL        time.Duration
	tokenOnVerify map[models.Role]bool
	// loginNeedsOTP refuses login to accounts that have not verified their OTP.
	loginNeedsOTP bool

	dummyOnce sync.Once
	dummyHash string
}

// IdentityDependencies bundles the collaborators of IdentityService.
type IdentityDependencies struct {
	Accounts repository.AccountRepository
	Notifier *NotificationService
	Tokens   *utils.TokenManager
	Limiter  ratelimit.Limiter
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Session is the result of a successful login or patient verification.
type Session struct {
	Account   *models.Account
	Token     string
	ExpiresAt time.Time
}

func NewIdentityService(cfg config.AuthConfig, deps IdentityDependencies) *IdentityService {
	s := &IdentityService{
		accounts:   deps.Accounts,
		notifier:   deps.Notifier,
		tokens:     deps.Tokens,
		limiter:    deps.Limiter,
		logger:     deps.Logger,
		now:        deps.Clock,
		bcryptCost: cfg.BcryptCost,
		otpTTL:     cfg.OTPTTL(),
		tokenOnVerify: map[models.Role]bool{
			models.RolePatient: cfg.VerifyIssuesTokenPatient,
			models.RoleDoctor:  cfg.VerifyIssuesTokenDoctor,
		},
		loginNeedsOTP: cfg.LoginRequiresVerified,
	}
	if s.limiter == nil {
		s.limiter = ratelimit.Noop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Register creates a pending account and emails its OTP. When the email cannot be
// sent the account is kept and a NOTIFICATION_FAILED error is returned with it.
func (s *IdentityService) Register(ctx context.Context, in validation.Registration) (*models.Account, error) {
	if err := validation.ValidateRegistration(in); err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(in.Email)

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewEmailTaken()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	code, expiresAt, err := utils.GenerateOTP(s.now(), s.otpTTL)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	var acc *models.Account
	if in.Role == models.RoleDoctor {
		acc = models.NewDoctor(in.Name, email, in.Phone, hash, in.Speciality)
	} else {
		acc = models.NewPatient(in.Name, email, in.Phone, hash)
	}
	acc.OTP = &code
	acc.OTPExpiresAt = &expiresAt

	if err := s.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewEmailTaken()
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	if err := s.notifier.SendOTP(ctx, acc.Email, code, s.otpTTL); err != nil {
		s.logger.Error("otp email not sent",
			zap.String("account_id", acc.ID.Hex()), zap.String("role", string(acc.Role)), zap.Error(err))
		return acc, apperrors.NewNotificationFailed(err)
	}

	s.logger.Info("account registered", zap.String("account_id", acc.ID.Hex()), zap.String("role", string(acc.Role)))
	return acc, nil
}

// Verify moves a pending account to verified when code matches and has not expired.
// The returned session carries a token only when the role is configured to get one.
func (s *IdentityService) Verify(ctx context.Context, email, code string) (*Session, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.NewValidationError("Email is required", nil)
	}

	blocked, err := s.limiter.Blocked(ctx, email)
	if err != nil {
		s.logger.Warn("verify limiter unavailable", zap.Error(err))
	}
	if blocked {
		return nil, apperrors.NewTooManyAttempts()
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundMessage("Account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if acc.OTP == nil || *acc.OTP != code {
		_ = s.limiter.Fail(ctx, email)
		return nil, apperrors.NewInvalidCode()
	}
	if acc.OTPExpiresAt == nil || s.now().After(*acc.OTPExpiresAt) {
		return nil, apperrors.NewOTPExpired()
	}

	if err := s.accounts.ClearOTP(ctx, acc.ID, code); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewInvalidCode()
		}
		return nil, fmt.Errorf("clear otp: %w", err)
	}
	_ = s.limiter.Reset(ctx, email)
	acc.OTP, acc.OTPExpiresAt = nil, nil

	session := &Session{Account: acc}
	if s.tokenOnVerify[acc.Role] {
		token, exp, err := s.tokens.Generate(acc.ID.Hex(), string(acc.Role))
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		session.Token, session.ExpiresAt = token, exp
	}

	s.logger.Info("account verified", zap.String("account_id", acc.ID.Hex()), zap.String("role", string(acc.Role)))
	return session, nil
}

// PurgeIfExpired deletes an account of the given role whose OTP is still pending
// and past its expiry. An account registered under another role is reported as missing.
func (s *IdentityService) PurgeIfExpired(ctx context.Context, role models.Role, email string) error {
	acc, err := s.accounts.GetByEmail(ctx, models.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && acc.Role != role) {
		return apperrors.NewNotFoundMessage("Account not found")
	}
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}

	if !s.purgeable(acc) {
		return apperrors.NewNotEligible("Account is either verified or OTP has not expired yet")
	}
	if err := s.accounts.Delete(ctx, acc.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete account: %w", err)
	}

	s.logger.Info("unverified account purged", zap.String("account_id", acc.ID.Hex()))
	return nil
}

// PurgeExpired removes every pending account whose OTP has expired.
func (s *IdentityService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.accounts.DeleteExpiredPending(ctx, s.now())
}

func (s *IdentityService) purgeable(acc *models.Account) bool {
	return acc.OTP != nil && acc.OTPExpiresAt != nil && acc.OTPExpiresAt.Before(s.now())
}

// Login authenticates an account of the given role. Unknown email, wrong role and
// wrong password all yield the same INVALID_CREDENTIALS error.
func (s *IdentityService) Login(ctx context.Context, role models.Role, email, password string) (*Session, error) {
	acc, err := s.accounts.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if acc == nil || acc.Role != role {
		utils.CheckPasswordHash(password, s.dummyPasswordHash())
		return nil, apperrors.NewInvalidCredentials()
	}
	if !utils.CheckPasswordHash(password, acc.Password) {
		return nil, apperrors.NewInvalidCredentials()
	}
	if s.loginNeedsOTP && acc.IsPending() {
		return nil, apperrors.NewAccountPending()
	}

	token, exp, err := s.tokens.Generate(acc.ID.Hex(), string(acc.Role))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Account: acc, Token: token, ExpiresAt: exp}, nil
}

// dummyPasswordHash keeps failed lookups as slow as failed password checks.
func (s *IdentityService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = utils.HashPassword("dentaheal-dummy-password", s.bcryptCost)
	})
	return s.dummyHash
}

// Profile returns the authenticated account.
func (s *IdentityService) Profile(ctx context.Context, accountID string) (*models.Account, error) {
	id, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, apperrors.NewUnauthorized("Invalid account in token")
	}
	acc, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundMessage("Account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return acc, nil
}

// UpdateProfile changes the display name and/or phone number of an account.
func (s *IdentityService) UpdateProfile(ctx context.Context, accountID string, in validation.ProfileUpdate) (*models.Account, error) {
	id, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, apperrors.NewUnauthorized("Invalid account in token")
	}
	if err := validation.ValidateProfileUpdate(in); err != nil {
		return nil, err
	}
	update := repository.ProfileUpdate{Phone: in.Phone}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		update.Name = &name
	}

	acc, err := s.accounts.UpdateProfile(ctx, id, update)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundMessage("Account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return acc, nil
}

// ListDoctors returns the public profiles of all verified doctors.
func (s *IdentityService) ListDoctors(ctx context.Context) ([]models.PublicProfile, error) {
	doctors, err := s.accounts.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	out := make([]models.PublicProfile, 0, len(doctors))
	for i := range doctors {
		out = append(out, doctors[i].Public())
	}
	return out, nil
}

// Tokens exposes the token manager for the auth middleware.
func (s *IdentityService) Tokens() *utils.TokenManager {
	return s.tokens
}
