// Package identity implements the account lifecycle: OTP-gated signup,
// login, session checks, and the email-bound password reset flow.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendix-ai/companion/internal/apperr"
	"github.com/friendix-ai/companion/internal/config"
	"github.com/friendix-ai/companion/internal/mail"
	"github.com/friendix-ai/companion/internal/models"
	"github.com/friendix-ai/companion/internal/otp"
	"github.com/friendix-ai/companion/internal/ratelimit"
	"github.com/friendix-ai/companion/internal/security"
)

// resetTokenExpiry bounds the confirmation token minted by the middle
// verification step of the reset flow.
const resetTokenExpiry = 10 * time.Minute

// Service owns the account lifecycle. All collaborators are injected;
// optional ones (limiter, mirror) may be nil.
type Service struct {
	db        *gorm.DB
	signupOTP otp.Registry
	sender    mail.Sender
	limiter   ratelimit.Limiter
	mirror    Mirror

	jwtSecret string
	jwtExpiry time.Duration

	otpExpiry      time.Duration
	sendsPerMinute int

	now func() time.Time
}

// NewService constructs a Service. sender must be non-nil; limiter and
// mirror may be nil to disable throttling and account mirroring.
func NewService(db *gorm.DB, signupOTP otp.Registry, sender mail.Sender, limiter ratelimit.Limiter, mirror Mirror, cfg config.Config) *Service {
	otpExpiry := cfg.OTP.Expiry
	if otpExpiry <= 0 {
		otpExpiry = otp.DefaultExpiry
	}
	return &Service{
		db:             db,
		signupOTP:      signupOTP,
		sender:         sender,
		limiter:        limiter,
		mirror:         mirror,
		jwtSecret:      cfg.JWT.Secret,
		jwtExpiry:      cfg.JWT.Expiry,
		otpExpiry:      otpExpiry,
		sendsPerMinute: cfg.OTP.SendsPerMinute,
		now:            time.Now,
	}
}

// normalizeEmail is the canonical email form used for every lookup and
// every stored row.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailExists reports whether an account exists for the email.
func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	_, errFind := s.findUser(ctx, email)
	if errFind == nil {
		return true, nil
	}
	if errors.Is(errFind, apperr.ErrNotFound) {
		return false, nil
	}
	return false, errFind
}

// SendSignupOTP issues a signup code for an unregistered email and mails
// it. Issuance is throttled per email.
func (s *Service) SendSignupOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	if errAllow := s.allowSend(ctx, email); errAllow != nil {
		return errAllow
	}

	exists, errExists := s.EmailExists(ctx, email)
	if errExists != nil {
		// The create path re-checks under the unique index, so a failed
		// pre-check only delays the rejection.
		log.WithError(errExists).Warn("existing-account check failed before otp send")
	}
	if exists {
		return fmt.Errorf("identity: email already registered: %w", apperr.ErrConflict)
	}

	code, errIssue := s.signupOTP.Issue(ctx, email)
	if errIssue != nil {
		return fmt.Errorf("identity: issue signup code: %w", errIssue)
	}
	if errSend := s.sender.SendOTP(ctx, email, code); errSend != nil {
		return fmt.Errorf("identity: send signup code: %w", errSend)
	}
	return nil
}

// VerifySignupOTP checks a submitted signup code. A match consumes the
// code, which is what later authorizes account creation.
func (s *Service) VerifySignupOTP(ctx context.Context, email, code string) (otp.Result, error) {
	result, errVerify := s.signupOTP.Verify(ctx, normalizeEmail(email), code)
	if errVerify != nil {
		return otp.Result{}, fmt.Errorf("identity: verify signup code: %w", errVerify)
	}
	return result, nil
}

// Signup creates an account. It refuses while a signup code for the email
// is still outstanding; the code's absence is the proof of verification.
func (s *Service) Signup(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)

	exists, errExists := s.EmailExists(ctx, email)
	if errExists != nil {
		return nil, errExists
	}
	if exists {
		return nil, fmt.Errorf("identity: email already registered: %w", apperr.ErrConflict)
	}

	outstanding, errOutstanding := s.signupOTP.Outstanding(ctx, email)
	if errOutstanding != nil {
		return nil, fmt.Errorf("identity: check outstanding code: %w", errOutstanding)
	}
	if outstanding {
		return nil, fmt.Errorf("identity: signup code not verified: %w", apperr.ErrOTPOutstanding)
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return nil, fmt.Errorf("identity: %w", errHash)
	}

	id, errID := uuid.NewV7()
	if errID != nil {
		return nil, fmt.Errorf("identity: mint account id: %w", errID)
	}
	user := models.User{
		ID:       id.String(),
		Email:    email,
		Password: hash,
	}
	if errCreate := s.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		if isDuplicate(errCreate) {
			return nil, fmt.Errorf("identity: email already registered: %w", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("identity: create account: %w", errCreate)
	}

	s.mirrorAccount(ctx, email, password)
	return &user, nil
}

// mirrorAccount best-effort replicates the account to the external
// identity provider. Failures never affect the signup outcome.
func (s *Service) mirrorAccount(ctx context.Context, email, password string) {
	if s.mirror == nil {
		return
	}
	errMirror := s.mirror.CreateAccount(ctx, email, password)
	if errMirror == nil || errors.Is(errMirror, ErrMirrorExists) {
		return
	}
	log.WithError(errMirror).WithField("email", email).Warn("account mirroring failed")
}

// Login authenticates an account and mints a session token. The legacy
// credential column is honored when the current one is empty.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, errFind := s.findUser(ctx, email)
	if errFind != nil {
		return nil, "", errFind
	}

	credential := user.Password
	if credential == "" {
		credential = user.HashedPassword
	}
	if !security.CheckPassword(password, credential) {
		return nil, "", fmt.Errorf("identity: invalid password: %w", apperr.ErrInvalidCode)
	}

	token := ""
	if s.jwtSecret != "" {
		minted, errMint := security.MintSessionToken(s.jwtSecret, user.ID, user.Email, s.jwtExpiry)
		if errMint != nil {
			return nil, "", fmt.Errorf("identity: %w", errMint)
		}
		token = minted
	}
	return user, token, nil
}

// CheckSession resolves a session to its account. A non-empty token is
// authoritative; otherwise the email is checked directly.
func (s *Service) CheckSession(ctx context.Context, token, email string) (*models.User, error) {
	if strings.TrimSpace(token) != "" {
		claims, errParse := security.ParseSessionToken(s.jwtSecret, token)
		if errParse != nil {
			return nil, fmt.Errorf("identity: invalid session token: %w", apperr.ErrInvalidCode)
		}
		email = claims.Email
	}
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("identity: session token or email required: %w", apperr.ErrValidation)
	}
	return s.findUser(ctx, email)
}

// RequestReset issues a reset code when the email has an account. The
// outcome is indistinguishable for unknown emails so the endpoint cannot
// be used to enumerate accounts.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	_, errFind := s.findUser(ctx, email)
	if errors.Is(errFind, apperr.ErrNotFound) {
		return nil
	}
	if errFind != nil {
		return errFind
	}

	code, errGen := otp.GenerateCode()
	if errGen != nil {
		return fmt.Errorf("identity: %w", errGen)
	}
	entry := models.PasswordReset{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().UTC().Add(s.otpExpiry),
	}
	if errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at", "verified", "token", "token_expires_at"}),
	}).Create(&entry).Error; errUpsert != nil {
		return fmt.Errorf("identity: store reset code: %w", errUpsert)
	}

	if errSend := s.sender.SendOTP(ctx, email, code); errSend != nil {
		return fmt.Errorf("identity: send reset code: %w", errSend)
	}
	return nil
}

// VerifyResetOTP checks a reset code without consuming it and mints a
// short-lived confirmation token. The final password update still
// validates the original code.
func (s *Service) VerifyResetOTP(ctx context.Context, email, code string) (string, error) {
	entry, errFind := s.findResetEntry(ctx, email, code)
	if errFind != nil {
		return "", errFind
	}

	token, errToken := security.RandomToken(32)
	if errToken != nil {
		return "", fmt.Errorf("identity: %w", errToken)
	}
	tokenExpiry := s.now().UTC().Add(resetTokenExpiry)
	if errUpdate := s.db.WithContext(ctx).Model(&models.PasswordReset{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"verified":         true,
			"token":            token,
			"token_expires_at": tokenExpiry,
		}).Error; errUpdate != nil {
		return "", fmt.Errorf("identity: mark reset verified: %w", errUpdate)
	}
	return token, nil
}

// UpdatePassword finishes the reset flow: it validates the original code,
// rewrites the credential, and purges every reset entry for the email.
func (s *Service) UpdatePassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)

	if _, errFind := s.findResetEntry(ctx, email, code); errFind != nil {
		return errFind
	}

	hash, errHash := security.HashPassword(newPassword)
	if errHash != nil {
		return fmt.Errorf("identity: %w", errHash)
	}
	if errUpdate := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Update("password", hash).Error; errUpdate != nil {
		return fmt.Errorf("identity: update password: %w", errUpdate)
	}

	if errPurge := s.db.WithContext(ctx).
		Where("email = ?", email).
		Delete(&models.PasswordReset{}).Error; errPurge != nil {
		return fmt.Errorf("identity: purge reset entries: %w", errPurge)
	}
	return nil
}

// findResetEntry resolves an unexpired reset entry matching email and
// code. Any miss collapses into the same generic error.
func (s *Service) findResetEntry(ctx context.Context, email, code string) (*models.PasswordReset, error) {
	var entry models.PasswordReset
	errFind := s.db.WithContext(ctx).
		Where("email = ? AND code = ? AND expires_at > ?", normalizeEmail(email), strings.TrimSpace(code), s.now().UTC()).
		First(&entry).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("identity: invalid or expired reset code: %w", apperr.ErrInvalidCode)
	}
	if errFind != nil {
		return nil, fmt.Errorf("identity: load reset entry: %w", errFind)
	}
	return &entry, nil
}

// findUser loads an account by email.
func (s *Service) findUser(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	errFind := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("identity: account not found: %w", apperr.ErrNotFound)
	}
	if errFind != nil {
		return nil, fmt.Errorf("identity: load account: %w", errFind)
	}
	return &user, nil
}

// allowSend applies the per-email issuance budget. A limiter outage fails
// open; throttling is protection, not correctness.
func (s *Service) allowSend(ctx context.Context, email string) error {
	if s.limiter == nil || s.sendsPerMinute <= 0 {
		return nil
	}
	result, errAllow := s.limiter.Allow(ctx, "otp:send:"+email, s.sendsPerMinute, s.now())
	if errAllow != nil {
		log.WithError(errAllow).Warn("otp rate limit check failed; allowing send")
		return nil
	}
	if !result.Allowed {
		return fmt.Errorf("identity: too many otp requests: %w", apperr.ErrRateLimited)
	}
	return nil
}

// isDuplicate reports whether a create failed on the email unique index.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
