package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"cogi/internal/captcha"
	apperrors "cogi/internal/errors"
	"cogi/internal/logger"
	"cogi/internal/mail"
	"cogi/internal/models"
	"cogi/internal/password"
	"cogi/internal/session"
	"cogi/internal/tokens"
	"cogi/internal/validator"
)

// Age limits for registration.
const (
	minAge = 13
	maxAge = 100
)

// AuthConfig holds the authenticator's policy.
type AuthConfig struct {
	MaxLoginAttempts int
	IdleTimeout      time.Duration
	PublicBaseURL    string
	// PasswordResetURL prefixes the token in reset emails. Empty means
	// PublicBaseURL + "/reset/".
	PasswordResetURL string
}

// authService turns credentials into time-boxed sessions and runs the
// confirmation and password reset flows.
type authService struct {
	users    UserServicer
	sessions session.Store
	tokens   *tokens.Issuer
	mailer   mail.Mailer
	captcha  captcha.Verifier
	audit    AuditServicer
	cfg      AuthConfig
	now      func() time.Time
}

// NewAuthService creates a new AuthServicer.
func NewAuthService(
	users UserServicer,
	sessions session.Store,
	issuer *tokens.Issuer,
	mailer mail.Mailer,
	verifier captcha.Verifier,
	audit AuditServicer,
	cfg AuthConfig,
) AuthServicer {
	return &authService{
		users:    users,
		sessions: sessions,
		tokens:   issuer,
		mailer:   mailer,
		captcha:  verifier,
		audit:    audit,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Register verifies the CAPTCHA, validates date of birth and password
// strength, creates an unconfirmed user and mails a confirmation link. A
// failed mail send does not undo the registration; it is reported as a
// warning on the result.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	ok, err := s.captcha.Verify(ctx, input.CaptchaToken, input.RemoteIP)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCaptchaUnavailable, err)
	}
	if !ok {
		return nil, apperrors.ErrCaptchaFailed
	}

	dob, err := ParseDateOfBirth(input.DateOfBirth, s.now())
	if err != nil {
		return nil, err
	}

	if !password.IsStrong(input.Password) {
		return nil, apperrors.ErrWeakPassword
	}

	user, err := s.users.CreateUser(CreateUserInput{
		Email:       input.Email,
		Password:    input.Password,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Gender:      strings.ToLower(input.Gender),
		DateOfBirth: &dob,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(AuditEvent{
		UserID:       user.ID,
		Action:       models.AuditActionRegister,
		ResourceType: "user",
		ResourceID:   user.ID,
		IPAddress:    input.RemoteIP,
	})

	result := &RegisterResult{User: user}
	if err := s.sendLink(ctx, user.Email, tokens.PurposeConfirm); err != nil {
		logger.Get().Warnw("failed to send confirmation email", "user_id", user.ID, "error", err)
		result.Warning = "Your account was created but the confirmation email could not be sent. Please try again later."
	}
	return result, nil
}

// Confirm marks the token's user as confirmed.
func (s *authService) Confirm(_ context.Context, token string) (*models.User, error) {
	email, err := s.tokens.Verify(token, tokens.PurposeConfirm)
	if err != nil {
		return nil, err
	}

	user, err := s.users.MarkConfirmed(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrTokenInvalid
		}
		return nil, err
	}

	s.audit.Log(AuditEvent{UserID: user.ID, Action: models.AuditActionConfirm, ResourceType: "user", ResourceID: user.ID})
	return user, nil
}

// RequestPasswordReset mails a reset link to a registered address.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		return err
	}

	if err := s.sendLink(ctx, user.Email, tokens.PurposeReset); err != nil {
		return apperrors.Wrap(apperrors.ErrMailUnavailable, err)
	}
	return nil
}

// CompletePasswordReset stores a new password for the token's user.
func (s *authService) CompletePasswordReset(_ context.Context, token, newPassword, confirm string) error {
	if newPassword != confirm {
		return apperrors.ErrPasswordMismatch
	}
	if !password.IsStrong(newPassword) {
		return apperrors.ErrWeakPassword
	}

	email, err := s.tokens.Verify(token, tokens.PurposeReset)
	if err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return apperrors.ErrTokenInvalid
		}
		return err
	}

	if err := s.users.ResetPassword(email, newPassword); err != nil {
		return err
	}

	s.audit.Log(AuditEvent{UserID: user.ID, Action: models.AuditActionPasswordReset, ResourceType: "user", ResourceID: user.ID})
	return nil
}

// Login checks, in order: the user exists, is confirmed, is not locked out
// and supplied the right password. A wrong password increments the
// failed-attempt counter. On success the counter is reset and a new session
// is stored with last activity set to now.
func (s *authService) Login(ctx context.Context, email, plain, ipAddress string) (*session.Session, *models.User, error) {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			s.audit.Log(AuditEvent{
				Action:       models.AuditActionLoginFailed,
				ResourceType: "user",
				IPAddress:    ipAddress,
				Changes:      map[string]interface{}{"reason": "unknown_user"},
			})
			return nil, nil, apperrors.ErrUnknownUser
		}
		return nil, nil, err
	}

	if !user.Confirmed {
		return nil, nil, apperrors.ErrUnconfirmed
	}

	if user.FailedLoginAttempts >= s.cfg.MaxLoginAttempts {
		return nil, nil, apperrors.ErrAccountLocked
	}

	if !s.users.CheckPassword(user, plain) {
		attempts, err := s.users.RecordLoginAttempt(user.Email, false)
		if err != nil {
			return nil, nil, err
		}
		s.audit.Log(AuditEvent{
			UserID:       user.ID,
			Action:       models.AuditActionLoginFailed,
			ResourceType: "user",
			ResourceID:   user.ID,
			IPAddress:    ipAddress,
			Changes:      map[string]interface{}{"failed_login_attempts": attempts},
		})
		if attempts >= s.cfg.MaxLoginAttempts {
			logger.Get().Warnw("account locked after failed logins", "user_id", user.ID, "attempts", attempts)
			s.audit.Log(AuditEvent{UserID: user.ID, Action: models.AuditActionLockout, ResourceType: "user", ResourceID: user.ID, IPAddress: ipAddress})
		}
		return nil, nil, apperrors.ErrInvalidCredentials
	}

	if _, err := s.users.RecordLoginAttempt(user.Email, true); err != nil {
		return nil, nil, err
	}

	id, err := session.NewID()
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	now := s.now()
	sess := &session.Session{
		ID:           id,
		UserID:       user.ID,
		Email:        user.Email,
		LastActivity: now,
		CreatedAt:    now,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	s.audit.Log(AuditEvent{UserID: user.ID, Action: models.AuditActionLogin, ResourceType: "session", IPAddress: ipAddress})
	return sess, user, nil
}

// Touch validates a session on each request. A session idle for longer than
// the window is deleted and reported as SESSION_EXPIRED; an idle time equal
// to the window is still valid. Valid sessions get last activity set to now.
func (s *authService) Touch(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	now := s.now()
	if now.Sub(sess.LastActivity) > s.cfg.IdleTimeout {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			logger.Get().Warnw("failed to delete expired session", "user_id", sess.UserID, "error", err)
		}
		return nil, apperrors.ErrSessionExpired
	}

	if err := s.sessions.Touch(ctx, sessionID, now); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	sess.LastActivity = now
	return sess, nil
}

// Logout discards the session. Logging out of a missing session succeeds.
func (s *authService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	if sess != nil {
		s.audit.Log(AuditEvent{UserID: sess.UserID, Action: models.AuditActionLogout, ResourceType: "session"})
	}
	return nil
}

// SetActiveThread records the session's active thread without touching any
// other session field.
func (s *authService) SetActiveThread(ctx context.Context, sessionID, threadID string) error {
	if err := s.sessions.SetActiveThread(ctx, sessionID, threadID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return apperrors.ErrUnauthorized
		}
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *authService) sendLink(ctx context.Context, email string, purpose tokens.Purpose) error {
	token, err := s.tokens.Issue(email, purpose)
	if err != nil {
		return err
	}

	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	var msg mail.Message
	switch purpose {
	case tokens.PurposeConfirm:
		msg = mail.ConfirmationMessage(email, base+"/api/v1/auth/confirm/"+token)
	case tokens.PurposeReset:
		resetURL := s.cfg.PasswordResetURL
		if resetURL == "" {
			resetURL = base + "/reset/"
		}
		msg = mail.PasswordResetMessage(email, resetURL+token)
	}
	return s.mailer.Send(ctx, msg)
}

// ParseDateOfBirth parses a YYYY-MM-DD date and checks that it is not in the
// future and gives an age between 13 and 100 inclusive on today's date.
func ParseDateOfBirth(value string, today time.Time) (time.Time, error) {
	dob, err := time.Parse(validator.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidDateOfBirth, "Invalid date format for date of birth")
	}

	ty, tm, td := today.Date()
	todayDate := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	if dob.After(todayDate) {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidDateOfBirth, "Date of birth cannot be in the future")
	}

	age := ty - dob.Year()
	if tm < dob.Month() || (tm == dob.Month() && td < dob.Day()) {
		age--
	}
	if age < minAge {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidDateOfBirth, "You must be at least 13 years old to register")
	}
	if age > maxAge {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidDateOfBirth, "Please enter a realistic date of birth")
	}
	return dob, nil
}
