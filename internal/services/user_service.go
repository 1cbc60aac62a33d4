package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "cogi/internal/errors"
	"cogi/internal/logger"
	"cogi/internal/models"
	"cogi/internal/password"
)

// userService is the credential store. Emails are normalized to lower case
// on every read and write.
type userService struct {
	db     *gorm.DB
	hasher *password.Hasher
	now    func() time.Time
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB, hasher *password.Hasher) UserServicer {
	return &userService{db: db, hasher: hasher, now: time.Now}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser stores a new unconfirmed user. The unique index on email makes
// the insert an atomic compare-and-insert; a violation is DUPLICATE_EMAIL.
func (s *userService) CreateUser(input CreateUserInput) (*models.User, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email and password are required")
	}

	// Check if user with email exists
	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Email:       email,
		Password:    hashed,
		FirstName:   strings.TrimSpace(input.FirstName),
		LastName:    strings.TrimSpace(input.LastName),
		Gender:      input.Gender,
		DateOfBirth: input.DateOfBirth,
	}

	if err := s.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *userService) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return &user, nil
}

// CheckPassword reports whether password matches the user's stored hash.
// Legacy or outdated hashes are upgraded in place after a successful match.
func (s *userService) CheckPassword(user *models.User, plain string) bool {
	ok, needsRehash, err := s.hasher.Verify(user.Password, plain)
	if err != nil {
		logger.Get().Warnw("password verification failed", "user_id", user.ID, "error", err)
		return false
	}
	if ok && needsRehash {
		if hashed, err := s.hasher.Hash(plain); err == nil {
			if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Update("password", hashed).Error; err != nil {
				logger.Get().Warnw("failed to upgrade password hash", "user_id", user.ID, "error", err)
			} else {
				user.Password = hashed
			}
		}
	}
	return ok
}

// MarkConfirmed sets the confirmation flag. Confirming twice is harmless.
func (s *userService) MarkConfirmed(email string) (*models.User, error) {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if user.Confirmed {
		return user, nil
	}

	now := s.now()
	if err := s.db.Model(user).Updates(map[string]interface{}{
		"confirmed":    true,
		"confirmed_at": now,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	user.Confirmed = true
	user.ConfirmedAt = &now
	return user, nil
}

// ResetPassword replaces the user's password and clears failed attempts.
func (s *userService) ResetPassword(email, newPassword string) error {
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := s.db.Model(&models.User{}).
		Where("email = ?", NormalizeEmail(email)).
		Updates(map[string]interface{}{
			"password":              hashed,
			"failed_login_attempts": 0,
		})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// RecordLoginAttempt resets the failed-attempt counter on success or
// increments it on failure, and returns the new counter value. The
// increment is a single UPDATE so concurrent failures are all counted.
func (s *userService) RecordLoginAttempt(email string, success bool) (int, error) {
	email = NormalizeEmail(email)
	var attempts int

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var updates map[string]interface{}
		if success {
			updates = map[string]interface{}{
				"failed_login_attempts": 0,
				"last_login_at":         s.now(),
			}
		} else {
			updates = map[string]interface{}{
				"failed_login_attempts": gorm.Expr("failed_login_attempts + ?", 1),
			}
		}

		result := tx.Model(&models.User{}).Where("email = ?", email).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrUserNotFound
		}

		return tx.Model(&models.User{}).
			Where("email = ?", email).
			Select("failed_login_attempts").
			Scan(&attempts).Error
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return 0, err
		}
		return 0, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return attempts, nil
}

// ResetLoginAttempts clears the failed-attempt counter, unlocking the account.
func (s *userService) ResetLoginAttempts(email string) error {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		return err
	}
	if err := s.db.Model(user).Update("failed_login_attempts", 0).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// isUniqueViolation detects unique-index violations across drivers. gorm
// translates them when TranslateError is enabled; the string checks cover
// connections opened without it.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
