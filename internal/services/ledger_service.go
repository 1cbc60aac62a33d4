package services

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "cogi/internal/errors"
	"cogi/internal/models"
	"cogi/internal/pagination"
)

// FeedbackPageSize is the default page size of the public feedback list.
const FeedbackPageSize = 10

// ledgerService stores visitor feedback and newsletter subscriptions.
type ledgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB) LedgerServicer {
	return &ledgerService{db: db}
}

// SubmitFeedback appends a feedback entry. Duplicate entries are allowed.
func (s *ledgerService) SubmitFeedback(name, message string) (*models.Feedback, error) {
	name = strings.TrimSpace(name)
	message = strings.TrimSpace(message)
	if name == "" || message == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name and message are required")
	}

	entry := &models.Feedback{Name: name, Message: message}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return entry, nil
}

// ListFeedback returns feedback newest first.
func (s *ledgerService) ListFeedback(page pagination.PageRequest) (*pagination.PageResponse[models.Feedback], error) {
	page.DefaultsWithSize(FeedbackPageSize)

	var totalItems int64
	base := s.db.Model(&models.Feedback{})
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	var entries []models.Feedback
	if err := base.Order("submitted_at DESC").Order("id DESC").
		Scopes(pagination.Paginate(page)).
		Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	result := pagination.NewPageResponse(entries, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// Subscribe adds an email to the newsletter list. It reports whether the
// address was new; subscribing twice is not an error.
func (s *ledgerService) Subscribe(email string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return false, apperrors.WithMessage(apperrors.ErrInvalidInput, "a valid email is required")
	}

	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&models.Subscriber{Email: email})
	if result.Error != nil {
		return false, apperrors.Wrap(apperrors.ErrStoreUnavailable, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListSubscribers returns subscriptions newest first.
func (s *ledgerService) ListSubscribers(page pagination.PageRequest) (*pagination.PageResponse[models.Subscriber], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Subscriber{})
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	var subscribers []models.Subscriber
	if err := base.Order("created_at DESC").Order("id DESC").
		Scopes(pagination.Paginate(page)).
		Find(&subscribers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	result := pagination.NewPageResponse(subscribers, page.Page, page.PageSize, totalItems)
	return &result, nil
}
