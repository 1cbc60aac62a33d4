package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"cogi/internal/completion"
	apperrors "cogi/internal/errors"
	"cogi/internal/locks"
	"cogi/internal/logger"
	"cogi/internal/models"
	"cogi/internal/session"
	"cogi/internal/uuid"
)

// threadService manages per-user conversation threads. Appends to one
// thread are serialized by a lock keyed on the thread id.
type threadService struct {
	db        *gorm.DB
	generator ReplyGenerator
	locker    locks.Locker
	audit     AuditServicer
	now       func() time.Time
}

// NewThreadService creates a new ThreadServicer.
func NewThreadService(db *gorm.DB, generator ReplyGenerator, locker locks.Locker, audit AuditServicer) ThreadServicer {
	return &threadService{
		db:        db,
		generator: generator,
		locker:    locker,
		audit:     audit,
		now:       time.Now,
	}
}

// ListThreads returns the user's threads, most recently active first.
func (s *threadService) ListThreads(ctx context.Context, userID string) ([]ThreadSummary, error) {
	summaries := []ThreadSummary{}
	err := s.db.WithContext(ctx).
		Model(&models.Thread{}).
		Select("threads.id, threads.title, threads.created_at, threads.last_message_at, "+
			"(SELECT COUNT(*) FROM messages WHERE messages.thread_id = threads.id) AS message_count").
		Where("threads.user_id = ?", userID).
		Order("threads.last_message_at DESC").
		Order("threads.id DESC").
		Scan(&summaries).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return summaries, nil
}

// ResolveActiveThread picks the thread a chat request operates on and
// records it on the session. An owned requested thread wins; a requested id
// the user does not own is ignored. Otherwise forceNew, or a session with no
// active thread, yields a fresh id whose thread row is written with the
// first message. The caller persists the session.
func (s *threadService) ResolveActiveThread(ctx context.Context, sess *session.Session, requestedThreadID string, forceNew bool) (string, error) {
	if requestedThreadID != "" {
		owned, err := s.owns(ctx, sess.UserID, requestedThreadID)
		if err != nil {
			return "", err
		}
		if owned {
			sess.ActiveThreadID = requestedThreadID
			return requestedThreadID, nil
		}
		logger.Get().Debugw("ignoring unowned thread id", "user_id", sess.UserID, "thread_id", requestedThreadID)
	}

	if forceNew || sess.ActiveThreadID == "" {
		sess.ActiveThreadID = uuid.New()
	}
	return sess.ActiveThreadID, nil
}

// AppendTurn stores the user's message, generates a reply from the thread's
// prior history and stores the reply. Both writes happen under the thread
// lock so concurrent turns on one thread never interleave. When the reply
// cannot be stored the user message is kept and STORE_UNAVAILABLE returned.
// Once the lock is held the turn runs to completion even if ctx is canceled.
func (s *threadService) AppendTurn(ctx context.Context, userID, threadID, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.ErrEmptyMessage
	}
	if threadID == "" {
		return nil, apperrors.ErrMissingIdentifier
	}

	unlock, err := s.locker.Lock(ctx, threadID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	var (
		history []models.Message
		userMsg *models.Message
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		at := s.now()
		thread, err := s.loadOrCreateThread(tx, userID, threadID, at)
		if err != nil {
			return err
		}

		if err := tx.Where("thread_id = ?", threadID).
			Order("created_at ASC").Order("seq ASC").
			Find(&history).Error; err != nil {
			return err
		}

		userMsg, err = appendMessage(tx, thread, models.SenderUser, text, notBefore(at, thread.LastMessageAt))
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}

	reply := s.generator.Generate(ctx, toCompletionHistory(history), text)

	var assistantMsg *models.Message
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var thread models.Thread
		if err := tx.Where("id = ?", threadID).First(&thread).Error; err != nil {
			return err
		}

		var err error
		assistantMsg, err = appendMessage(tx, &thread, models.SenderAssistant, reply.Text, notBefore(s.now(), thread.LastMessageAt))
		return err
	})
	if err != nil {
		logger.Get().Errorw("failed to store assistant reply",
			"error", err,
			"user_id", userID,
			"thread_id", threadID,
			"user_message_id", userMsg.ID,
		)
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	return &TurnResult{
		ThreadID:         threadID,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Fallback:         reply.Fallback,
	}, nil
}

// GetHistory returns a thread's messages oldest first. An unknown thread, or
// one owned by another user, has an empty history.
func (s *threadService) GetHistory(ctx context.Context, userID, threadID string) ([]models.Message, error) {
	if threadID == "" {
		return nil, apperrors.ErrMissingIdentifier
	}

	messages := []models.Message{}
	err := s.db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Order("created_at ASC").Order("seq ASC").
		Find(&messages).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return messages, nil
}

// Rename sets a thread's title.
func (s *threadService) Rename(ctx context.Context, userID, threadID, title string) (*models.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.ErrEmptyTitle
	}
	if threadID == "" {
		return nil, apperrors.ErrMissingIdentifier
	}

	var thread models.Thread
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", threadID, userID).First(&thread).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrThreadNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	oldTitle := thread.Title
	if err := s.db.WithContext(ctx).Model(&thread).Update("title", title).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	thread.Title = &title

	changes := map[string]interface{}{"title": title}
	if oldTitle != nil {
		changes["old_title"] = *oldTitle
	}
	s.audit.Log(AuditEvent{
		UserID:       userID,
		Action:       models.AuditActionRenameThread,
		ResourceType: "thread",
		ResourceID:   threadID,
		Changes:      changes,
	})
	return &thread, nil
}

// Delete removes a thread and all its messages. Deleting a thread that does
// not exist, or is not the user's, changes nothing and succeeds.
func (s *threadService) Delete(ctx context.Context, userID, threadID string) error {
	if threadID == "" {
		return apperrors.ErrMissingIdentifier
	}

	unlock, err := s.locker.Lock(ctx, threadID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	defer unlock()

	deleted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var thread models.Thread
		if err := tx.Where("id = ? AND user_id = ?", threadID, userID).First(&thread).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Where("thread_id = ?", threadID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&thread).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	if deleted {
		s.audit.Log(AuditEvent{
			UserID:       userID,
			Action:       models.AuditActionDeleteThread,
			ResourceType: "thread",
			ResourceID:   threadID,
		})
	}
	return nil
}

func (s *threadService) owns(ctx context.Context, userID, threadID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Thread{}).
		Where("id = ? AND user_id = ?", threadID, userID).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

// loadOrCreateThread returns the thread row, creating it at the given
// instant on first use.
func (s *threadService) loadOrCreateThread(tx *gorm.DB, userID, threadID string, now time.Time) (*models.Thread, error) {
	var thread models.Thread
	err := tx.Where("id = ?", threadID).First(&thread).Error
	if err == nil {
		if thread.UserID != userID {
			return nil, apperrors.ErrThreadNotFound
		}
		return &thread, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	thread = models.Thread{
		Base:          models.Base{ID: threadID, CreatedAt: now},
		UserID:        userID,
		LastMessageAt: now,
	}
	if err := tx.Create(&thread).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

// appendMessage writes the thread's next message and advances its sequence
// and activity timestamp.
func appendMessage(tx *gorm.DB, thread *models.Thread, sender models.Sender, body string, at time.Time) (*models.Message, error) {
	msg := &models.Message{
		ThreadID:  thread.ID,
		UserID:    thread.UserID,
		Seq:       thread.NextSeq,
		Sender:    sender,
		Body:      body,
		CreatedAt: at,
	}
	if err := tx.Create(msg).Error; err != nil {
		return nil, err
	}

	if err := tx.Model(&models.Thread{}).Where("id = ?", thread.ID).Updates(map[string]interface{}{
		"next_seq":        thread.NextSeq + 1,
		"last_message_at": at,
	}).Error; err != nil {
		return nil, err
	}
	thread.NextSeq++
	thread.LastMessageAt = at
	return msg, nil
}

// notBefore keeps message timestamps monotonic within a thread when the
// wall clock steps backwards.
func notBefore(at, floor time.Time) time.Time {
	if at.Before(floor) {
		return floor
	}
	return at
}

func toCompletionHistory(messages []models.Message) []completion.Message {
	history := make([]completion.Message, 0, len(messages))
	for _, m := range messages {
		role := completion.RoleUser
		if m.Sender == models.SenderAssistant {
			role = completion.RoleAssistant
		}
		history = append(history, completion.Message{Role: role, Content: m.Body})
	}
	return history
}

// storeError passes AppErrors through and wraps anything else as a store failure.
func storeError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
}
