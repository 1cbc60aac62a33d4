// Package legacy imports users and conversations from the previous
// deployment's storage into the current schema.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cogi/internal/logger"
	"cogi/internal/models"
	"cogi/internal/uuid"
)

// UserRecord is one entry of the legacy users.json file, keyed by email.
type UserRecord struct {
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Stats summarizes an import run.
type Stats struct {
	Read     int `json:"read"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportUsers reads a legacy users.json map and inserts every account that
// does not exist yet. Imported accounts are confirmed and keep their legacy
// password hash; it is upgraded to bcrypt on the next successful login.
func ImportUsers(ctx context.Context, db *gorm.DB, r io.Reader) (*Stats, error) {
	log := logger.Named("legacy")

	var records map[string]UserRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode users file: %w", err)
	}

	emails := make([]string, 0, len(records))
	for email := range records {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	stats := &Stats{Read: len(records)}
	now := time.Now().UTC()
	for _, raw := range emails {
		rec := records[raw]
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" || rec.Password == "" {
			log.Warnw("skipping incomplete legacy user", "email", raw)
			stats.Skipped++
			continue
		}

		user := &models.User{
			Email:       email,
			Password:    rec.Password,
			FirstName:   strings.TrimSpace(rec.FirstName),
			LastName:    strings.TrimSpace(rec.LastName),
			Confirmed:   true,
			ConfirmedAt: &now,
		}
		result := db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
			Create(user)
		if result.Error != nil {
			return stats, fmt.Errorf("failed to import user %s: %w", email, result.Error)
		}
		if result.RowsAffected == 0 {
			stats.Skipped++
			continue
		}
		stats.Imported++
	}

	log.Infow("legacy users imported", "read", stats.Read, "imported", stats.Imported, "skipped", stats.Skipped)
	return stats, nil
}

// Conversation is a row of the legacy conversations table. A legacy chat
// session is the set of rows sharing SessionID.
type Conversation struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	UserEmail string    `gorm:"column:user_email"`
	Message   string    `gorm:"column:message"`
	Sender    string    `gorm:"column:sender"`
	SessionID string    `gorm:"column:session_id"`
	Title     *string   `gorm:"column:title"`
	Timestamp time.Time `gorm:"column:timestamp"`
}

// TableName maps Conversation to the legacy table.
func (Conversation) TableName() string { return "conversations" }

// ImportConversations converts legacy conversation rows read from src into
// threads and messages in dst. src and dst may be the same database. Each
// legacy session becomes one thread owned by the user of its first row;
// sessions whose thread already exists are skipped so the import can be
// re-run. Stats count legacy sessions, not rows.
func ImportConversations(ctx context.Context, src, dst *gorm.DB) (*Stats, error) {
	log := logger.Named("legacy")

	var rows []Conversation
	if err := src.WithContext(ctx).
		Order("session_id ASC, timestamp ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read legacy conversations: %w", err)
	}

	stats := &Stats{}
	owners := make(map[string]string)
	for _, group := range groupBySession(rows) {
		stats.Read++

		email := strings.ToLower(strings.TrimSpace(group[0].UserEmail))
		userID, ok := owners[email]
		if !ok {
			var user models.User
			err := dst.WithContext(ctx).Select("id").Where("email = ?", email).Take(&user).Error
			switch {
			case err == nil:
				userID = user.ID
			case errors.Is(err, gorm.ErrRecordNotFound):
				userID = ""
			default:
				return stats, fmt.Errorf("failed to look up user %s: %w", email, err)
			}
			owners[email] = userID
		}
		if userID == "" {
			log.Warnw("skipping legacy session of unknown user", "session_id", group[0].SessionID, "email", email)
			stats.Skipped++
			continue
		}

		imported, err := importSession(ctx, dst, userID, email, group)
		if err != nil {
			return stats, fmt.Errorf("failed to import session %s: %w", group[0].SessionID, err)
		}
		if !imported {
			stats.Skipped++
			continue
		}
		stats.Imported++
	}

	log.Infow("legacy conversations imported", "read", stats.Read, "imported", stats.Imported, "skipped", stats.Skipped)
	return stats, nil
}

// groupBySession splits rows, already ordered by session id, into sessions.
func groupBySession(rows []Conversation) [][]Conversation {
	var groups [][]Conversation
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && rows[j].SessionID == rows[i].SessionID {
			j++
		}
		groups = append(groups, rows[i:j])
		i = j
	}
	return groups
}

func importSession(ctx context.Context, db *gorm.DB, userID, email string, rows []Conversation) (bool, error) {
	threadID, err := uuid.Parse(rows[0].SessionID)
	if err != nil {
		threadID = uuid.New()
	}

	var imported bool
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Thread{}).Where("id = ?", threadID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		thread := &models.Thread{
			Base:   models.Base{ID: threadID},
			UserID: userID,
			Title:  firstTitle(rows),
		}
		messages := make([]models.Message, 0, len(rows))
		for _, row := range rows {
			if !strings.EqualFold(strings.TrimSpace(row.UserEmail), email) {
				continue
			}
			sender, ok := mapSender(row.Sender)
			if !ok || strings.TrimSpace(row.Message) == "" {
				continue
			}
			at := row.Timestamp.UTC()
			if len(messages) == 0 {
				thread.CreatedAt = at
			}
			messages = append(messages, models.Message{
				ThreadID:  threadID,
				UserID:    userID,
				Seq:       int64(len(messages)),
				Sender:    sender,
				Body:      row.Message,
				CreatedAt: at,
			})
			thread.LastMessageAt = at
		}
		if len(messages) == 0 {
			return nil
		}
		thread.NextSeq = int64(len(messages))
		thread.UpdatedAt = thread.LastMessageAt

		if err := tx.Create(thread).Error; err != nil {
			return err
		}
		if err := tx.Create(&messages).Error; err != nil {
			return err
		}
		imported = true
		return nil
	})
	return imported, err
}

// firstTitle returns the first non-blank title in timestamp order.
func firstTitle(rows []Conversation) *string {
	for _, row := range rows {
		if row.Title != nil && strings.TrimSpace(*row.Title) != "" {
			title := strings.TrimSpace(*row.Title)
			return &title
		}
	}
	return nil
}

func mapSender(s string) (models.Sender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return models.SenderUser, true
	case "bot", "assistant":
		return models.SenderAssistant, true
	}
	return "", false
}
