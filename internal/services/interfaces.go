package services

import (
	"context"
	"time"

	"cogi/internal/completion"
	"cogi/internal/models"
	"cogi/internal/pagination"
	"cogi/internal/session"
)

// CreateUserInput holds the fields of a new user record. Password is the
// plaintext; it is hashed before storage.
type CreateUserInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Gender      string
	DateOfBirth *time.Time
}

// UserServicer defines the contract for the credential store.
type UserServicer interface {
	CreateUser(input CreateUserInput) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	CheckPassword(user *models.User, password string) bool
	MarkConfirmed(email string) (*models.User, error)
	ResetPassword(email, newPassword string) error
	RecordLoginAttempt(email string, success bool) (int, error)
	ResetLoginAttempts(email string) error
}

// RegisterInput is a registration request after request-shape validation.
type RegisterInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Gender       string
	DateOfBirth  string // YYYY-MM-DD
	CaptchaToken string
	RemoteIP     string
}

// RegisterResult is returned by a successful registration. Warning is set
// when the account exists but the confirmation email could not be sent.
type RegisterResult struct {
	User    *models.User
	Warning string
}

// AuthServicer defines the contract for the session authenticator.
type AuthServicer interface {
	Register(ctx context.Context, input RegisterInput) (*RegisterResult, error)
	Confirm(ctx context.Context, token string) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, token, password, confirm string) error
	Login(ctx context.Context, email, password, ipAddress string) (*session.Session, *models.User, error)
	Touch(ctx context.Context, sessionID string) (*session.Session, error)
	Logout(ctx context.Context, sessionID string) error
	SetActiveThread(ctx context.Context, sessionID, threadID string) error
}

// ThreadSummary is one entry of a user's thread list.
type ThreadSummary struct {
	ID            string    `json:"id"`
	Title         *string   `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	MessageCount  int64     `json:"message_count"`
}

// TurnResult holds the two messages written by one chat turn.
type TurnResult struct {
	ThreadID         string          `json:"thread_id"`
	UserMessage      *models.Message `json:"user_message"`
	AssistantMessage *models.Message `json:"assistant_message"`
	Fallback         bool            `json:"fallback"`
}

// ThreadServicer defines the contract for the conversation thread manager.
type ThreadServicer interface {
	ListThreads(ctx context.Context, userID string) ([]ThreadSummary, error)
	ResolveActiveThread(ctx context.Context, s *session.Session, requestedThreadID string, forceNew bool) (string, error)
	AppendTurn(ctx context.Context, userID, threadID, text string) (*TurnResult, error)
	GetHistory(ctx context.Context, userID, threadID string) ([]models.Message, error)
	Rename(ctx context.Context, userID, threadID, title string) (*models.Thread, error)
	Delete(ctx context.Context, userID, threadID string) error
}

// ReplyGenerator produces the assistant side of a chat turn.
type ReplyGenerator interface {
	Generate(ctx context.Context, history []completion.Message, newMessage string) completion.Reply
}

// LedgerServicer defines the contract for feedback and newsletter subscriptions.
type LedgerServicer interface {
	SubmitFeedback(name, message string) (*models.Feedback, error)
	ListFeedback(page pagination.PageRequest) (*pagination.PageResponse[models.Feedback], error)
	Subscribe(email string) (bool, error)
	ListSubscribers(page pagination.PageRequest) (*pagination.PageResponse[models.Subscriber], error)
}

// AuditEvent is one security-relevant action. UserID is empty for events
// about unknown accounts.
type AuditEvent struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	Changes      map[string]interface{}
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(event AuditEvent)
}
