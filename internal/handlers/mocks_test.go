package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"cogi/internal/middleware"
	"cogi/internal/models"
	"cogi/internal/pagination"
	"cogi/internal/services"
	"cogi/internal/session"
	"cogi/internal/validator"
)

// --- mock services ---

type mockUserService struct {
	createUserFn         func(input services.CreateUserInput) (*models.User, error)
	getUserByEmailFn     func(email string) (*models.User, error)
	getUserByIDFn        func(id string) (*models.User, error)
	resetLoginAttemptsFn func(email string) error
}

func (m *mockUserService) CreateUser(input services.CreateUserInput) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(input)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByEmail(email string) (*models.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(email)
	}
	return &models.User{Email: email}, nil
}

func (m *mockUserService) GetUserByID(id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{Base: models.Base{ID: id}}, nil
}

func (m *mockUserService) CheckPassword(*models.User, string) bool { return true }

func (m *mockUserService) MarkConfirmed(email string) (*models.User, error) {
	return &models.User{Email: email, Confirmed: true}, nil
}

func (m *mockUserService) ResetPassword(string, string) error { return nil }

func (m *mockUserService) RecordLoginAttempt(string, bool) (int, error) { return 0, nil }

func (m *mockUserService) ResetLoginAttempts(email string) error {
	if m.resetLoginAttemptsFn != nil {
		return m.resetLoginAttemptsFn(email)
	}
	return nil
}

type mockAuthService struct {
	registerFn              func(input services.RegisterInput) (*services.RegisterResult, error)
	confirmFn               func(token string) (*models.User, error)
	requestPasswordResetFn  func(email string) error
	completePasswordResetFn func(token, password, confirm string) error
	loginFn                 func(email, password string) (*session.Session, *models.User, error)
	logoutFn                func(id string) error
	setActiveThreadFn       func(sessionID, threadID string) error
}

func (m *mockAuthService) Register(_ context.Context, input services.RegisterInput) (*services.RegisterResult, error) {
	if m.registerFn != nil {
		return m.registerFn(input)
	}
	return &services.RegisterResult{User: &models.User{Email: input.Email}}, nil
}

func (m *mockAuthService) Confirm(_ context.Context, token string) (*models.User, error) {
	if m.confirmFn != nil {
		return m.confirmFn(token)
	}
	return &models.User{Confirmed: true}, nil
}

func (m *mockAuthService) RequestPasswordReset(_ context.Context, email string) error {
	if m.requestPasswordResetFn != nil {
		return m.requestPasswordResetFn(email)
	}
	return nil
}

func (m *mockAuthService) CompletePasswordReset(_ context.Context, token, password, confirm string) error {
	if m.completePasswordResetFn != nil {
		return m.completePasswordResetFn(token, password, confirm)
	}
	return nil
}

func (m *mockAuthService) Login(_ context.Context, email, password, _ string) (*session.Session, *models.User, error) {
	if m.loginFn != nil {
		return m.loginFn(email, password)
	}
	return &session.Session{ID: "sess"}, &models.User{Email: email}, nil
}

func (m *mockAuthService) Touch(_ context.Context, id string) (*session.Session, error) {
	return &session.Session{ID: id}, nil
}

func (m *mockAuthService) Logout(_ context.Context, id string) error {
	if m.logoutFn != nil {
		return m.logoutFn(id)
	}
	return nil
}

func (m *mockAuthService) SetActiveThread(_ context.Context, sessionID, threadID string) error {
	if m.setActiveThreadFn != nil {
		return m.setActiveThreadFn(sessionID, threadID)
	}
	return nil
}

type mockThreadService struct {
	listThreadsFn func(userID string) ([]services.ThreadSummary, error)
	resolveFn     func(s *session.Session, requested string, forceNew bool) (string, error)
	appendTurnFn  func(userID, threadID, text string) (*services.TurnResult, error)
	getHistoryFn  func(userID, threadID string) ([]models.Message, error)
	renameFn      func(userID, threadID, title string) (*models.Thread, error)
	deleteFn      func(userID, threadID string) error
}

func (m *mockThreadService) ListThreads(_ context.Context, userID string) ([]services.ThreadSummary, error) {
	if m.listThreadsFn != nil {
		return m.listThreadsFn(userID)
	}
	return []services.ThreadSummary{}, nil
}

func (m *mockThreadService) ResolveActiveThread(_ context.Context, s *session.Session, requested string, forceNew bool) (string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(s, requested, forceNew)
	}
	if s.ActiveThreadID == "" {
		s.ActiveThreadID = "thread-new"
	}
	return s.ActiveThreadID, nil
}

func (m *mockThreadService) AppendTurn(_ context.Context, userID, threadID, text string) (*services.TurnResult, error) {
	if m.appendTurnFn != nil {
		return m.appendTurnFn(userID, threadID, text)
	}
	return &services.TurnResult{ThreadID: threadID}, nil
}

func (m *mockThreadService) GetHistory(_ context.Context, userID, threadID string) ([]models.Message, error) {
	if m.getHistoryFn != nil {
		return m.getHistoryFn(userID, threadID)
	}
	return []models.Message{}, nil
}

func (m *mockThreadService) Rename(_ context.Context, userID, threadID, title string) (*models.Thread, error) {
	if m.renameFn != nil {
		return m.renameFn(userID, threadID, title)
	}
	return &models.Thread{Base: models.Base{ID: threadID}, Title: &title}, nil
}

func (m *mockThreadService) Delete(_ context.Context, userID, threadID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(userID, threadID)
	}
	return nil
}

type mockLedgerService struct {
	submitFeedbackFn  func(name, message string) (*models.Feedback, error)
	listFeedbackFn    func(page pagination.PageRequest) (*pagination.PageResponse[models.Feedback], error)
	subscribeFn       func(email string) (bool, error)
	listSubscribersFn func(page pagination.PageRequest) (*pagination.PageResponse[models.Subscriber], error)
}

func (m *mockLedgerService) SubmitFeedback(name, message string) (*models.Feedback, error) {
	if m.submitFeedbackFn != nil {
		return m.submitFeedbackFn(name, message)
	}
	return &models.Feedback{ID: 1, Name: name, Message: message}, nil
}

func (m *mockLedgerService) ListFeedback(page pagination.PageRequest) (*pagination.PageResponse[models.Feedback], error) {
	if m.listFeedbackFn != nil {
		return m.listFeedbackFn(page)
	}
	resp := pagination.NewPageResponse[models.Feedback](nil, 1, 10, 0)
	return &resp, nil
}

func (m *mockLedgerService) Subscribe(email string) (bool, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(email)
	}
	return true, nil
}

func (m *mockLedgerService) ListSubscribers(page pagination.PageRequest) (*pagination.PageResponse[models.Subscriber], error) {
	if m.listSubscribersFn != nil {
		return m.listSubscribersFn(page)
	}
	resp := pagination.NewPageResponse[models.Subscriber](nil, 1, 20, 0)
	return &resp, nil
}

type mockAuditService struct {
	events []services.AuditEvent
}

func (m *mockAuditService) Log(event services.AuditEvent) {
	m.events = append(m.events, event)
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

// injectSession stands in for the session middleware.
func injectSession(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, sess.UserID)
		c.Set(middleware.ContextEmail, sess.Email)
		c.Set(middleware.ContextSession, sess)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
