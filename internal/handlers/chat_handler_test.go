package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "cogi/internal/errors"
	"cogi/internal/models"
	"cogi/internal/services"
	"cogi/internal/session"
)

func setupChatRouter(handler *ChatHandler, sess *session.Session) *gin.Engine {
	r := gin.New()
	r.Use(injectSession(sess))
	r.GET("/chat", handler.ChatView)
	r.POST("/chat/messages", handler.SendMessage)
	r.GET("/threads", handler.ListThreads)
	r.POST("/threads", handler.CreateThread)
	r.POST("/threads/:id/activate", handler.ActivateThread)
	r.GET("/threads/:id/messages", handler.GetHistory)
	r.PUT("/threads/:id", handler.RenameThread)
	r.DELETE("/threads/:id", handler.DeleteThread)
	return r
}

func TestChatHandler_ChatView(t *testing.T) {
	t.Run("resolves_and_saves_active_thread", func(t *testing.T) {
		sess := &session.Session{ID: "s1", UserID: "user-1"}
		var gotRequested string
		var gotNew bool
		threadSvc := &mockThreadService{
			resolveFn: func(s *session.Session, requested string, forceNew bool) (string, error) {
				gotRequested, gotNew = requested, forceNew
				s.ActiveThreadID = "thread-9"
				return "thread-9", nil
			},
			getHistoryFn: func(_, threadID string) ([]models.Message, error) {
				return []models.Message{{ThreadID: threadID, Body: "hi", Sender: models.SenderUser}}, nil
			},
		}
		var saved string
		authSvc := &mockAuthService{
			setActiveThreadFn: func(_, threadID string) error {
				saved = threadID
				return nil
			},
		}
		r := setupChatRouter(NewChatHandler(threadSvc, authSvc), sess)

		rec := doRequest(r, "GET", "/chat?thread_id=thread-9&new=1", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotRequested != "thread-9" || !gotNew {
			t.Errorf("unexpected resolve args %q %v", gotRequested, gotNew)
		}
		if saved != "thread-9" {
			t.Error("expected the session to be saved with the active thread")
		}
		result := parseJSON(t, rec)
		if result["active_thread_id"] != "thread-9" {
			t.Errorf("unexpected active thread %v", result["active_thread_id"])
		}
		if msgs := result["messages"].([]interface{}); len(msgs) != 1 {
			t.Errorf("expected 1 message, got %d", len(msgs))
		}
	})
}

func TestChatHandler_SendMessage(t *testing.T) {
	t.Run("appends_turn_on_active_thread", func(t *testing.T) {
		sess := &session.Session{ID: "s1", UserID: "user-1", ActiveThreadID: "thread-1"}
		var gotThread, gotText string
		threadSvc := &mockThreadService{
			appendTurnFn: func(userID, threadID, text string) (*services.TurnResult, error) {
				gotThread, gotText = threadID, text
				return &services.TurnResult{
					ThreadID:         threadID,
					UserMessage:      &models.Message{Body: text, Sender: models.SenderUser},
					AssistantMessage: &models.Message{Body: "reply", Sender: models.SenderAssistant},
				}, nil
			},
		}
		r := setupChatRouter(NewChatHandler(threadSvc, &mockAuthService{}), sess)

		rec := doRequest(r, "POST", "/chat/messages", `{"message":"hello"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotThread != "thread-1" || gotText != "hello" {
			t.Errorf("unexpected append args %q %q", gotThread, gotText)
		}
		result := parseJSON(t, rec)
		assistant := result["assistant_message"].(map[string]interface{})
		if assistant["body"] != "reply" {
			t.Errorf("unexpected reply %v", assistant["body"])
		}
	})

	t.Run("returns 400 on empty message", func(t *testing.T) {
		sess := &session.Session{ID: "s1", UserID: "user-1"}
		threadSvc := &mockThreadService{
			appendTurnFn: func(string, string, string) (*services.TurnResult, error) {
				return nil, apperrors.ErrEmptyMessage
			},
		}
		r := setupChatRouter(NewChatHandler(threadSvc, &mockAuthService{}), sess)

		rec := doRequest(r, "POST", "/chat/messages", `{"message":"  "}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "EMPTY_MESSAGE")
	})

	t.Run("returns 500 when the store fails", func(t *testing.T) {
		sess := &session.Session{ID: "s1", UserID: "user-1"}
		threadSvc := &mockThreadService{
			appendTurnFn: func(string, string, string) (*services.TurnResult, error) {
				return nil, apperrors.ErrStoreUnavailable
			},
		}
		r := setupChatRouter(NewChatHandler(threadSvc, &mockAuthService{}), sess)

		rec := doRequest(r, "POST", "/chat/messages", `{"message":"hi"}`)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "STORE_UNAVAILABLE")
	})
}

func TestChatHandler_Threads(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		title := "Morning check-in"
		threadSvc := &mockThreadService{
			listThreadsFn: func(userID string) ([]services.ThreadSummary, error) {
				return []services.ThreadSummary{{ID: "t1", Title: &title, MessageCount: 2}}, nil
			},
		}
		r := setupChatRouter(NewChatHandler(threadSvc, &mockAuthService{}), &session.Session{UserID: "user-1"})

		rec := doRequest(r, "GET", "/threads", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		threads := parseJSON(t, rec)["threads"].([]interface{})
		if len(threads) != 1 || threads[0].(map[string]interface{})["title"] != title {
			t.Errorf("unexpected threads %v", threads)
		}
	})

	t.Run("create_forces_new_thread", func(t *testing.T) {
		var gotNew bool
		threadSvc := &mockThreadService{
			resolveFn: func(s *session.Session, _ string, forceNew bool) (string, error) {
				gotNew = forceNew
				s.ActiveThreadID = "fresh"
				return "fresh", nil
			},
		}
		r := setupChatRouter(NewChatHandler(threadSvc, &mockAuthService{}), &session.Session{UserID: "user-1", ActiveThreadID: "old"})

		rec := doRequest(r, "POST", "/threads", "")

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if !gotNew || parseJSON(t, rec)["thread_id"] != "fresh" {
			t.Error("expected a forced new thread")
		}
	})

	t.Run("activate_unowned_thread_is_404", func(t *testing.T) {
		threadSvc := &mockThreadService{
			resolveFn: func(s *session.Session, _ string, _ bool) (string, error) {
				return s.ActiveThreadID, nil
			},
		}
		r := setupChatRouter(NewChatHandler(threadSvc, &mockAuthService{}), &session.Session{UserID: "user-1", ActiveThreadID: "mine"})

		rec := doRequest(r, "POST", "/threads/theirs/activate", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "THREAD_NOT_FOUND")
	})

	t.Run("activate_owned_thread", func(t *testing.T) {
		threadSvc := &mockThreadService{
			resolveFn: func(s *session.Session, requested string, _ bool) (string, error) {
				s.ActiveThreadID = requested
				return requested, nil
			},
		}
		r := setupChatRouter(NewChatHandler(threadSvc, &mockAuthService{}), &session.Session{UserID: "user-1"})

		rec := doRequest(r, "POST", "/threads/t2/activate", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("history", func(t *testing.T) {
		var gotThread string
		threadSvc := &mockThreadService{
			getHistoryFn: func(_, threadID string) ([]models.Message, error) {
				gotThread = threadID
				return []models.Message{}, nil
			},
		}
		r := setupChatRouter(NewChatHandler(threadSvc, &mockAuthService{}), &session.Session{UserID: "user-1"})

		rec := doRequest(r, "GET", "/threads/t3/messages", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotThread != "t3" {
			t.Errorf("expected thread t3, got %q", gotThread)
		}
	})

	t.Run("rename", func(t *testing.T) {
		r := setupChatRouter(NewChatHandler(&mockThreadService{}, &mockAuthService{}), &session.Session{UserID: "user-1"})

		rec := doRequest(r, "PUT", "/threads/t1", `{"title":"Evening"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["title"] != "Evening" {
			t.Error("expected renamed title in response")
		}
	})

	t.Run("rename_empty_title", func(t *testing.T) {
		threadSvc := &mockThreadService{
			renameFn: func(string, string, string) (*models.Thread, error) { return nil, apperrors.ErrEmptyTitle },
		}
		r := setupChatRouter(NewChatHandler(threadSvc, &mockAuthService{}), &session.Session{UserID: "user-1"})

		rec := doRequest(r, "PUT", "/threads/t1", `{"title":""}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "EMPTY_TITLE")
	})

	t.Run("delete_active_thread_clears_session", func(t *testing.T) {
		sess := &session.Session{UserID: "user-1", ActiveThreadID: "t1"}
		var saved bool
		authSvc := &mockAuthService{
			setActiveThreadFn: func(_, threadID string) error {
				saved = threadID == ""
				return nil
			},
		}
		r := setupChatRouter(NewChatHandler(&mockThreadService{}, authSvc), sess)

		rec := doRequest(r, "DELETE", "/threads/t1", "")

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if !saved {
			t.Error("expected the session to be saved without an active thread")
		}
	})
}
