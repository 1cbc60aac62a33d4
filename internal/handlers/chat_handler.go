package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "cogi/internal/errors"
	"cogi/internal/models"
	"cogi/internal/services"
)

// ChatHandler serves the chat view and thread management.
type ChatHandler struct {
	threads services.ThreadServicer
	auth    services.AuthServicer
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(threads services.ThreadServicer, auth services.AuthServicer) *ChatHandler {
	return &ChatHandler{threads: threads, auth: auth}
}

// ChatViewQuery selects the active thread of the chat view.
type ChatViewQuery struct {
	ThreadID string `form:"thread_id" binding:"omitempty,max=36"`
	New      bool   `form:"new"`
}

// ChatViewResponse is the state needed to render the chat page.
type ChatViewResponse struct {
	ActiveThreadID string                   `json:"active_thread_id"`
	Messages       []models.Message         `json:"messages"`
	Threads        []services.ThreadSummary `json:"threads"`
}

// SendMessageRequest is one user chat message.
type SendMessageRequest struct {
	Message  string `json:"message" binding:"max=4000"`
	ThreadID string `json:"thread_id" binding:"omitempty,max=36"`
}

// RenameThreadRequest sets a thread title.
type RenameThreadRequest struct {
	Title string `json:"title" binding:"max=255"`
}

// ThreadResponse identifies the thread a request switched to or created.
type ThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

// ChatView returns the active thread's history and the thread list
// @Summary     Chat view
// @Description Resolve the active thread (switching with thread_id or starting one with new=1) and return its history and the thread list
// @Tags        chat
// @Produce     json
// @Security    SessionAuth
// @Param       thread_id query string false "Thread to switch to"
// @Param       new       query bool   false "Start a new thread"
// @Success     200 {object} ChatViewResponse
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /chat [get]
func (h *ChatHandler) ChatView(c *gin.Context) {
	var q ChatViewQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	threadID, err := h.threads.ResolveActiveThread(ctx, sess, q.ThreadID, q.New)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.auth.SetActiveThread(ctx, sess.ID, threadID); err != nil {
		respondWithError(c, err)
		return
	}

	messages, err := h.threads.GetHistory(ctx, sess.UserID, threadID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	threads, err := h.threads.ListThreads(ctx, sess.UserID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatViewResponse{
		ActiveThreadID: threadID,
		Messages:       messages,
		Threads:        threads,
	})
}

// SendMessage appends a user message and the assistant's reply
// @Summary     Send a chat message
// @Description Store the message in the active thread, generate a reply and store it
// @Tags        chat
// @Accept      json
// @Produce     json
// @Security    SessionAuth
// @Param       request body SendMessageRequest true "Message"
// @Success     200 {object} services.TurnResult
// @Failure     400 {object} ErrorResponse "Empty message"
// @Failure     401 {object} ErrorResponse "Unauthorized or session expired"
// @Failure     500 {object} ErrorResponse "Store unavailable"
// @Router      /chat/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	threadID, err := h.threads.ResolveActiveThread(ctx, sess, req.ThreadID, false)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.auth.SetActiveThread(ctx, sess.ID, threadID); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.threads.AppendTurn(ctx, sess.UserID, threadID, req.Message)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListThreads returns the user's threads
// @Summary     List threads
// @Tags        threads
// @Produce     json
// @Security    SessionAuth
// @Success     200 {array} services.ThreadSummary
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /threads [get]
func (h *ChatHandler) ListThreads(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	threads, err := h.threads.ListThreads(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

// CreateThread starts a new, empty active thread
// @Summary     Start a new thread
// @Tags        threads
// @Produce     json
// @Security    SessionAuth
// @Success     201 {object} ThreadResponse
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /threads [post]
func (h *ChatHandler) CreateThread(c *gin.Context) {
	h.activate(c, "", true, http.StatusCreated)
}

// ActivateThread switches the session to an existing thread
// @Summary     Switch to a thread
// @Tags        threads
// @Produce     json
// @Security    SessionAuth
// @Param       id path string true "Thread ID"
// @Success     200 {object} ThreadResponse
// @Failure     404 {object} ErrorResponse "Thread not found"
// @Router      /threads/{id}/activate [post]
func (h *ChatHandler) ActivateThread(c *gin.Context) {
	h.activate(c, c.Param("id"), false, http.StatusOK)
}

func (h *ChatHandler) activate(c *gin.Context, requested string, forceNew bool, status int) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	threadID, err := h.threads.ResolveActiveThread(ctx, sess, requested, forceNew)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if requested != "" && threadID != requested {
		respondWithError(c, apperrors.ErrThreadNotFound)
		return
	}
	if err := h.auth.SetActiveThread(ctx, sess.ID, threadID); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(status, ThreadResponse{ThreadID: threadID})
}

// GetHistory returns a thread's messages oldest first
// @Summary     Thread history
// @Tags        threads
// @Produce     json
// @Security    SessionAuth
// @Param       id path string true "Thread ID"
// @Success     200 {array} models.Message
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /threads/{id}/messages [get]
func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	messages, err := h.threads.GetHistory(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// RenameThread sets a thread's title
// @Summary     Rename a thread
// @Tags        threads
// @Accept      json
// @Produce     json
// @Security    SessionAuth
// @Param       id      path string              true "Thread ID"
// @Param       request body RenameThreadRequest true "New title"
// @Success     200 {object} models.Thread
// @Failure     400 {object} ErrorResponse "Empty title"
// @Failure     404 {object} ErrorResponse "Thread not found"
// @Router      /threads/{id} [put]
func (h *ChatHandler) RenameThread(c *gin.Context) {
	var req RenameThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	thread, err := h.threads.Rename(c.Request.Context(), userID, c.Param("id"), req.Title)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

// DeleteThread removes a thread and its messages
// @Summary     Delete a thread
// @Tags        threads
// @Security    SessionAuth
// @Param       id path string true "Thread ID"
// @Success     204 "Deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /threads/{id} [delete]
func (h *ChatHandler) DeleteThread(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	threadID := c.Param("id")
	if err := h.threads.Delete(ctx, sess.UserID, threadID); err != nil {
		respondWithError(c, err)
		return
	}

	if sess.ActiveThreadID == threadID {
		sess.ActiveThreadID = ""
		if err := h.auth.SetActiveThread(ctx, sess.ID, ""); err != nil {
			respondWithError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}
