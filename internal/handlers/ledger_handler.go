package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "cogi/internal/errors"
	"cogi/internal/services"
)

// LedgerHandler handles feedback and newsletter subscriptions.
type LedgerHandler struct {
	ledger services.LedgerServicer
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledger services.LedgerServicer) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// FeedbackRequest is a feedback submission.
type FeedbackRequest struct {
	Name    string `json:"name" binding:"max=255"`
	Message string `json:"message" binding:"max=4000"`
}

// SubscribeRequest is a newsletter subscription.
type SubscribeRequest struct {
	Email string `json:"email" binding:"max=255"`
}

// SubmitFeedback stores a feedback entry
// @Summary     Submit feedback
// @Tags        feedback
// @Accept      json
// @Produce     json
// @Security    SessionAuth
// @Param       request body FeedbackRequest true "Feedback"
// @Success     201 {object} models.Feedback
// @Failure     400 {object} ErrorResponse "Missing name or message"
// @Router      /feedback [post]
func (h *LedgerHandler) SubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	entry, err := h.ledger.SubmitFeedback(req.Name, req.Message)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListFeedback returns feedback newest first
// @Summary     List feedback
// @Tags        feedback
// @Produce     json
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Page size (default 10)"
// @Success     200 {object} pagination.PageResponse[models.Feedback]
// @Router      /feedback [get]
func (h *LedgerHandler) ListFeedback(c *gin.Context) {
	page, err := bindPage(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledger.ListFeedback(page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Subscribe adds an email to the newsletter
// @Summary     Subscribe to the newsletter
// @Tags        newsletter
// @Accept      json
// @Produce     json
// @Param       request body SubscribeRequest true "Email"
// @Success     201 {object} MessageResponse "Subscribed"
// @Success     200 {object} MessageResponse "Already subscribed"
// @Failure     400 {object} ErrorResponse "Invalid email"
// @Router      /subscribe [post]
func (h *LedgerHandler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	created, err := h.ledger.Subscribe(req.Email)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, MessageResponse{Message: "You are already subscribed."})
		return
	}
	c.JSON(http.StatusCreated, MessageResponse{Message: "Thank you for subscribing!"})
}
