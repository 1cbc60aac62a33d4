package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "cogi/internal/errors"
	"cogi/internal/models"
	"cogi/internal/services"
)

// AdminHandler serves operator endpoints guarded by the admin API key.
type AdminHandler struct {
	ledger services.LedgerServicer
	users  services.UserServicer
	audit  services.AuditServicer
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(ledger services.LedgerServicer, users services.UserServicer, audit services.AuditServicer) *AdminHandler {
	return &AdminHandler{ledger: ledger, users: users, audit: audit}
}

// UnlockUserRequest names the account to unlock.
type UnlockUserRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ListSubscribers returns newsletter subscribers
// @Summary     List subscribers
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[models.Subscriber]
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /admin/subscribers [get]
func (h *AdminHandler) ListSubscribers(c *gin.Context) {
	page, err := bindPage(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledger.ListSubscribers(page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UnlockUser clears a locked account's failed login attempts
// @Summary     Unlock an account
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    AdminKey
// @Param       request body UnlockUserRequest true "Account email"
// @Success     200 {object} MessageResponse "Unlocked"
// @Failure     404 {object} ErrorResponse "No account for this email"
// @Router      /admin/users/unlock [post]
func (h *AdminHandler) UnlockUser(c *gin.Context) {
	var req UnlockUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.users.GetUserByEmail(req.Email)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.users.ResetLoginAttempts(user.Email); err != nil {
		respondWithError(c, err)
		return
	}

	h.audit.Log(services.AuditEvent{
		UserID:       user.ID,
		Action:       models.AuditActionUnlock,
		ResourceType: "user",
		ResourceID:   user.ID,
		IPAddress:    c.ClientIP(),
	})
	c.JSON(http.StatusOK, MessageResponse{Message: "Account unlocked."})
}
