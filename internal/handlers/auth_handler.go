package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "cogi/internal/errors"
	"cogi/internal/middleware"
	"cogi/internal/models"
	"cogi/internal/services"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// AuthHandler handles registration, confirmation, password reset and sessions.
type AuthHandler struct {
	auth   services.AuthServicer
	users  services.UserServicer
	cookie CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth services.AuthServicer, users services.UserServicer, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, cookie: cookie}
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email,max=255"`
	Password     string `json:"password" binding:"required,max=128"`
	FirstName    string `json:"first_name" binding:"required,notblank,max=100"`
	LastName     string `json:"last_name" binding:"required,notblank,max=100"`
	Gender       string `json:"gender" binding:"required,gender"`
	DateOfBirth  string `json:"date_of_birth" binding:"required"`
	CaptchaToken string `json:"captcha_token"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// PasswordResetRequest asks for a reset link.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// CompletePasswordResetRequest sets a new password with a reset token.
type CompletePasswordResetRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required,max=128"`
	ConfirmPassword string `json:"confirm_password" binding:"required,max=128"`
}

// UserResponse represents the user data in the response
type UserResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Gender      string  `json:"gender"`
	DateOfBirth *string `json:"date_of_birth"`
	Confirmed   bool    `json:"confirmed"`
}

// AuthResponse is returned by a successful login. Token is the session id
// for clients that send it as a bearer token instead of the cookie.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// RegisterResponse is returned by a successful registration.
type RegisterResponse struct {
	Message string       `json:"message"`
	Warning string       `json:"warning,omitempty"`
	User    UserResponse `json:"user"`
}

func toUserResponse(user *models.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Gender:    user.Gender,
		Confirmed: user.Confirmed,
	}
	if user.DateOfBirth != nil {
		dob := user.DateOfBirth.Format("2006-01-02")
		resp.DateOfBirth = &dob
	}
	return resp
}

// Register handles user registration
// @Summary     Register a new user
// @Description Create an unconfirmed account and email a confirmation link
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RegisterRequest true "User registration data"
// @Success     201 {object} RegisterResponse "User registered"
// @Failure     400 {object} ErrorResponse "Invalid input, weak password, bad date of birth or failed CAPTCHA"
// @Failure     409 {object} ErrorResponse "Email already registered"
// @Failure     503 {object} ErrorResponse "CAPTCHA unavailable"
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Gender:       req.Gender,
		DateOfBirth:  req.DateOfBirth,
		CaptchaToken: req.CaptchaToken,
		RemoteIP:     c.ClientIP(),
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "Registration successful. Please check your email to confirm your account.",
		Warning: result.Warning,
		User:    toUserResponse(result.User),
	})
}

// Confirm handles the emailed confirmation link
// @Summary     Confirm an email address
// @Tags        auth
// @Produce     json
// @Param       token path string true "Confirmation token"
// @Success     200 {object} MessageResponse "Account confirmed"
// @Failure     400 {object} ErrorResponse "Invalid or expired link"
// @Router      /auth/confirm/{token} [get]
func (h *AuthHandler) Confirm(c *gin.Context) {
	if _, err := h.auth.Confirm(c.Request.Context(), c.Param("token")); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Your account has been confirmed. You can now log in."})
}

// RequestPasswordReset emails a reset link
// @Summary     Request a password reset link
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body PasswordResetRequest true "Account email"
// @Success     200 {object} MessageResponse "Reset link sent"
// @Failure     404 {object} ErrorResponse "No account for this email"
// @Failure     503 {object} ErrorResponse "Email could not be sent"
// @Router      /auth/password-reset/request [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "A password reset link has been sent to your email."})
}

// CompletePasswordReset sets a new password
// @Summary     Complete a password reset
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body CompletePasswordResetRequest true "Token and new password"
// @Success     200 {object} MessageResponse "Password updated"
// @Failure     400 {object} ErrorResponse "Mismatch, weak password or bad token"
// @Router      /auth/password-reset/complete [post]
func (h *AuthHandler) CompletePasswordReset(c *gin.Context) {
	var req CompletePasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if err := h.auth.CompletePasswordReset(c.Request.Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Your password has been updated. You can now log in."})
}

// Login handles user login
// @Summary     Login user
// @Description Authenticate a user and start a session
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "User login credentials"
// @Success     200 {object} AuthResponse "Session started"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unknown user or invalid credentials"
// @Failure     403 {object} ErrorResponse "Email not confirmed"
// @Failure     423 {object} ErrorResponse "Account locked"
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	sess, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, sess.ID, int(h.cookie.MaxAge.Seconds()), "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, AuthResponse{Token: sess.ID, User: toUserResponse(user)})
}

// Logout ends the current session
// @Summary     Logout
// @Tags        auth
// @Produce     json
// @Success     200 {object} MessageResponse "Logged out"
// @Router      /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.SessionID(c, h.cookie.Name)); err != nil {
		respondWithError(c, err)
		return
	}
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, MessageResponse{Message: "You have been logged out."})
}

// GetProfile returns the user's profile
// @Summary     Get user profile
// @Description Get the authenticated user's profile information
// @Tags        user
// @Produce     json
// @Security    SessionAuth
// @Success     200 {object} UserResponse "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.users.GetUserByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}
