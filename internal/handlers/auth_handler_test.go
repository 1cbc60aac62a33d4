package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "cogi/internal/errors"
	"cogi/internal/models"
	"cogi/internal/services"
	"cogi/internal/session"
)

const validRegisterBody = `{"email":"test@example.com","password":"Str0ng!pass","first_name":"John","last_name":"Doe","gender":"male","date_of_birth":"1990-01-02","captcha_token":"tok"}`

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	r := gin.New()
	r.POST("/auth/register", handler.Register)
	r.GET("/auth/confirm/:token", handler.Confirm)
	r.POST("/auth/password-reset/request", handler.RequestPasswordReset)
	r.POST("/auth/password-reset/complete", handler.CompletePasswordReset)
	r.POST("/auth/login", handler.Login)
	r.POST("/auth/logout", handler.Logout)
	r.GET("/profile", injectSession(&session.Session{ID: "s1", UserID: "user-1"}), handler.GetProfile)
	return r
}

func newTestAuthHandler(auth *mockAuthService, users *mockUserService) *AuthHandler {
	return NewAuthHandler(auth, users, CookieConfig{Name: "cogi_session"})
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var got services.RegisterInput
		authSvc := &mockAuthService{
			registerFn: func(input services.RegisterInput) (*services.RegisterResult, error) {
				got = input
				return &services.RegisterResult{User: &models.User{
					Base:      models.Base{ID: "user-1"},
					Email:     input.Email,
					FirstName: input.FirstName,
				}}, nil
			},
		}
		r := setupAuthRouter(newTestAuthHandler(authSvc, &mockUserService{}))

		rec := doRequest(r, "POST", "/auth/register", validRegisterBody)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.CaptchaToken != "tok" || got.DateOfBirth != "1990-01-02" {
			t.Errorf("unexpected register input: %+v", got)
		}
		result := parseJSON(t, rec)
		user := result["user"].(map[string]interface{})
		if user["email"] != "test@example.com" {
			t.Errorf("expected email test@example.com, got %v", user["email"])
		}
		if user["confirmed"] != false {
			t.Error("expected unconfirmed user")
		}
		if _, ok := result["warning"]; ok {
			t.Error("expected no warning")
		}
	})

	t.Run("returns warning when mail fails", func(t *testing.T) {
		authSvc := &mockAuthService{
			registerFn: func(input services.RegisterInput) (*services.RegisterResult, error) {
				return &services.RegisterResult{User: &models.User{Email: input.Email}, Warning: "mail failed"}, nil
			},
		}
		r := setupAuthRouter(newTestAuthHandler(authSvc, &mockUserService{}))

		rec := doRequest(r, "POST", "/auth/register", validRegisterBody)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if parseJSON(t, rec)["warning"] != "mail failed" {
			t.Error("expected warning in response")
		}
	})

	t.Run("returns 400 on missing email", func(t *testing.T) {
		r := setupAuthRouter(newTestAuthHandler(&mockAuthService{}, &mockUserService{}))

		rec := doRequest(r, "POST", "/auth/register", `{"password":"Str0ng!pass"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on unknown gender", func(t *testing.T) {
		r := setupAuthRouter(newTestAuthHandler(&mockAuthService{}, &mockUserService{}))

		rec := doRequest(r, "POST", "/auth/register",
			`{"email":"a@example.com","password":"Str0ng!pass","first_name":"A","last_name":"B","gender":"robot","date_of_birth":"1990-01-02"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("maps service errors", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
			code   string
		}{
			{apperrors.ErrWeakPassword, http.StatusBadRequest, "WEAK_PASSWORD"},
			{apperrors.ErrCaptchaFailed, http.StatusBadRequest, "CAPTCHA_FAILED"},
			{apperrors.ErrInvalidDateOfBirth, http.StatusBadRequest, "INVALID_DATE_OF_BIRTH"},
			{apperrors.ErrDuplicateEmail, http.StatusConflict, "DUPLICATE_EMAIL"},
			{apperrors.ErrCaptchaUnavailable, http.StatusServiceUnavailable, "CAPTCHA_UNAVAILABLE"},
		}
		for _, tt := range tests {
			t.Run(tt.code, func(t *testing.T) {
				authSvc := &mockAuthService{
					registerFn: func(services.RegisterInput) (*services.RegisterResult, error) {
						return nil, tt.err
					},
				}
				r := setupAuthRouter(newTestAuthHandler(authSvc, &mockUserService{}))

				rec := doRequest(r, "POST", "/auth/register", validRegisterBody)

				if rec.Code != tt.status {
					t.Fatalf("expected %d, got %d", tt.status, rec.Code)
				}
				assertErrorCode(t, parseJSON(t, rec), tt.code)
			})
		}
	})
}

func TestAuthHandler_Confirm(t *testing.T) {
	t.Run("returns 200 on valid token", func(t *testing.T) {
		var got string
		authSvc := &mockAuthService{
			confirmFn: func(token string) (*models.User, error) {
				got = token
				return &models.User{Confirmed: true}, nil
			},
		}
		r := setupAuthRouter(newTestAuthHandler(authSvc, &mockUserService{}))

		rec := doRequest(r, "GET", "/auth/confirm/abc.def.ghi", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got != "abc.def.ghi" {
			t.Errorf("expected token abc.def.ghi, got %q", got)
		}
	})

	t.Run("returns 400 on expired token", func(t *testing.T) {
		authSvc := &mockAuthService{
			confirmFn: func(string) (*models.User, error) { return nil, apperrors.ErrTokenExpired },
		}
		r := setupAuthRouter(newTestAuthHandler(authSvc, &mockUserService{}))

		rec := doRequest(r, "GET", "/auth/confirm/old", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "TOKEN_EXPIRED")
	})
}

func TestAuthHandler_PasswordReset(t *testing.T) {
	t.Run("request returns 404 for unknown email", func(t *testing.T) {
		authSvc := &mockAuthService{
			requestPasswordResetFn: func(string) error { return apperrors.ErrUserNotFound },
		}
		r := setupAuthRouter(newTestAuthHandler(authSvc, &mockUserService{}))

		rec := doRequest(r, "POST", "/auth/password-reset/request", `{"email":"ghost@example.com"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "USER_NOT_FOUND")
	})

	t.Run("request returns 503 when mail fails", func(t *testing.T) {
		authSvc := &mockAuthService{
			requestPasswordResetFn: func(string) error { return apperrors.ErrMailUnavailable },
		}
		r := setupAuthRouter(newTestAuthHandler(authSvc, &mockUserService{}))

		rec := doRequest(r, "POST", "/auth/password-reset/request", `{"email":"a@example.com"}`)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("complete passes both passwords", func(t *testing.T) {
		var gotPassword, gotConfirm string
		authSvc := &mockAuthService{
			completePasswordResetFn: func(_, password, confirm string) error {
				gotPassword, gotConfirm = password, confirm
				return apperrors.ErrPasswordMismatch
			},
		}
		r := setupAuthRouter(newTestAuthHandler(authSvc, &mockUserService{}))

		rec := doRequest(r, "POST", "/auth/password-reset/complete",
			`{"token":"t","password":"N3w!secret","confirm_password":"N3w!other"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "PASSWORD_MISMATCH")
		if gotPassword != "N3w!secret" || gotConfirm != "N3w!other" {
			t.Errorf("unexpected passwords %q %q", gotPassword, gotConfirm)
		}
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("returns 200 and sets cookie", func(t *testing.T) {
		authSvc := &mockAuthService{
			loginFn: func(email, _ string) (*session.Session, *models.User, error) {
				return &session.Session{ID: "session-id"}, &models.User{Base: models.Base{ID: "user-1"}, Email: email}, nil
			},
		}
		r := setupAuthRouter(newTestAuthHandler(authSvc, &mockUserService{}))

		rec := doRequest(r, "POST", "/auth/login", `{"email":"test@example.com","password":"Str0ng!pass"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if parseJSON(t, rec)["token"] != "session-id" {
			t.Error("expected session id as token")
		}
		found := false
		for _, c := range rec.Result().Cookies() {
			if c.Name == "cogi_session" && c.Value == "session-id" && c.HttpOnly {
				found = true
			}
		}
		if !found {
			t.Error("expected an HttpOnly session cookie")
		}
	})

	t.Run("maps login failures", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
			code   string
		}{
			{apperrors.ErrUnknownUser, http.StatusUnauthorized, "UNKNOWN_USER"},
			{apperrors.ErrUnconfirmed, http.StatusForbidden, "UNCONFIRMED"},
			{apperrors.ErrAccountLocked, http.StatusLocked, "ACCOUNT_LOCKED"},
			{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		}
		for _, tt := range tests {
			t.Run(tt.code, func(t *testing.T) {
				authSvc := &mockAuthService{
					loginFn: func(string, string) (*session.Session, *models.User, error) {
						return nil, nil, tt.err
					},
				}
				r := setupAuthRouter(newTestAuthHandler(authSvc, &mockUserService{}))

				rec := doRequest(r, "POST", "/auth/login", `{"email":"test@example.com","password":"x"}`)

				if rec.Code != tt.status {
					t.Fatalf("expected %d, got %d", tt.status, rec.Code)
				}
				assertErrorCode(t, parseJSON(t, rec), tt.code)
			})
		}
	})

	t.Run("returns 400 on missing fields", func(t *testing.T) {
		r := setupAuthRouter(newTestAuthHandler(&mockAuthService{}, &mockUserService{}))

		rec := doRequest(r, "POST", "/auth/login", `{}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	var loggedOut string
	authSvc := &mockAuthService{
		logoutFn: func(id string) error {
			loggedOut = id
			return nil
		},
	}
	r := setupAuthRouter(newTestAuthHandler(authSvc, &mockUserService{}))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", http.NoBody)
	req.AddCookie(&http.Cookie{Name: "cogi_session", Value: "abc"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if loggedOut != "abc" {
		t.Errorf("expected session abc to be logged out, got %q", loggedOut)
	}
}

func TestAuthHandler_GetProfile(t *testing.T) {
	t.Run("returns 200 with user profile", func(t *testing.T) {
		dob := time.Date(1990, time.January, 2, 0, 0, 0, 0, time.UTC)
		userSvc := &mockUserService{
			getUserByIDFn: func(id string) (*models.User, error) {
				return &models.User{
					Base:        models.Base{ID: id},
					Email:       "test@example.com",
					FirstName:   "John",
					LastName:    "Doe",
					DateOfBirth: &dob,
				}, nil
			},
		}
		r := setupAuthRouter(newTestAuthHandler(&mockAuthService{}, userSvc))

		rec := doRequest(r, "GET", "/profile", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		user := parseJSON(t, rec)["user"].(map[string]interface{})
		if user["id"] != "user-1" || user["first_name"] != "John" {
			t.Errorf("unexpected profile %v", user)
		}
		if user["date_of_birth"] != "1990-01-02" {
			t.Errorf("expected date_of_birth 1990-01-02, got %v", user["date_of_birth"])
		}
	})

	t.Run("returns 401 without session", func(t *testing.T) {
		handler := newTestAuthHandler(&mockAuthService{}, &mockUserService{})
		r := gin.New()
		r.GET("/profile", handler.GetProfile)

		rec := doRequest(r, "GET", "/profile", "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when user not found", func(t *testing.T) {
		userSvc := &mockUserService{
			getUserByIDFn: func(string) (*models.User, error) { return nil, apperrors.ErrUserNotFound },
		}
		r := setupAuthRouter(newTestAuthHandler(&mockAuthService{}, userSvc))

		rec := doRequest(r, "GET", "/profile", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
