// Package captcha verifies reCAPTCHA tokens submitted with registrations.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cogi/internal/config"
	"cogi/internal/logger"
)

// Verifier checks a CAPTCHA response token. ok=false with a nil error means
// the provider rejected the token; a non-nil error means the provider could
// not be consulted.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (ok bool, err error)
}

// New returns a RecaptchaVerifier, or Disabled when no secret is configured.
func New(cfg config.CaptchaConfig) Verifier {
	if cfg.Secret == "" {
		logger.Get().Warn("RECAPTCHA_SECRET not set; CAPTCHA verification is disabled")
		return Disabled{}
	}
	return NewRecaptchaVerifier(cfg.Secret, cfg.VerifyURL, cfg.Timeout)
}

// Disabled accepts every token.
type Disabled struct{}

// Verify implements Verifier.
func (Disabled) Verify(context.Context, string, string) (bool, error) { return true, nil }

// RecaptchaVerifier calls Google's siteverify endpoint.
type RecaptchaVerifier struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
}

// NewRecaptchaVerifier creates a RecaptchaVerifier.
func NewRecaptchaVerifier(secret, verifyURL string, timeout time.Duration) *RecaptchaVerifier {
	if verifyURL == "" {
		verifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RecaptchaVerifier{
		secret:     secret,
		verifyURL:  verifyURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify implements Verifier. An empty token is rejected without a request.
func (v *RecaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("siteverify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("siteverify returned status %d", resp.StatusCode)
	}

	var result siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to parse siteverify response: %w", err)
	}
	if !result.Success {
		logger.Get().Infow("captcha rejected", "error_codes", result.ErrorCodes)
	}
	return result.Success, nil
}
