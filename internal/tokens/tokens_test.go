package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cogi/internal/errors"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestIssuer(clock *fakeClock) *Issuer {
	return NewIssuer("test-secret", time.Hour).WithClock(clock.Now)
}

func TestIssueAndVerify(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	iss := newTestIssuer(clock)

	tok, err := iss.Issue(" A@B.com ", PurposeConfirm)
	require.NoError(t, err)

	email, err := iss.Verify(tok, PurposeConfirm)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", email)
}

func TestVerify_PurposeMismatch(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	iss := newTestIssuer(clock)

	tok, err := iss.Issue("a@b.com", PurposeConfirm)
	require.NoError(t, err)

	_, err = iss.Verify(tok, PurposeReset)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestVerify_Age(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr *apperrors.AppError
	}{
		{name: "fresh", elapsed: 0},
		{name: "just_before_max_age", elapsed: 59 * time.Minute},
		{name: "exactly_max_age", elapsed: time.Hour},
		{name: "past_max_age", elapsed: time.Hour + 2*time.Second, wantErr: apperrors.ErrTokenExpired},
		{name: "a_day_later", elapsed: 24 * time.Hour, wantErr: apperrors.ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{t: start}
			iss := newTestIssuer(clock)
			tok, err := iss.Issue("a@b.com", PurposeReset)
			require.NoError(t, err)

			clock.t = start.Add(tt.elapsed)
			_, err = iss.Verify(tok, PurposeReset)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerify_Tampered(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	iss := newTestIssuer(clock)
	tok, err := iss.Issue("a@b.com", PurposeConfirm)
	require.NoError(t, err)

	other := NewIssuer("another-secret", time.Hour).WithClock(clock.Now)
	_, err = other.Verify(tok, PurposeConfirm)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)

	_, err = iss.Verify("not.a.token", PurposeConfirm)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)

	_, err = iss.Verify(tok+"x", PurposeConfirm)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}
