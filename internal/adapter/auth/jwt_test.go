package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func newTestAuthenticator(t *testing.T, now time.Time) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(Config{
		Secret:   []byte("test-secret"),
		Issuer:   "im-test",
		Audience: "im-realtime",
		Clock:    func() time.Time { return now },
	})
	require.NoError(t, err)
	return a
}

func TestAuthenticate_RoundTrip(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	a := newTestAuthenticator(t, now)
	p := model.Principal{UserID: uuid.New(), Username: "ann", DisplayName: "Ann"}

	token, err := a.Issue(p, time.Hour)
	req.NoError(err)

	got, err := a.Authenticate(context.Background(), token)
	req.NoError(err)
	req.Equal(p.UserID, got.UserID)
	req.Equal("Ann", got.DisplayName)
}

func TestAuthenticate_Rejects(t *testing.T) {
	now := time.Now()
	a := newTestAuthenticator(t, now)

	expired, err := a.Issue(model.Principal{UserID: uuid.New()}, -time.Minute)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    "im-test",
		Audience:  jwt.ClaimStrings{"im-realtime"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}})
	wrongKey, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	notUUID := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "im-test",
		Audience:  jwt.ClaimStrings{"im-realtime"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}})
	badSubject, err := notUUID.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":       "",
		"garbage":     "not-a-jwt",
		"expired":     expired,
		"wrong key":   wrongKey,
		"bad subject": badSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Authenticate(context.Background(), token)
			require.ErrorIs(t, err, model.ErrUnauthenticated)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	req.Equal("q", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer h")
	req.Equal("h", TokenFromRequest(r))
}
