// Package auth verifies bearer credentials presented on live channels and REST calls.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// Claims mirrors the HS256 payload issued by the identity provider.
type Claims struct {
	Username    string   `json:"username,omitempty"`
	DisplayName string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	PhotoURL    string   `json:"picture,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Clock    func() time.Time
}

// Authenticator validates HS256 JWTs and maps the subject onto an identity.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
	clock    func() time.Time
}

func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: signing secret required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Authenticator{
		secret:   append([]byte(nil), cfg.Secret...),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		clock:    clock,
	}, nil
}

// Authenticate verifies token and returns the principal. Every failure wraps
// model.ErrUnauthenticated.
func (a *Authenticator) Authenticate(_ context.Context, token string) (*model.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("missing token: %w", model.ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(a.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token expired: %w", model.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("invalid token: %v: %w", err, model.ErrUnauthenticated)
	}
	if parsed == nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid token: %w", model.ErrUnauthenticated)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("subject %q: %w", claims.Subject, model.ErrUnauthenticated)
	}

	return &model.Principal{
		UserID:      id,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		PhotoURL:    claims.PhotoURL,
		Roles:       claims.Roles,
	}, nil
}

// TokenFromRequest extracts a bearer token from the Authorization header or,
// for browser websocket clients that cannot set headers, the "token" query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(tok)
		}
	}
	return r.URL.Query().Get("token")
}

// Issue signs a token for userID. It backs the development token command and tests.
func (a *Authenticator) Issue(p model.Principal, ttl time.Duration) (string, error) {
	now := a.clock()
	claims := Claims{
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		PhotoURL:    p.PhotoURL,
		Roles:       p.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
