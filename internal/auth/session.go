// Package auth issues and verifies signed session cookies and resolves the
// viewer of each request.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kalambet/gallery/internal/profile"
)

// MinKeySize is the minimum HMAC key length.
const MinKeySize = 32

// ErrInvalidSession is returned for tokens that fail verification or have expired.
var ErrInvalidSession = errors.New("invalid session")

type sessionClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// Sessions signs and verifies HS256 session tokens.
type Sessions struct {
	key []byte
	cfg Config
	now func() time.Time
}

// NewSessions returns a Sessions using key, which must be at least MinKeySize bytes.
func NewSessions(key []byte, cfg Config) (*Sessions, error) {
	if len(key) < MinKeySize {
		return nil, fmt.Errorf("session key must be at least %d bytes, got %d", MinKeySize, len(key))
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "gallery_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 720 * time.Hour
	}
	return &Sessions{key: key, cfg: cfg, now: time.Now}, nil
}

// GenerateKey returns a fresh random signing key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, MinKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	return key, nil
}

// Config returns the session settings in use.
func (s *Sessions) Config() Config { return s.cfg }

// Issue signs a token for v and returns it with its expiry.
func (s *Sessions) Issue(v profile.Viewer) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.cfg.TTL)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   v.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name: v.Name,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session: %w", err)
	}
	return token, exp, nil
}

// Parse verifies token and returns the viewer it was issued for.
func (s *Sessions) Parse(token string) (profile.Viewer, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return profile.Viewer{}, ErrInvalidSession
	}
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return profile.Viewer{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" {
		return profile.Viewer{}, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}
	return profile.Viewer{ID: claims.Subject, Name: claims.Name}, nil
}

// SetCookie writes the session cookie.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type viewerKey struct{}

// WithViewer returns ctx carrying v.
func WithViewer(ctx context.Context, v profile.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

// ViewerFrom returns the authenticated viewer, or nil for anonymous requests.
func ViewerFrom(ctx context.Context) *profile.Viewer {
	v, ok := ctx.Value(viewerKey{}).(profile.Viewer)
	if !ok {
		return nil
	}
	return &v
}

// Middleware resolves the viewer from the session cookie or a bearer token.
// A cookie that fails to parse does not shadow a valid bearer token.
// Requests without a valid session continue anonymously.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v, ok := s.viewer(r); ok {
			r = r.WithContext(WithViewer(r.Context(), v))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Sessions) viewer(r *http.Request) (profile.Viewer, bool) {
	var tokens []string
	if c, err := r.Cookie(s.cfg.CookieName); err == nil && c.Value != "" {
		tokens = append(tokens, c.Value)
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, prefix) {
		tokens = append(tokens, h[len(prefix):])
	}
	for _, tok := range tokens {
		if v, err := s.Parse(tok); err == nil {
			return v, true
		}
	}
	return profile.Viewer{}, false
}
