// Package auth authenticates API callers with either a signed session cookie
// or an HS256 bearer token, and threads the caller's user id through the
// request context.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type ctxKey string

const (
	sessionCookieName = "session"
	sessionLifetime   = 14 * 24 * time.Hour
	tokenIssuer       = "go-crm"
	userIDCtxKey      = ctxKey("userID")
)

// ErrInvalidToken is returned for malformed, expired or tampered tokens.
var ErrInvalidToken = errors.New("invalid token")

// UserVerifier reports whether a user id still refers to an allowed user.
type UserVerifier func(ctx context.Context, uid uint) bool

// Authenticator signs and verifies cookies and tokens with one secret.
type Authenticator struct {
	secret   []byte
	tokenTTL time.Duration
	verifier UserVerifier
	now      func() time.Time
}

// New returns an Authenticator. verifier may be nil.
func New(secret string, tokenTTL time.Duration, verifier UserVerifier) *Authenticator {
	return &Authenticator{secret: []byte(secret), tokenTTL: tokenTTL, verifier: verifier, now: time.Now}
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uint)
	return id, ok && id != 0
}

func (a *Authenticator) sign(value string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CreateSession sets a signed cookie with the user id.
func (a *Authenticator) CreateSession(w http.ResponseWriter, userID uint) {
	uidStr := strconv.FormatUint(uint64(userID), 10)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    uidStr + "." + a.sign(uidStr),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  a.now().Add(sessionLifetime),
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ParseSession validates the cookie and returns the user id.
func (a *Authenticator) ParseSession(r *http.Request) (uint, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	uidStr, sig, ok := strings.Cut(c.Value, ".")
	if !ok {
		return 0, false
	}
	if !hmac.Equal([]byte(sig), []byte(a.sign(uidStr))) {
		return 0, false
	}
	id64, err := strconv.ParseUint(uidStr, 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

// IssueToken returns a signed bearer token for userID and its expiry.
func (a *Authenticator) IssueToken(userID uint) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ParseToken validates a bearer token and returns its user id.
func (a *Authenticator) ParseToken(tokenStr string) (uint, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id64, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id64 == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id64), nil
}

// identify returns the caller from the Authorization header or the cookie.
// A present but invalid bearer token is not retried against the cookie.
func (a *Authenticator) identify(r *http.Request) (uint, bool) {
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return 0, false
		}
		uid, err := a.ParseToken(strings.TrimSpace(token))
		return uid, err == nil
	}
	return a.ParseSession(r)
}

// Middleware attaches the caller's user id to the request context if present.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if uid, ok := a.identify(c.Request()); ok {
				c.SetRequest(c.Request().WithContext(WithUserID(c.Request().Context(), uid)))
			}
			return next(c)
		}
	}
}

// RequireAuth rejects requests without a verified caller.
func (a *Authenticator) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			uid, ok := UserIDFromContext(ctx)
			if !ok {
				return httperror.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			if a.verifier != nil && !a.verifier(ctx, uid) {
				// The session refers to a deleted user.
				ClearSession(c.Response())
				return httperror.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			return next(c)
		}
	}
}
