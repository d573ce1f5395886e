// Package auth resolves the store owner of a request. A bearer JWT makes the
// caller a signed-in owner keyed by its subject; without one the caller runs
// in guest mode keyed by the X-Guest-ID header.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"usaha/internal/localstore"
	"usaha/internal/log"
	"usaha/internal/store"
)

// GuestHeader names the header carrying a guest's local id.
const GuestHeader = "X-Guest-ID"

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type contextKey struct{}

// Claims are the token claims the API reads. Subject is the owner key.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 tokens signed with a shared secret.
type Authenticator struct {
	secret []byte
	logger *log.Logger
	now    func() time.Time
}

// New returns an Authenticator. An empty secret disables signed-in mode and
// every request must be a guest.
func New(secret string, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Authenticator{secret: []byte(secret), logger: logger.WithComponent(log.ComponentAuth), now: time.Now}
}

// ValidateToken parses a token and returns its claims.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, fmt.Errorf("%w: signed-in mode disabled", ErrInvalidToken)
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// IssueToken signs a token for owner. Used by tooling and tests.
func (a *Authenticator) IssueToken(owner, email string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Resolve maps a request onto its owner.
func (a *Authenticator) Resolve(r *http.Request) (store.Owner, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return store.Owner{}, fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
		}
		claims, err := a.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			return store.Owner{}, err
		}
		return store.Owner{Key: claims.Subject}, nil
	}

	guest := strings.TrimSpace(r.Header.Get(GuestHeader))
	if guest == "" {
		return store.Owner{}, ErrMissingCredentials
	}
	if !localstore.ValidKey(guest) {
		return store.Owner{}, fmt.Errorf("%w: bad guest id", ErrInvalidToken)
	}
	return store.Owner{Key: guest, Guest: true}, nil
}

// Middleware puts the resolved owner into the request context. Failures
// are handed to onError.
func (a *Authenticator) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := a.Resolve(r)
			if err != nil {
				log.FromContext(r.Context()).DebugContext(r.Context(), "Request not authenticated",
					log.NewFields().WithErrorType(log.ErrorTypeAuth).WithError(err).ToSlice()...)
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

// WithOwner returns a copy of ctx carrying owner.
func WithOwner(ctx context.Context, owner store.Owner) context.Context {
	return context.WithValue(ctx, contextKey{}, owner)
}

// OwnerFrom returns the owner set by Middleware.
func OwnerFrom(ctx context.Context) (store.Owner, bool) {
	owner, ok := ctx.Value(contextKey{}).(store.Owner)
	return owner, ok
}
