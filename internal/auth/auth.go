package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when the Authorization header is missing or malformed.
	ErrNoToken = errors.New("missing bearer token")
	// ErrWrongDomain is returned for identities outside the allowed email domain.
	ErrWrongDomain = errors.New("email outside allowed domain")
)

// Claims carries the authenticated identity in the session token.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller placed in the request context.
type Identity struct {
	Name  string
	Email string
	Admin bool
}

// Authenticator verifies HS256 session tokens and restricts sign-in to one
// institutional email domain.
type Authenticator struct {
	secret []byte
	domain string
}

func New(secret, emailDomain string) *Authenticator {
	return &Authenticator{secret: []byte(secret), domain: strings.ToLower(emailDomain)}
}

// IssueToken mints a session token for the given identity.
func (a *Authenticator) IssueToken(name, email string, admin bool, ttl time.Duration) (string, error) {
	if !a.allowed(email) {
		return "", fmt.Errorf("issue token for %q: %w", email, ErrWrongDomain)
	}
	now := time.Now()
	claims := Claims{
		Name:  name,
		Email: email,
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken validates the signature, expiry, and email domain.
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if !a.allowed(claims.Email) {
		return nil, fmt.Errorf("%q: %w", claims.Email, ErrWrongDomain)
	}
	return claims, nil
}

func (a *Authenticator) allowed(email string) bool {
	if a.domain == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(email), "@"+a.domain)
}

type contextKey struct{}

// IdentityFromContext returns the verified caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// WithIdentity is exported for handler tests.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Middleware rejects requests without a valid session token and stores the
// identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.fromRequest(r)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, ErrWrongDomain) {
				status = http.StatusForbidden
			}
			http.Error(w, "unauthorized", status)
			return
		}
		ctx := WithIdentity(r.Context(), Identity{Name: claims.Name, Email: claims.Email, Admin: claims.Admin})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin layers on Middleware and additionally requires the admin claim.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok || !id.Admin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (a *Authenticator) fromRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrNoToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrNoToken
	}
	return a.ParseToken(parts[1])
}
