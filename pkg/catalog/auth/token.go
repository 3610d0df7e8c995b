package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/simple-product/pkg/catalog"
)

// DefaultTokenTTL is how long an issued token stays valid
const DefaultTokenTTL = 24 * time.Hour

const (
	claimUserID   = "user_id"
	claimUsername = "username"
	claimStaff    = "staff"
)

// Tokens issues and verifies HS256 bearer tokens
type Tokens struct {
	ja  *jwtauth.JWTAuth
	ttl time.Duration
}

// NewTokens creates a token issuer signing with secret.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{
		ja:  jwtauth.New("HS256", []byte(secret), nil),
		ttl: ttl,
	}, nil
}

// Issue returns a signed token for user.
func (t *Tokens) Issue(user *User) (string, error) {
	claims := map[string]interface{}{
		"sub":         user.Username,
		claimUserID:   user.ID,
		claimUsername: user.Username,
		claimStaff:    user.Staff,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, t.ttl)

	_, token, err := t.ja.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

type callerKey struct{}

// WithCaller stores the caller on ctx.
func WithCaller(ctx context.Context, caller *catalog.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller stored on ctx, or nil for anonymous requests.
func CallerFrom(ctx context.Context) *catalog.Caller {
	caller, _ := ctx.Value(callerKey{}).(*catalog.Caller)
	return caller
}

// Middleware verifies an optional bearer token and exposes the caller through
// CallerFrom. Requests without a token continue anonymously; a bad token is 401.
func (t *Tokens) Middleware(next http.Handler) http.Handler {
	return jwtauth.Verifier(t.ja)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if errors.Is(err, jwtauth.ErrNoTokenFound) || (err == nil && token == nil) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			unauthorized(w, r, "Invalid token.")
			return
		}

		caller, err := callerFromClaims(claims)
		if err != nil {
			unauthorized(w, r, "Invalid token.")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	}))
}

func unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"detail": detail})
}

func callerFromClaims(claims map[string]interface{}) (*catalog.Caller, error) {
	id, err := int64Claim(claims[claimUserID])
	if err != nil {
		return nil, err
	}
	caller := &catalog.Caller{UserID: id}
	caller.Username, _ = claims[claimUsername].(string)
	caller.Staff, _ = claims[claimStaff].(bool)
	return caller, nil
}

func int64Claim(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("unexpected %s claim %v", claimUserID, v)
}
