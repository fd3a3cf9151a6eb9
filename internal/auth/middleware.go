// Package auth supplies the session collaborator: it validates access
// tokens issued by the account service and attaches the current user to the
// request context. Account management itself lives outside this service.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/aqualife-vn/backend-aqualife/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware validates HS256 bearer tokens and exposes the subject as the
// current user.
type Middleware struct {
	Secret    []byte
	Issuer    string
	ClockSkew time.Duration
}

// RequireAuth rejects requests without a valid token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.subject(r)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
	})
}

func (m Middleware) subject(r *http.Request) (string, error) {
	raw := extractBearer(r)
	if raw == "" {
		return "", errNoToken
	}
	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, m.Secret),
		jwt.WithValidate(true),
	}
	if m.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.Issuer))
	}
	if m.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(m.ClockSkew))
	}
	parsed, err := jwt.ParseString(raw, options...)
	if err != nil {
		return "", err
	}
	sub := strings.TrimSpace(parsed.Subject())
	if sub == "" {
		return "", errors.New("auth: token has no subject")
	}
	return sub, nil
}

func extractBearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
