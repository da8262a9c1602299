// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the authorization gate: every authenticated route
// passes through RequireAuth, which verifies the bearer session token and
// resolves the caller's entitlement (plan tier and free-usage counter) from
// the external entitlement store before any handler logic runs. A missing or
// invalid token short-circuits with an HTTP 401; no partial handler work can
// occur.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/quickai/go-quickai-backend/internal/entitlement"
)

// Context keys set by RequireAuth for downstream handlers.
const (
	CtxUserID    = "userID"
	CtxPlan      = "plan"
	CtxFreeUsage = "freeUsage"
)

// ErrNoSubject is returned when a structurally valid token carries no
// subject claim.
var ErrNoSubject = errors.New("token has no subject")

// RequireAuth returns a Gin middleware that authenticates the request.
//
// Behavior:
//   - Reads the Authorization header and requires the "Bearer <token>" form.
//   - Verifies the token as an HMAC-signed JWT (HS256/384/512) against secret
//     and extracts the subject claim as the opaque user id.
//   - Resolves the caller's entitlement from store and stashes userID, plan,
//     and freeUsage in the Gin context.
//   - On any failure responds 401 with the standard error body and aborts.
//
// Entitlement lookup failures are treated as authentication failures: a
// handler must never run without a resolved plan.
func RequireAuth(secret string, store entitlement.Store) gin.HandlerFunc {
	keyFn := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}

		parsed, err := jwt.Parse(token, keyFn,
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		)
		if err != nil || !parsed.Valid {
			unauthorized(c, "invalid or expired token")
			return
		}
		sub, err := parsed.Claims.GetSubject()
		if err != nil || sub == "" {
			unauthorized(c, "invalid or expired token")
			return
		}

		ent, err := store.Get(c.Request.Context(), sub)
		if err != nil {
			unauthorized(c, "unknown user")
			return
		}

		c.Set(CtxUserID, sub)
		c.Set(CtxPlan, ent.Plan)
		c.Set(CtxFreeUsage, ent.FreeUsage)
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// unauthorized writes the HTTP-level rejection used for authentication
// failures, distinct from the body-level success:false convention used for
// business-rule failures.
func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
