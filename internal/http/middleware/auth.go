// README: Auth middleware; verifies bearer tokens, gates routes by role and mirrors callers into accounts.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"spotledger/internal/infra"
	"spotledger/internal/modules/account"
	"spotledger/internal/types"
)

const (
	ctxUID  = "auth.uid"
	ctxRole = "auth.role"
	ctxName = "auth.name"
)

// Auth rejects requests without a valid "Authorization: Bearer <token>" header.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || id == nil || id.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUID, id.UID)
		c.Set(ctxRole, id.Role)
		c.Set(ctxName, id.Name)
		c.Next()
	}
}

// RequireRole must run after Auth.
func RequireRole(roles ...account.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := account.Role(CallerRole(c))
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

type AccountEnsurer interface {
	Ensure(ctx context.Context, cmd account.EnsureCommand) error
}

// EnsureAccount creates the caller's account row on first sight. Callers
// without a known role are passed through for RequireRole to reject.
func EnsureAccount(accounts AccountEnsurer) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := accounts.Ensure(c.Request.Context(), account.EnsureCommand{
			ID:   types.ID(CallerUID(c)),
			Name: c.GetString(ctxName),
			Role: account.Role(CallerRole(c)),
		})
		if err != nil && !errors.Is(err, account.ErrInvalidRole) {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}
