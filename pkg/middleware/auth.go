package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prepwise/prepwise/backend/auth-service/internal/config"
	"github.com/prepwise/prepwise/backend/auth-service/internal/models"
	"github.com/prepwise/prepwise/backend/auth-service/internal/sessions"
	"github.com/prepwise/prepwise/backend/auth-service/internal/tokens"
	"github.com/prepwise/prepwise/backend/auth-service/internal/users"
	"github.com/prepwise/prepwise/backend/auth-service/pkg/logger"
)

// UserKey is the context key under which the authenticated identity is
// attached for downstream handlers.
const UserKey = "user"

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// resolveUser runs the full verification chain: signature and expiry,
// blacklist, then a store round trip confirming the identity still exists.
func resolveUser(c *gin.Context, cfg *config.Config, svc *users.Service) (*models.User, error) {
	raw := bearerToken(c)
	if raw == "" {
		return nil, tokens.ErrInvalidToken
	}
	claims, err := tokens.ParseAccessToken(cfg, raw)
	if err != nil {
		return nil, err
	}
	black, berr := sessions.IsAccessTokenBlacklisted(c.Request.Context(), raw)
	if berr != nil {
		// an unreachable blacklist must at least leave a trace
		logger.Warnf("access token blacklist check failed: %v", berr)
	} else if black {
		return nil, tokens.ErrInvalidToken
	}
	u, err := svc.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// AuthMiddleware is the per-request gate for protected endpoints. A missing
// header is reported distinctly from an invalid token; every verification
// mismatch collapses into one generic message.
func AuthMiddleware(cfg *config.Config, svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bearerToken(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Access token is required"})
			return
		}
		u, err := resolveUser(c, cfg, svc)
		if err != nil {
			msg := "Invalid or expired token"
			if err == users.ErrNotFound {
				msg = "User not found"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": msg})
			return
		}
		c.Set(UserKey, u.Public())
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the identity when a valid token is
// presented and succeeds through on any failure, for endpoints that serve
// anonymous and authenticated callers differently.
func OptionalAuthMiddleware(cfg *config.Config, svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if u, err := resolveUser(c, cfg, svc); err == nil {
			c.Set(UserKey, u.Public())
		}
		c.Next()
	}
}

// CurrentUser returns the identity attached by the auth middleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}
