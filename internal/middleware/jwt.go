package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/logger"
	"github.com/noah-isme/eleven-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// TokenValidator checks an access token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token, read from the named cookie
// first and the Authorization bearer header second.
func JWT(validator TokenValidator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := tokenFromRequest(c.Request, cookieName)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func tokenFromRequest(r *http.Request, cookieName string) (string, error) {
	if cookieName != "" {
		if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
			return cookie.Value, nil
		}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// Claims returns the claims stored by JWT, or nil on unauthenticated routes.
func Claims(c *gin.Context) *models.JWTClaims {
	if c == nil {
		return nil
	}
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// ActorLogger returns a logger carrying the authenticated user id, if any.
func ActorLogger(c *gin.Context, base *zap.Logger) *zap.Logger {
	claims := Claims(c)
	if claims == nil {
		return base
	}
	return logger.WithActor(base, claims.ActorID())
}
