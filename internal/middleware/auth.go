package middleware

import (
	"context"
	"errors"
	"net/http"
	"socialconnect/internal/models"
	"socialconnect/internal/services"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	CheckUserKey = "user"
	TokenKey     = "access_token"

	SessionUserID = "user_id"
	SessionToken  = "access_token"
)

// Authenticator resolves credentials to an active local user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
	ActiveByID(ctx context.Context, id uint) (*models.User, error)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func sessionUserID(v any) uint {
	switch id := v.(type) {
	case uint:
		return id
	case int:
		if id > 0 {
			return uint(id)
		}
	case int64:
		if id > 0 {
			return uint(id)
		}
	case float64:
		if id > 0 {
			return uint(id)
		}
	}
	return 0
}

// LoadUser retrieves the user from a bearer token or the session cookie and
// sets it on the context. Requests without valid credentials pass through
// anonymously; AuthRequired rejects them where needed.
func LoadUser(auth Authenticator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		session := sessions.Default(c)

		token := bearerToken(c)
		if token == "" {
			token, _ = session.Get(SessionToken).(string)
		}

		if token != "" {
			user, err := auth.Authenticate(ctx, token)
			switch {
			case err == nil:
				c.Set(CheckUserKey, user)
				c.Set(TokenKey, token)
				c.Next()
				return
			case !errors.Is(err, services.ErrUnauthorized):
				log.Warn("token authentication failed", zap.Error(err))
			}
		}

		if id := sessionUserID(session.Get(SessionUserID)); id != 0 {
			user, err := auth.ActiveByID(ctx, id)
			if err == nil {
				c.Set(CheckUserKey, user)
			} else if !errors.Is(err, services.ErrUnauthorized) {
				log.Warn("session authentication failed", zap.Uint("user_id", id), zap.Error(err))
			}
		}
		c.Next()
	}
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": services.ErrUnauthorized.Msg})
			return
		}
		c.Next()
	}
}

// AdminRequired allows staff only. It must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsStaff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": services.ErrForbidden.Msg})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// AccessToken returns the provider token the request authenticated with.
func AccessToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
