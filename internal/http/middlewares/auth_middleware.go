package middlewares

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/geocoder89/conventionhub/internal/auth"
	"github.com/gin-gonic/gin"
)

type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": message,
		},
	})
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		// browsers cannot set headers on a websocket handshake
		if header == "" && strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			if tok := c.Query("access_token"); tok != "" {
				header = "Bearer " + tok
			}
		}
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		userID, err := claims.UserIDInt()
		if err != nil {
			abortUnauthorized(c, "Invalid token subject")
			return
		}

		c.Set(CtxUserID, userID)
		c.Set(CtxEmail, claims.Email)
		c.Set(CtxRole, claims.Role)

		c.Next()
	}
}

func UserIDFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func RoleFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxRole)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}

func IsAdmin(c *gin.Context) bool {
	role, _ := RoleFromContext(c)
	return role == auth.RoleAdmin
}

// ActorFromContext is the caller identity recorded on tasks.
func ActorFromContext(c *gin.Context) *string {
	id, ok := UserIDFromContext(c)
	if !ok {
		return nil
	}
	s := strconv.FormatInt(id, 10)
	return &s
}
