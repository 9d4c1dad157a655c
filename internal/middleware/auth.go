package middleware

import (
	"net/http"
	"strings"

	"github.com/osvaldoandrade/geoscope/pkg/config"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the static bearer token from the Authorization
// header to an owner id. The identity system proper lives outside this
// service; tokens come pre-provisioned through configuration.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	admin := map[string]bool{}
	for _, tok := range cfg.AdminTokens {
		admin[tok] = true
	}
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed Authorization header"})
			return
		}
		owner, ok := cfg.APITokens[token]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown token"})
			return
		}
		c.Set("ownerID", owner)
		if admin[token] {
			c.Set("ownerRole", "ADMIN")
		} else {
			c.Set("ownerRole", "USER")
		}
		c.Next()
	}
}

// OwnerID returns the owner id resolved by AuthMiddleware, or "" when the
// request never passed through it.
func OwnerID(c *gin.Context) string {
	v, _ := c.Get("ownerID")
	owner, _ := v.(string)
	return owner
}

func bearerToken(authHeader string) string {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
