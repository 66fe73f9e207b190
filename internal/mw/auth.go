package mw

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kilnworks-backend/internal/firing"
)

// StudioAuth requires a bearer token matching the one configured for the
// :studio_id route parameter. The token is stored on the request context
// so a remote backend can forward it. An empty token map disables the check
// but still forwards whatever token the caller sent.
func StudioAuth(tokens map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		if len(tokens) > 0 {
			want, ok := tokens[c.Param("studio_id")]
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(want)) != 1 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid studio credential", "code": "unauthorized"})
				return
			}
		}

		if token != "" {
			c.Request = c.Request.WithContext(firing.WithCredential(c.Request.Context(), token))
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
