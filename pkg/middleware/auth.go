package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key holding verified token claims.
const ClaimsKey = "claims"

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		// Expect 'Bearer <token>'
		var token string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		verified, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		var claims map[string]interface{}
		if err := verified.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// FolderScope rejects requests whose token carries a "folders" claim that
// does not include the requested folder. Tokens without the claim, or with
// "*" in it, may access every folder. Requests without claims pass through,
// so it can be chained unconditionally after an optional AuthMiddleware.
func FolderScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			c.Next()
			return
		}
		if !FolderAllowed(claims, c.Param("folder")) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "folder not permitted by token"})
			return
		}
		c.Next()
	}
}

// FolderAllowed reports whether claims grant access to folder.
func FolderAllowed(claims map[string]interface{}, folder string) bool {
	raw, ok := claims["folders"]
	if !ok {
		return true
	}
	var scopes []string
	switch v := raw.(type) {
	case []interface{}:
		for _, s := range v {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
	case []string:
		scopes = v
	case string:
		scopes = []string{v}
	}
	for _, s := range scopes {
		if s == "*" || s == folder {
			return true
		}
	}
	return false
}

func claimsFrom(c *gin.Context) (map[string]interface{}, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	cm, ok := v.(map[string]interface{})
	return cm, ok
}

// subjectOrIP picks the rate-limit key: the authenticated subject when
// present, otherwise the client IP.
func subjectOrIP(c *gin.Context) string {
	if cm, ok := claimsFrom(c); ok {
		if sub, ok := cm["sub"].(string); ok && sub != "" {
			return "sub:" + sub
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

type chain []Verifier

// ChainVerifiers accepts a token when any of vs accepts it, trying them in
// order. The last error is returned when all reject.
func ChainVerifiers(vs ...Verifier) Verifier {
	if len(vs) == 1 {
		return vs[0]
	}
	return chain(vs)
}

func (c chain) Verify(ctx context.Context, raw string) (Token, error) {
	err := fmt.Errorf("no verifier configured")
	for _, v := range c {
		tok, verr := v.Verify(ctx, raw)
		if verr == nil {
			return tok, nil
		}
		err = verr
	}
	return nil, err
}
