package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/zeroturbo/core"
	"github.com/layer-3/zeroturbo/ports"
	"github.com/layer-3/zeroturbo/service"
)

const subjectKey = "subject"

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if len(auth) < 8 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(auth[7:]), true
}

// AuthMiddleware validates access tokens against the issuer's own session state
func AuthMiddleware(issuer *service.IssuerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		session, err := issuer.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			abortInvalidToken(c, err)
			return
		}

		subject := session.Subject
		c.Set(subjectKey, &subject)
		c.Next()
	}
}

// BearerMiddleware validates access tokens with a verifier, used by services other than the issuer
func BearerMiddleware(verifier ports.AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		subject, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			abortInvalidToken(c, err)
			return
		}

		c.Set(subjectKey, subject)
		c.Next()
	}
}

func abortInvalidToken(c *gin.Context, err error) {
	if errors.Is(err, core.ErrTokenExpired) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
}

func subjectFrom(c *gin.Context) (*core.Subject, bool) {
	v, exists := c.Get(subjectKey)
	if !exists {
		return nil, false
	}
	subject, ok := v.(*core.Subject)
	return subject, ok
}

// CORS allows the listed browser origins to call the API with bearer tokens
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed[origin] {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
