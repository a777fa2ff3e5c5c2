package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	clientdomain "github.com/nextlevelcode/meterbill/internal/client/domain"
	"go.uber.org/zap"
)

const contextClientKey = "authenticated_client"

// APIKeyRequired authenticates a request with a raw API key carried as
// a bearer token and resolves it to an active client.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		client, err := s.clientSvc.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextClientKey, client)
		c.Next()
	}
}

func authenticatedClient(c *gin.Context) *clientdomain.Client {
	value, ok := c.Get(contextClientKey)
	if !ok {
		return nil
	}
	client, _ := value.(*clientdomain.Client)
	return client
}

// AdminKeyRequired gates management routes with a shared admin key.
// Only the key's hash is configured; the raw key never touches disk.
func (s *Server) AdminKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminKeyHash == "" {
			AbortWithError(c, ErrForbidden)
			return
		}

		raw := strings.TrimSpace(c.GetHeader("X-Admin-Key"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		sum := sha256.Sum256([]byte(raw))
		hash := hex.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(hash), []byte(strings.ToLower(s.cfg.AdminKeyHash))) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Next()
	}
}

// IngestRateLimit throttles the metering endpoints per client. Limiter
// outages fail open.
func (s *Server) IngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.ingestLimiter == nil || !s.ingestLimiter.Enabled() {
			c.Next()
			return
		}

		client := authenticatedClient(c)
		if client == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		result, err := s.ingestLimiter.AllowClient(c.Request.Context(), client.ID)
		if err != nil {
			s.log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			c.Header("Retry-After", result.RetryAfter.String())
			AbortWithError(c, ErrTooManyRequest)
			return
		}

		c.Next()
	}
}
