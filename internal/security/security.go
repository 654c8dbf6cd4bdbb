// Package security provides request hardening middleware: body size limits,
// content type validation, request timeouts, and identifier validation.
package security

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxBodyBytes   int64         `json:"max_body_bytes"`
	MaxIDLength    int           `json:"max_id_length"`
	TrustedProxies []string      `json:"trusted_proxies"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxBodyBytes:   100 * 1024,
		MaxIDLength:    128,
		TrustedProxies: []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		RequestTimeout: 30 * time.Second,
	}
}

// SecurityMiddleware provides request hardening middleware
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

// ValidateIdentifier checks a ship, market, or segment identifier supplied by
// a client. Identifiers travel into cache keys and log lines, so control
// characters and null bytes are rejected outright.
func (sm *SecurityMiddleware) ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier must not be empty")
	}
	if len(id) > sm.config.MaxIDLength {
		return fmt.Errorf("identifier exceeds maximum length of %d characters", sm.config.MaxIDLength)
	}
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("identifier contains invalid characters")
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("identifier contains invalid UTF-8 encoding")
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return fmt.Errorf("identifier contains control characters")
		}
	}
	return nil
}

// LimitBodySize rejects request bodies larger than MaxBodyBytes before the
// handler reads them.
func (sm *SecurityMiddleware) LimitBodySize(c *gin.Context) {
	if c.Request.ContentLength > sm.config.MaxBodyBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":     "request body too large",
			"max_bytes": sm.config.MaxBodyBytes,
		})
		c.Abort()
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxBodyBytes)
	c.Next()
}

// ValidateContentType validates request content type
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	contentType := c.GetHeader("Content-Type")

	// Allow JSON, form-encoded bodies, and CSV catalog uploads
	allowedTypes := []string{
		"application/json",
		"application/x-www-form-urlencoded",
		"multipart/form-data",
		"text/csv",
	}

	if contentType != "" {
		found := false
		for _, allowed := range allowedTypes {
			if strings.Contains(strings.ToLower(contentType), allowed) {
				found = true
				break
			}
		}

		if !found {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{
				"error": "unsupported content type",
			})
			c.Abort()
			return
		}
	}

	c.Next()
}

// RequestTimeout enforces request timeout
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	// Create a timeout context
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	// Replace request context
	c.Request = c.Request.WithContext(ctx)

	// Set timeout header for client
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}
