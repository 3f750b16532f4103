package api

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator validates bearer JWTs on every /v1 route, and
// additionally gates the admin delete endpoint behind a TOTP code
// checked against AdminTOTPSecret. Grounded on
// pkg/infrastructure/security/jwt.go's claims-validation shape and
// internal/auth/application/mfa_service.go's TOTP verify call.
type Authenticator struct {
	jwtSecret       []byte
	adminAPIKeyHash string

	mu              sync.RWMutex
	adminTOTPSecret string
}

// NewAuthenticator builds an Authenticator. adminAPIKeyHash is a bcrypt
// hash of the admin API key; adminTOTPSecret is the shared TOTP
// secret. Either may be empty, in which case the admin endpoint
// rejects all requests.
func NewAuthenticator(jwtSecret, adminAPIKeyHash, adminTOTPSecret string) *Authenticator {
	return &Authenticator{
		jwtSecret:       []byte(jwtSecret),
		adminAPIKeyHash: adminAPIKeyHash,
		adminTOTPSecret: adminTOTPSecret,
	}
}

// RequireBearer validates the Authorization: Bearer <token> header
// against the configured JWT secret.
func (a *Authenticator) RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == "" || tokenString == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			return a.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// RequireAdminTOTP additionally requires an X-Admin-Key header whose
// value, once verified against the bcrypt hash, authorizes the
// request, AND a valid X-Admin-OTP header checked against the
// admin TOTP secret.
func (a *Authenticator) RequireAdminTOTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := a.totpSecret()
		if a.adminAPIKeyHash == "" || secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin endpoint not configured"})
			return
		}

		apiKey := c.GetHeader("X-Admin-Key")
		if err := bcrypt.CompareHashAndPassword([]byte(a.adminAPIKeyHash), []byte(apiKey)); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid admin key"})
			return
		}

		code := c.GetHeader("X-Admin-OTP")
		if !totp.Validate(code, secret) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid totp code"})
			return
		}
		c.Next()
	}
}

func (a *Authenticator) totpSecret() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.adminTOTPSecret
}

// SetAdminTOTPSecret rotates the admin TOTP secret in place, for a
// config hot-reload.
func (a *Authenticator) SetAdminTOTPSecret(secret string) {
	a.mu.Lock()
	a.adminTOTPSecret = secret
	a.mu.Unlock()
}
