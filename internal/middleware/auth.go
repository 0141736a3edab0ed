package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"tribune/internal/config"
)

const accessTokenExpiry = 15 * time.Minute

// Context keys set by AuthMiddleware.
const (
	ClaimsKey = "claims"
)

// PlatformRole marks callers with cross-tenant privileges.
const PlatformRole = "platform"

// getJWTKey returns the JWT key from configuration
func getJWTKey() []byte {
	return []byte(config.Get().JWTSecret)
}

// JWTClaims represents the claims in the JWT. The platform's identity service
// issues these tokens; this subsystem only verifies them and trusts the
// scope they carry.
type JWTClaims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	OrgID       string `json:"org_id"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// IsPlatform reports whether the caller holds cross-tenant privileges.
func (c *JWTClaims) IsPlatform() bool {
	return c.Role == PlatformRole
}

// GenerateAccessToken signs a short-lived access token for the given
// identity. Used by tests and local tooling; production tokens come from the
// identity service with the same shape.
func GenerateAccessToken(userID, displayName, orgID, role string) (string, error) {
	claims := &JWTClaims{
		UserID:      userID,
		DisplayName: displayName,
		OrgID:       orgID,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "tribune-platform",
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTKey())
}

// AuthMiddleware verifies the JWT token and sets the caller's claims in the
// context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		// Check if the header is in the correct format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		// Parse the token
		tokenString := parts[1]
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return getJWTKey(), nil
		})

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
