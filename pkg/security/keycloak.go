package security

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type KeycloakClaims struct {
	Azp               string `json:"azp"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// JWKS is a remote key set refreshed in the background. Call Close on shutdown.
type JWKS struct {
	jwks *keyfunc.JWKS
}

func NewJWKS(jwksURL string, log zerolog.Logger) (*JWKS, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:  time.Hour,
		RefreshTimeout:   10 * time.Second,
		RefreshRateLimit: 5 * time.Minute,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Msg("failed to refresh JWKS")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}
	return &JWKS{jwks: jwks}, nil
}

func (j *JWKS) Keyfunc(token *jwt.Token) (interface{}, error) {
	return j.jwks.Keyfunc(token)
}

func (j *JWKS) Close() {
	j.jwks.EndBackground()
}

// AuthMiddleware validates bearer tokens issued to clientID.
func AuthMiddleware(keys jwt.Keyfunc, clientID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "authorization header required")
			return
		}

		scheme, tokenString, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || tokenString == "" {
			unauthorized(c, "invalid authorization header format")
			return
		}

		// ParseWithClaims also rejects expired tokens.
		token, err := jwt.ParseWithClaims(tokenString, &KeycloakClaims{}, keys)
		if err != nil || !token.Valid {
			unauthorized(c, "invalid token")
			return
		}

		claims, ok := token.Claims.(*KeycloakClaims)
		if !ok {
			unauthorized(c, "failed to extract claims")
			return
		}
		if claims.Azp != clientID {
			unauthorized(c, "invalid audience")
			return
		}

		c.Set("user", claims.PreferredUsername)
		c.Set("email", claims.Email)
		c.Set("claims", claims)

		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg})
}
