package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/hollanddz228/ComputerClubBookingg/internal/service/booking"
)

const identityKey = "identity"

// Claims carries the caller identity: sub is the user ID, email the contact
// shown on reservations.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func parseToken(secret []byte, tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		if len(secret) == 0 {
			return nil, errors.New("jwt secret is not configured")
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// JWTAuth rejects requests without a valid bearer token and stores the caller
// identity on the context.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := parseToken(secret, strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(identityKey, booking.Identity{UserID: claims.Subject, UserContact: claims.Email})
		c.Next()
	}
}

func identityFrom(c *gin.Context) booking.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(booking.Identity)
	return id
}
