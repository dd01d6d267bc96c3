package auth

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by a channel auth token.
type Claims struct {
	DeviceID string `json:"device_id"`
	UserName string `json:"user_name,omitempty"`
	jwt.RegisteredClaims
}

func secret() []byte {
	if s := os.Getenv("NAIJATALK_JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("naijatalk-dev-secret")
}

// GenerateClientToken signs a token the client attaches to the channel URL.
func GenerateClientToken(deviceID, userName string) (string, error) {
	claims := &Claims{
		DeviceID: deviceID,
		UserName: userName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

// ValidateToken validates a channel auth token and returns its claims.
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret(), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrInvalidKey
}
