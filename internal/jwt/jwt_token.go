package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"

	"restaurant-chat-backend/internal/env"
)

// Secrets are read per call rather than at import so packages under test do
// not need a configured environment.
func roleSecret(role Role) string {
	switch role {
	case RoleStaff:
		return env.Get(env.StaffSecretKey)
	case RoleCustomer, RoleGuest:
		return env.Get(env.CustomerSecret)
	}
	return ""
}

// Tokens carry a trailing role character so a staff token can never be
// replayed against a customer endpoint even if the secrets matched.
func roleChar(role Role) string {
	switch role {
	case RoleStaff:
		return "1"
	case RoleCustomer:
		return "2"
	case RoleGuest:
		return "3"
	}
	return ""
}

func CreateToken(subject TokenSubject, role Role, validUntil int64) (string, error) {
	secret := roleSecret(role)
	if secret == "" {
		return "", fmt.Errorf("no secret configured for role")
	}

	if validUntil == 0 {
		validUntil = time.Now().Add(15 * time.Minute).Unix()
	}

	claims := jwt.MapClaims{
		"id":   subject.ID,
		"kind": subject.Kind,
		"exp":  validUntil,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString + roleChar(role), nil
}

func ParseToken(tokenString string, role Role) (jwt.MapClaims, error) {
	if len(tokenString) == 0 {
		return nil, fmt.Errorf("token string is empty")
	}

	if tokenString[len(tokenString)-1:] != roleChar(role) {
		return nil, fmt.Errorf("invalid role character in token")
	}
	tokenString = tokenString[:len(tokenString)-1]

	secret := roleSecret(role)
	if secret == "" {
		return nil, fmt.Errorf("no secret configured for role")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid - unauthorized")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims of unauthorized type")
	}

	return claims, nil
}

// SubjectFromClaims pulls the identity out of parsed claims.
func SubjectFromClaims(claims jwt.MapClaims) (TokenSubject, error) {
	id, _ := claims["id"].(string)
	if id == "" {
		return TokenSubject{}, fmt.Errorf("token has no subject id")
	}
	kind, _ := claims["kind"].(string)
	return TokenSubject{ID: id, Kind: kind}, nil
}
