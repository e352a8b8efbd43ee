package middleware

import (
	"net/http"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt"

	internal_jwt "restaurant-chat-backend/internal/jwt"
)

func ValidateJWTMiddleware(roles ...internal_jwt.Role) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			var claims gojwt.MapClaims
			var err error
			for _, role := range roles {
				claims, err = internal_jwt.ParseToken(tokenString, role)
				if err == nil {
					break
				}
			}
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			expires, ok := claims["exp"].(float64)
			if !ok || time.Now().Unix() > int64(expires) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			next(w, r)
		}
	}
}

var ValidateStaffJWT = ValidateJWTMiddleware(internal_jwt.RoleStaff)
var ValidateUserJWT = ValidateJWTMiddleware(internal_jwt.RoleCustomer, internal_jwt.RoleGuest)
