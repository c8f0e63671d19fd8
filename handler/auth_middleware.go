package handler

import (
	"context"
	"go-ledger-api/common"
	"go-ledger-api/model"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// AuthMiddleware resolves the acting principal from the bearer token. The
// ledger does not manage identities; it only needs the caller's id and the
// privileged capability flag carried in the claims.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	jwtKey := []byte(jwtSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				err := common.NewAppError(http.StatusUnauthorized, "Authorization header is required", nil)
				err.Send(w)
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				err := common.NewAppError(http.StatusUnauthorized, "Invalid authorization header format", nil)
				err.Send(w)
				return
			}

			tokenString := headerParts[1]
			claims := &model.AppClaims{}

			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return jwtKey, nil
			})

			if err != nil || !token.Valid {
				appErr := common.NewAppError(http.StatusUnauthorized, "Invalid or expired token", err)
				appErr.Send(w)
				return
			}

			principal := model.Principal{
				ID:         claims.UserID,
				Privileged: claims.Privileged,
			}
			ctx := context.WithValue(r.Context(), PrincipalKey, principal)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func principalFromRequest(r *http.Request) (model.Principal, bool) {
	principal, ok := r.Context().Value(PrincipalKey).(model.Principal)
	return principal, ok
}
