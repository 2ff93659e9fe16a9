package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"peerprep/interview/internal/models"
	"peerprep/interview/internal/utils"
)

const userIDKey contextKey = "user_id"

var (
	ErrMissingAuthHeader = errors.New("missing or malformed Authorization header")
	ErrInvalidToken      = errors.New("invalid token")
	ErrInvalidClaims     = errors.New("invalid token claims")
)

// VerifyToken validates the bearer token of r with an HMAC secret and returns
// its claims.
func VerifyToken(r *http.Request, secret string) (jwt.MapClaims, error) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return nil, ErrMissingAuthHeader
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// UserIDFromClaims reads the "sub" claim; numeric ids are formatted as integers.
func UserIDFromClaims(claims jwt.MapClaims) (string, error) {
	switch v := claims["sub"].(type) {
	case string:
		return v, nil
	case float64:
		return fmt.Sprintf("%d", int64(v)), nil
	case nil:
		return "", errors.New("missing sub claim")
	default:
		return "", errors.New("invalid sub claim type")
	}
}

// Authenticate attaches the caller's user id to the request context. With an
// empty secret authentication is disabled and every request passes through.
// A request without a token is anonymous unless required is set; a request
// with a bad token is always rejected.
func Authenticate(secret string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := VerifyToken(r, secret)
			if errors.Is(err, ErrMissingAuthHeader) && !required {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				unauthorized(w, err)
				return
			}
			userID, err := UserIDFromClaims(claims)
			if err != nil {
				unauthorized(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
		Code:    "unauthorized",
		Message: err.Error(),
	})
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
