package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated covers every handshake failure: missing, malformed
// and expired credentials alike. Callers close the connection and reveal
// nothing further.
var ErrUnauthenticated = errors.New("unauthenticated")

const tokenQueryParam = "token"

type contextKey string

const userIdKey contextKey = "user-id"

func WithUserId(ctx context.Context, userId int64) context.Context {
	return context.WithValue(ctx, userIdKey, userId)
}

func UserId(ctx context.Context) (int64, bool) {
	userId, ok := ctx.Value(userIdKey).(int64)

	return userId, ok
}

// extractBearerToken pulls the raw credential from the Authorization
// header, falling back to the token query parameter for websocket clients
// that cannot set headers during the upgrade request.
func extractBearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
		return ""
	}

	return r.URL.Query().Get(tokenQueryParam)
}

// Authenticate verifies the opaque bearer credential presented at connect
// time and resolves it to a user id. Any failure is ErrUnauthenticated.
func (s *ChatAPI) Authenticate(rawToken string) (int64, error) {
	if rawToken == "" {
		return 0, ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims,
		func(t *jwt.Token) (any, error) { return s.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, ErrUnauthenticated
	}

	userId, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userId <= 0 {
		return 0, ErrUnauthenticated
	}

	return userId, nil
}
