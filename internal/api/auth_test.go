package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamup-app/chat-service/internal/config"
	"github.com/teamup-app/chat-service/internal/database"
	"github.com/teamup-app/chat-service/internal/stats"
	"github.com/teamup-app/chat-service/internal/testutil"
)

const testRoomId = "a7cf4b9e-0000-4000-8000-000000000001"

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func newTestAPI(t *testing.T, db database.ChatRepository) *ChatAPI {
	t.Helper()

	return &ChatAPI{
		log: testutil.TestLogger(t),
		db:  db,
		cfg: &config.Config{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		stats:          &stats.MockStatsUpdater{},
		signingKey:     testSigningKey,
		allowedOrigins: []string{"https://app.example.com"},
	}
}

func signToken(t *testing.T, key []byte, claims jwt.RegisteredClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)

	return token
}

func TestAuthenticate(t *testing.T) {
	s := newTestAPI(t, &database.MockChatRepository{})

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, testSigningKey, jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})

		userId, err := s.Authenticate(token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), userId)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := s.Authenticate("")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, testSigningKey, jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		})

		_, err := s.Authenticate(token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("token with no expiry", func(t *testing.T) {
		token := signToken(t, testSigningKey, jwt.RegisteredClaims{Subject: "42"})

		_, err := s.Authenticate(token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		token := signToken(t, []byte("not-the-real-signing-key-at-all!"), jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})

		_, err := s.Authenticate(token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("wrong signing method", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(testSigningKey)
		require.NoError(t, err)

		_, err = s.Authenticate(token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("non-numeric subject", func(t *testing.T) {
		token := signToken(t, testSigningKey, jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})

		_, err := s.Authenticate(token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("non-positive subject", func(t *testing.T) {
		token := signToken(t, testSigningKey, jwt.RegisteredClaims{
			Subject:   "0",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})

		_, err := s.Authenticate(token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func Test_extractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		query    string
		expected string
	}{
		{
			name:     "authorization header",
			header:   "Bearer abc123",
			expected: "abc123",
		},
		{
			name:     "malformed authorization header",
			header:   "Basic abc123",
			expected: "",
		},
		{
			name:     "query parameter fallback",
			query:    "abc123",
			expected: "abc123",
		},
		{
			name:     "header wins over query parameter",
			header:   "Bearer fromheader",
			query:    "fromquery",
			expected: "fromheader",
		},
		{
			name:     "no credential",
			expected: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			if tc.query != "" {
				q := r.URL.Query()
				q.Set(tokenQueryParam, tc.query)
				r.URL.RawQuery = q.Encode()
			}

			assert.Equal(t, tc.expected, extractBearerToken(r))
		})
	}
}

func TestUserIdContext(t *testing.T) {
	ctx := WithUserId(context.Background(), 42)

	userId, ok := UserId(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(42), userId)

	_, ok = UserId(context.Background())
	assert.False(t, ok)
}
