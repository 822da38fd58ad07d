package api

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/teamup-app/chat-service/internal/database"
)

func Test_authMiddleware(t *testing.T) {
	t.Run("valid token reaches the handler", func(t *testing.T) {
		s := newTestAPI(t, &database.MockChatRepository{})

		var gotUserId int64
		handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			gotUserId, _ = UserId(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		token := signToken(t, testSigningKey, jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})

		r := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(42), gotUserId, "expected the user id to be placed on the request context")
		assert.Contains(t, w.Header().Get("Cache-Control"), "no-store", "expected authenticated responses to be uncacheable")
	})

	t.Run("missing token", func(t *testing.T) {
		s := newTestAPI(t, &database.MockChatRepository{})

		called := false
		handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called, "expected the handler not to run")
	})

	t.Run("garbage token", func(t *testing.T) {
		s := newTestAPI(t, &database.MockChatRepository{})

		handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler must not run")
		})

		r := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		r.Header.Set("Authorization", "Bearer not.a.jwt")
		w := httptest.NewRecorder()

		handler(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func Test_adminMiddleware(t *testing.T) {
	t.Run("admin passes through", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		s := newTestAPI(t, db)
		db.On("GetUserById", int64(1)).Return(database.User{Id: 1, Username: "root", IsAdmin: true}, nil)

		handler := s.adminMiddleware(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		r := httptest.NewRequest(http.MethodGet, "/api/admin/messages", nil)
		r = r.WithContext(WithUserId(r.Context(), 1))
		w := httptest.NewRecorder()

		handler(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		s := newTestAPI(t, db)
		db.On("GetUserById", int64(2)).Return(database.User{Id: 2, Username: "alice"}, nil)

		handler := s.adminMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler must not run")
		})

		r := httptest.NewRequest(http.MethodGet, "/api/admin/messages", nil)
		r = r.WithContext(WithUserId(r.Context(), 2))
		w := httptest.NewRecorder()

		handler(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		s := newTestAPI(t, db)
		db.On("GetUserById", int64(3)).Return(database.User{}, sql.ErrNoRows)

		handler := s.adminMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler must not run")
		})

		r := httptest.NewRequest(http.MethodGet, "/api/admin/messages", nil)
		r = r.WithContext(WithUserId(r.Context(), 3))
		w := httptest.NewRecorder()

		handler(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no user id on the context", func(t *testing.T) {
		s := newTestAPI(t, &database.MockChatRepository{})

		handler := s.adminMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler must not run")
		})

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/api/admin/messages", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func Test_errorHandler(t *testing.T) {
	s := newTestAPI(t, &database.MockChatRepository{})

	handler := s.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
}
