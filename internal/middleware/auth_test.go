package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(m *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	echo := func(c *gin.Context) {
		id, _ := c.Get("user_id")
		s, _ := id.(string)
		c.String(http.StatusOK, s)
	}
	r.GET("/private", m.RequireAuth(), echo)
	r.GET("/public", m.OptionalAuth(), echo)
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddleware("secret")
	r := newRouter(m)
	userID := uuid.New()

	token, err := m.SignToken(userID, time.Hour)
	require.NoError(t, err)

	w := get(r, "/private", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "/private", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/private", "garbage").Code)

	other, err := NewAuthMiddleware("other").SignToken(userID, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/private", other).Code)

	expired, err := m.SignToken(userID, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/private", expired).Code)
}

func TestOptionalAuth(t *testing.T) {
	m := NewAuthMiddleware("secret")
	r := newRouter(m)
	userID := uuid.New()

	w := get(r, "/public", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	token, err := m.SignToken(userID, time.Hour)
	require.NoError(t, err)
	w = get(r, "/public", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "/public", "garbage").Code)
}
