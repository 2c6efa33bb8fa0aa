package users

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	users map[int64]User
}

func (m *mockRepo) ListUsers(context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockRepo) GetUser(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) UserExists(_ context.Context, id int64) (bool, error) {
	_, ok := m.users[id]
	return ok, nil
}

func newTestRouter(repo *mockRepo) http.Handler {
	h := NewHandler(slog.Default(), NewService(repo))
	r := chi.NewRouter()
	r.Route("/users", h.MountRoutes)
	return r
}

func TestGetUserEndpoint(t *testing.T) {
	repo := &mockRepo{users: map[int64]User{
		7: {ID: 7, Email: "medico@clinicore.local", Name: "Dr. Luis Herrera", IsActive: true, CreatedAt: time.Now()},
	}}
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.ID)
	assert.Equal(t, "medico@clinicore.local", resp.Email)
}

func TestGetUserEndpointNotFound(t *testing.T) {
	router := newTestRouter(&mockRepo{users: map[int64]User{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
