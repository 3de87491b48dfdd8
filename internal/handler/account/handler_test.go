package account

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/snailgpt/backend/internal/logging"
	accountService "github.com/zhouzirui/snailgpt/backend/internal/service/account"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	svc, err := accountService.Open(filepath.Join(t.TempDir(), "users.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	r := chi.NewRouter()
	New(svc, logging.Discard()).RegisterRoutes(r)
	return r
}

func post(t *testing.T, r http.Handler, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var raw []byte
	switch v := body.(type) {
	case string:
		raw = []byte(v)
	default:
		var err error
		raw, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var decoded map[string]any
	json.Unmarshal(resp.Body.Bytes(), &decoded)
	return resp, decoded
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	r := setupRouter(t)

	resp, body := post(t, r, "/register", map[string]string{"email": "ada@example.com", "username": "ada", "password": "secret1"})
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Len(t, body["recoveryCode"], 6)

	resp, body = post(t, r, "/register", map[string]string{"email": "ada@example.com", "username": "ada2", "password": "secret1"})
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Contains(t, body["error"], "email already registered")
}

func TestRegisterValidation(t *testing.T) {
	r := setupRouter(t)

	resp, _ := post(t, r, "/register", "nope")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp, body := post(t, r, "/register", map[string]string{"email": "a@b.c", "username": "a", "password": "123"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "Password must be at least 6 characters.", body["error"])
}

func TestLoginFlow(t *testing.T) {
	r := setupRouter(t)
	post(t, r, "/register", map[string]string{"email": "ada@example.com", "username": "ada", "password": "secret1"})

	resp, body := post(t, r, "/login", map[string]string{"id": "ada", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "ada@example.com", body["email"])
	require.Contains(t, body, "avatarUrl")

	resp, _ = post(t, r, "/login", map[string]string{"id": "ada", "password": "bad-pass"})
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestUpdateFlow(t *testing.T) {
	r := setupRouter(t)
	_, created := post(t, r, "/register", map[string]string{"email": "ada@example.com", "username": "ada", "password": "secret1"})

	resp, body := post(t, r, "/user/update", `{"email":"ada@example.com","avatarUrl":"https://img/a.png"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "https://img/a.png", body["avatarUrl"])

	resp, body = post(t, r, "/user/update", `{"email":"ada@example.com","avatarUrl":null}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Nil(t, body["avatarUrl"])

	resp, _ = post(t, r, "/user/update", map[string]string{"email": "ada@example.com", "newPassword": "another1", "recoveryCode": "bad"})
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp, _ = post(t, r, "/user/update", map[string]any{"email": "ada@example.com", "newPassword": "another1", "recoveryCode": created["recoveryCode"]})
	require.Equal(t, http.StatusOK, resp.Code)

	resp, _ = post(t, r, "/user/update", map[string]string{"email": "ghost@example.com"})
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp, _ = post(t, r, "/user/update", `{"email":"ada@example.com","avatarUrl":42}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
