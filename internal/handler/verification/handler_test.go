package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountguard/internal/config"
	"accountguard/internal/model/account"
	"accountguard/internal/pkg/clock"
	"accountguard/internal/pkg/password"
	"accountguard/internal/repository/memory"
	"accountguard/internal/service/verification"
)

type captureNotifier struct {
	mu    sync.Mutex
	links []string
}

func (n *captureNotifier) Send(_ context.Context, _, _ string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, data["link"].(string))
	return nil
}

func (n *captureNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.links)
	u, err := url.Parse(n.links[len(n.links)-1])
	require.NoError(t, err)
	return u.Query().Get("token")
}

type fixture struct {
	router   *gin.Engine
	users    *memory.UserRepo
	notifier *captureNotifier
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	users := memory.NewUserRepo(store)
	notifier := &captureNotifier{}
	clk := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	svc := verification.NewService(store, users, memory.NewTokenRepo(store), memory.NewOutboxRepo(store), notifier, clk,
		&config.VerificationConfig{
			TokenTTL:  24 * time.Hour,
			Delivery:  verification.DeliveryInline,
			VerifyURL: "https://example.com/verify",
			ResetURL:  "https://example.com/reset",
		})
	h := NewHandler(svc)

	router := gin.New()
	router.POST("/verification/send", h.Send)
	router.POST("/verification/resend", h.Resend)
	router.GET("/verification/verify", h.Verify)
	router.POST("/password/forgot", h.ForgotPassword)
	router.POST("/password/reset", h.ResetPassword)

	hash, err := password.Hash("old-password")
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &account.User{
		ID:        "7d1b8f38-4a4c-4e1a-9c6e-2b0c8f0b6a11",
		Username:  "bob00000",
		Email:     "bob@example.com",
		Password:  hash,
		CreatedAt: clk.Now(),
		UpdatedAt: clk.Now(),
	}))

	return &fixture{router: router, users: users, notifier: notifier}
}

func (f *fixture) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestSendAndVerify(t *testing.T) {
	f := setup(t)

	w, resp := f.do(http.MethodPost, "/verification/send", map[string]string{"email": "Bob@Example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, resp["success"])

	token := f.notifier.lastToken(t)
	assert.Len(t, token, 64)

	w, resp = f.do(http.MethodGet, "/verification/verify?token="+token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := resp["data"].(map[string]any)
	assert.Equal(t, "7d1b8f38-4a4c-4e1a-9c6e-2b0c8f0b6a11", data["userId"])

	// token 只能兑换一次
	w, resp = f.do(http.MethodGet, "/verification/verify?token="+token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "invalid_or_expired", resp["code"])

	// 已验证后不再发送
	w, resp = f.do(http.MethodPost, "/verification/resend", map[string]string{"email": "bob@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_verified", resp["code"])
}

func TestVerify_MissingToken(t *testing.T) {
	f := setup(t)

	w, resp := f.do(http.MethodGet, "/verification/verify", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_token", resp["code"])
}

func TestSend_BadBody(t *testing.T) {
	f := setup(t)

	w, resp := f.do(http.MethodPost, "/verification/send", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request_body", resp["code"])

	w, resp = f.do(http.MethodPost, "/verification/send", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "user_not_found", resp["code"])
}

func TestPasswordReset(t *testing.T) {
	f := setup(t)

	w, _ := f.do(http.MethodPost, "/password/forgot", map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := f.notifier.lastToken(t)

	// 邮箱验证 token 接口不接受重置 token
	w, _ = f.do(http.MethodGet, "/verification/verify?token="+token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := f.do(http.MethodPost, "/password/reset", map[string]string{"token": token, "newPassword": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_password", resp["code"])

	w, _ = f.do(http.MethodPost, "/password/reset", map[string]string{"token": token, "newPassword": "new-password"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	user, err := f.users.FindByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.True(t, password.Verify("new-password", user.Password))

	w, _ = f.do(http.MethodPost, "/password/reset", map[string]string{"token": token, "newPassword": "another-password"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
