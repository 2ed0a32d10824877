package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/payportal/authgw/internal/auth"
	"github.com/payportal/authgw/internal/password"
	"github.com/payportal/authgw/internal/ratelimit"
	"github.com/payportal/authgw/internal/store"
	"github.com/payportal/authgw/internal/token"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()

	tokens, err := token.NewManager([]byte("test-signing-key"))
	require.NoError(t, err)

	service := auth.NewService(
		store.NewMemoryStore(),
		password.NewHasher(password.WithCost(bcrypt.MinCost)),
		tokens,
	)

	return New(DefaultConfig(), service, opts...)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func validRegistration() map[string]string {
	return map[string]string{
		"name":          "Alice Smith",
		"idNumber":      "8001015009087",
		"accountNumber": "1234567890",
		"email":         "alice@example.com",
		"password":      "Str0ng@Pass",
	}
}

func TestRegister_Success(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/auth/register", validRegistration(), nil)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Message string    `json:"message"`
		Token   string    `json:"token"`
		User    auth.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "User registered successfully", resp.Message)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.User.ID)
	assert.Equal(t, "Alice Smith", resp.User.Name)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "1234567890", resp.User.AccountNumber)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegister_ValidationFailure(t *testing.T) {
	srv := newTestServer(t)

	body := validRegistration()
	body["password"] = "weak"
	w := doJSON(t, srv, http.MethodPost, "/api/auth/register", body, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Password must be at least 8 characters")
}

func TestRegister_Duplicate(t *testing.T) {
	srv := newTestServer(t)

	first := doJSON(t, srv, http.MethodPost, "/api/auth/register", validRegistration(), nil)
	require.Equal(t, http.StatusCreated, first.Code)

	// Same email, different ID and account numbers. The response must not
	// reveal which key collided.
	body := validRegistration()
	body["idNumber"] = "9001015009087"
	body["accountNumber"] = "9876543210"
	second := doJSON(t, srv, http.MethodPost, "/api/auth/register", body, nil)

	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.JSONEq(t,
		`{"error":"User with this email, ID number, or account number already exists"}`,
		second.Body.String())
}

func TestRegister_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, w.Body.String())
}

func TestRegister_OversizedBody(t *testing.T) {
	srv := newTestServer(t)

	body := validRegistration()
	body["name"] = strings.Repeat("A", 11*1024)
	w := doJSON(t, srv, http.MethodPost, "/api/auth/register", body, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestLogin_Success(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated,
		doJSON(t, srv, http.MethodPost, "/api/auth/register", validRegistration(), nil).Code)

	w := doJSON(t, srv, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "Str0ng@Pass",
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Message string    `json:"message"`
		Token   string    `json:"token"`
		User    auth.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Login successful", resp.Message)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice@example.com", resp.User.Email)
}

func TestLogin_UniformFailureMessage(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated,
		doJSON(t, srv, http.MethodPost, "/api/auth/register", validRegistration(), nil).Code)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", "Str0ng@Pass"},
		{"wrong password", "alice@example.com", "Wr0ng@Pass1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, srv, http.MethodPost, "/api/auth/login", map[string]string{
				"email":    tt.email,
				"password": tt.password,
			}, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"Invalid credentials"}`, w.Body.String())
		})
	}
}

func TestMe_Success(t *testing.T) {
	srv := newTestServer(t)

	reg := doJSON(t, srv, http.MethodPost, "/api/auth/register", validRegistration(), nil)
	require.Equal(t, http.StatusCreated, reg.Code)

	var regResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(reg.Body.Bytes(), &regResp))

	w := doJSON(t, srv, http.MethodGet, "/api/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + regResp.Token,
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User auth.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "Alice Smith", resp.User.Name)
}

func TestMe_NoToken(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/auth/me", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"No token provided"}`, w.Body.String())
}

func TestMe_InvalidToken(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/auth/me", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid token"}`, w.Body.String())
}

func TestMe_ExpiredToken(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	tokens, err := token.NewManager([]byte("test-signing-key"),
		token.WithClock(func() time.Time { return past }),
	)
	require.NoError(t, err)

	signed, err := tokens.Issue("some-principal")
	require.NoError(t, err)

	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/api/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + signed,
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid token"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/health", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status    string `json:"status"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Status)
	assert.Equal(t, "Payment Portal API is running", resp.Message)
	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/payments", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Route not found"}`, w.Body.String())
}

func TestRateLimitAppliesToAuthRoutes(t *testing.T) {
	limiter := ratelimit.NewFixedWindowLimiter(3, time.Minute)
	srv := newTestServer(t, WithLimiter(limiter))

	for i := 0; i < 3; i++ {
		w := doJSON(t, srv, http.MethodGet, "/api/health", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, srv, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t,
		`{"error":"Too many requests from this IP, please try again later."}`,
		w.Body.String())
}

func TestRateLimitIgnoresForwardingHeaderByDefault(t *testing.T) {
	limiter := ratelimit.NewFixedWindowLimiter(2, time.Minute)
	srv := newTestServer(t, WithLimiter(limiter))

	// Without configured trusted proxies the limiter keys on the peer
	// address, so rotating the header must not reset the budget.
	allowed := 0
	for i := 0; i < 10; i++ {
		header := map[string]string{"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i)}
		w := doJSON(t, srv, http.MethodGet, "/api/health", nil, header)
		if w.Code == http.StatusOK {
			allowed++
		} else {
			require.Equal(t, http.StatusTooManyRequests, w.Code)
		}
	}
	assert.Equal(t, 2, allowed)
}

func TestRateLimitHonorsTrustedProxies(t *testing.T) {
	limiter := ratelimit.NewFixedWindowLimiter(1, time.Minute)
	config := DefaultConfig()
	config.TrustedProxies = []string{"192.0.2.0/24"}

	tokens, err := token.NewManager([]byte("test-signing-key"))
	require.NoError(t, err)
	service := auth.NewService(
		store.NewMemoryStore(),
		password.NewHasher(password.WithCost(bcrypt.MinCost)),
		tokens,
	)
	srv := New(config, service, WithLimiter(limiter))

	// httptest requests arrive from 192.0.2.1, inside the trusted range,
	// so each forwarded client gets its own budget.
	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		w := doJSON(t, srv, http.MethodGet, "/api/health", nil,
			map[string]string{"X-Forwarded-For": client})
		require.Equal(t, http.StatusOK, w.Code, "client %s should have its own budget", client)
	}

	w := doJSON(t, srv, http.MethodGet, "/api/health", nil,
		map[string]string{"X-Forwarded-For": "198.51.100.1"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestSecurityHeadersPresent(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/health", nil, nil)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestFullSessionFlow(t *testing.T) {
	srv := newTestServer(t)

	// Register, log in with the same credentials, then fetch the profile
	// with the login token.
	reg := doJSON(t, srv, http.MethodPost, "/api/auth/register", validRegistration(), nil)
	require.Equal(t, http.StatusCreated, reg.Code)

	login := doJSON(t, srv, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "Str0ng@Pass",
	}, nil)
	require.Equal(t, http.StatusOK, login.Code)

	var loginResp struct {
		Token string `json:"token"`
		User  auth.User
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &loginResp))

	me := doJSON(t, srv, http.MethodGet, "/api/auth/me", nil, map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", loginResp.Token),
	})
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), "alice@example.com")
}
