package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/device-session-guard/internal/config"
	"github.com/sandeepkv93/device-session-guard/internal/database"
	"github.com/sandeepkv93/device-session-guard/internal/di"
	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/security"
)

const localPassword = "Valid#Pass1234"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type loginData struct {
	User struct {
		ID    uint   `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Tokens tokenPair `json:"tokens"`
}

type testServer struct {
	baseURL string
	client  *http.Client
	cfg     *config.Config
}

type serverOptions struct {
	cfgOverride func(cfg *config.Config)
	userInfo    http.HandlerFunc
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithOptions(t, serverOptions{})
}

func newTestServerWithOptions(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	userInfo := opts.userInfo
	if userInfo == nil {
		userInfo = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusUnauthorized) }
	}
	google := httptest.NewServer(userInfo)
	t.Cleanup(google.Close)

	cfg := &config.Config{
		Env:                         "test",
		HTTPAddr:                    "127.0.0.1:0",
		LogLevel:                    "info",
		DBDriver:                    "sqlite",
		DatabaseURL:                 filepath.Join(t.TempDir(), "integration.db"),
		JWTSecret:                   "abcdefghijklmnopqrstuvwxyz123456",
		JWTIssuer:                   "device-session-guard",
		JWTAudience:                 "device-session-guard-api",
		JWTAccessTTL:                15 * time.Minute,
		RefreshTTL:                  24 * time.Hour,
		RefreshRememberMeTTL:        720 * time.Hour,
		RefreshHashPepper:           "pepper-1234567890",
		SweepTimeout:                5 * time.Second,
		AuthCreateUnmatchedSessions: true,
		AuthLogoutRoute:             "logout-user",
		RefreshRateLimitPerMinute:   10,
		NegativeCacheTTL:            time.Minute,
		GoogleUserInfoURL:           google.URL,
		ShutdownTimeout:             5 * time.Second,
	}
	if opts.cfgOverride != nil {
		opts.cfgOverride(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := database.SeedDefaultRole(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	a, cleanup, err := di.InitializeApp(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	srv := httptest.NewServer(a.Server.Handler)
	t.Cleanup(func() {
		srv.Close()
		waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Background.Wait(waitCtx)
		cleanup()
	})
	return &testServer{baseURL: srv.URL, client: srv.Client(), cfg: cfg}
}

// seedLocalUser inserts an active password user with the default role.
func (s *testServer) seedLocalUser(t *testing.T, email string) uint {
	t.Helper()
	db, err := database.Open(s.cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	var role domain.Role
	if err := db.Where("name = ?", domain.DefaultUserRole).First(&role).Error; err != nil {
		t.Fatalf("find role: %v", err)
	}
	hash, err := security.HashPassword(localPassword, 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &domain.User{Email: email, FullName: "Local User", PasswordHash: hash, RoleID: role.ID, Status: domain.UserStatusActive}
	if err := db.Omit("Role").Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func (s *testServer) do(t *testing.T, method, path string, body any, bearer string) (*http.Response, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.baseURL+path, r)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "integration-test/1.0")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope for %s: %v", path, err)
	}
	return resp, env
}

func (s *testServer) login(t *testing.T, email string, extra map[string]any) loginData {
	t.Helper()
	body := map[string]any{"email": email, "password": localPassword}
	for k, v := range extra {
		body[k] = v
	}
	resp, env := s.do(t, http.MethodPost, "/api/v1/auth/login-user", body, "")
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login failed: status=%d env=%+v", resp.StatusCode, env.Error)
	}
	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return data
}

func captureAuditEvents(t *testing.T, fn func()) []map[string]any {
	t.Helper()
	var logBuf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	defer slog.SetDefault(previous)

	fn()
	var events []map[string]any
	for _, line := range strings.Split(logBuf.String(), "\n") {
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if msg, _ := event["msg"].(string); msg == "audit" {
			events = append(events, event)
		}
	}
	return events
}

func requireAuditEvent(t *testing.T, events []map[string]any, name, outcome string) {
	t.Helper()
	for _, e := range events {
		if e["event"] == name && e["outcome"] == outcome {
			return
		}
	}
	t.Fatalf("audit event %s/%s not found in %+v", name, outcome, events)
}
