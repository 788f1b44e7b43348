package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/http/middleware"
	"github.com/sandeepkv93/device-session-guard/internal/service"
)

type fakeAuthService struct {
	social    service.SocialSignInRequest
	login     service.LoginRequest
	refresh   service.RefreshRequest
	loggedOut []string
	err       error
}

func (f *fakeAuthService) SocialSignIn(_ context.Context, req service.SocialSignInRequest) (*service.LoginResult, error) {
	f.social = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.LoginResult{User: &domain.User{ID: 1}, Tokens: &service.TokenPair{AccessToken: "a", RefreshToken: "r"}}, nil
}

func (f *fakeAuthService) LoginUser(_ context.Context, req service.LoginRequest) (*service.LoginResult, error) {
	f.login = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.LoginResult{User: &domain.User{ID: 2}, Tokens: &service.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}, nil
}

func (f *fakeAuthService) Refresh(_ context.Context, req service.RefreshRequest) (*service.TokenPair, error) {
	f.refresh = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.TokenPair{AccessToken: "a3", RefreshToken: "r3", ExpiresIn: 900}, nil
}

func (f *fakeAuthService) Logout(_ context.Context, token string) error {
	f.loggedOut = append(f.loggedOut, token)
	return f.err
}

type fakeUserService struct {
	user           *domain.User
	page, size     int
	oldPw, newPw   string
	err            error
	sessionsResult *service.SessionPage
	revokedUser    uint
	revokedSession uint
}

func (f *fakeUserService) Profile(context.Context, uint) (*domain.User, error) {
	return f.user, f.err
}

func (f *fakeUserService) ListSessions(_ context.Context, _ uint, page, pageSize int) (*service.SessionPage, error) {
	f.page, f.size = page, pageSize
	return f.sessionsResult, f.err
}

func (f *fakeUserService) RevokeSession(_ context.Context, userID, sessionID uint) error {
	f.revokedUser, f.revokedSession = userID, sessionID
	return f.err
}

func (f *fakeUserService) ChangePassword(_ context.Context, _ uint, oldPw, newPw string) error {
	f.oldPw, f.newPw = oldPw, newPw
	return f.err
}

type principalVerifier struct{ p *service.Principal }

func (v principalVerifier) VerifyRequest(context.Context, service.AuthRequest) (*service.Principal, error) {
	return v.p, nil
}

func do(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.9:5555"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSocialSignInBuildsDeviceContext(t *testing.T) {
	svc := &fakeAuthService{}
	h := http.HandlerFunc(NewAuthHandler(svc).SocialSignIn)

	rr := do(h, http.MethodPost, "/api/v1/auth/social-signin",
		`{"oauthToken":"tok","provider":"google","deviceToken":"fcm-1","previousAccessToken":"old"}`,
		map[string]string{"User-Agent": "ua/1.0"})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := service.DeviceContext{CorrelationToken: "old", DeviceToken: "fcm-1", UserAgent: "ua/1.0", IP: "203.0.113.9"}
	if svc.social.Device != want {
		t.Fatalf("unexpected device context %+v", svc.social.Device)
	}
	if svc.social.OAuthToken != "tok" || svc.social.Provider != "google" {
		t.Fatalf("unexpected request %+v", svc.social)
	}
}

func TestLoginUserRejectsMalformedBody(t *testing.T) {
	svc := &fakeAuthService{}
	h := http.HandlerFunc(NewAuthHandler(svc).LoginUser)
	tests := []string{`{"email":`, `{"email":"a@b.c","unknown":1}`}
	for _, body := range tests {
		if rr := do(h, http.MethodPost, "/api/v1/auth/login-user", body, nil); rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestLoginUserPassesRememberMe(t *testing.T) {
	svc := &fakeAuthService{}
	h := http.HandlerFunc(NewAuthHandler(svc).LoginUser)
	rr := do(h, http.MethodPost, "/api/v1/auth/login-user", `{"email":"a@b.c","password":"pw","rememberMe":true}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.login.RememberMe == nil || !*svc.login.RememberMe {
		t.Fatalf("expected rememberMe=true, got %+v", svc.login.RememberMe)
	}

	svc2 := &fakeAuthService{}
	do(http.HandlerFunc(NewAuthHandler(svc2).LoginUser), http.MethodPost, "/", `{"email":"a@b.c","password":"pw"}`, nil)
	if svc2.login.RememberMe != nil {
		t.Fatal("expected absent rememberMe to stay nil")
	}
}

func TestRefreshMapsAuthenticationErrors(t *testing.T) {
	svc := &fakeAuthService{err: service.ErrRefreshTokenExpired}
	h := http.HandlerFunc(NewAuthHandler(svc).Refresh)
	rr := do(h, http.MethodPost, "/api/v1/auth/refresh-token", `{"accessToken":"a","refreshToken":"r"}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "refresh token expired") {
		t.Fatalf("expected message in body, got %s", rr.Body.String())
	}
	if svc.refresh.AccessToken != "a" || svc.refresh.RefreshToken != "r" {
		t.Fatalf("unexpected refresh request %+v", svc.refresh)
	}
}

func TestLogoutUsesPrincipalToken(t *testing.T) {
	svc := &fakeAuthService{}
	guard := middleware.AuthMiddleware(principalVerifier{p: &service.Principal{AccessToken: "held", LogoutBypass: true}})
	h := guard(http.HandlerFunc(NewAuthHandler(svc).Logout))

	rr := do(h, http.MethodGet, "/api/v1/auth/logout-user", "", map[string]string{"Authorization": "Bearer held"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(svc.loggedOut) != 1 || svc.loggedOut[0] != "held" {
		t.Fatalf("unexpected logout calls %v", svc.loggedOut)
	}
}

func TestProfileDetails(t *testing.T) {
	users := &fakeUserService{user: &domain.User{
		ID:     5,
		Email:  "p@example.com",
		RoleID: 3,
		Role:   &domain.Role{ID: 3, Name: "user", DisplayName: "User"},
	}}
	guard := middleware.AuthMiddleware(principalVerifier{p: &service.Principal{UserID: 5}})
	h := guard(http.HandlerFunc(NewUserHandler(users).ProfileDetails))

	rr := do(h, http.MethodGet, "/api/v1/user/profile-details", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Data profileResponse `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Email != "p@example.com" || body.Data.RoleDisplayName != "User" {
		t.Fatalf("unexpected profile %+v", body.Data)
	}
}

func TestSessionsPaging(t *testing.T) {
	users := &fakeUserService{sessionsResult: &service.SessionPage{Page: 2, PageSize: 5}}
	guard := middleware.AuthMiddleware(principalVerifier{p: &service.Principal{UserID: 5}})
	h := guard(http.HandlerFunc(NewUserHandler(users).Sessions))

	if rr := do(h, http.MethodGet, "/api/v1/user/sessions?page=2&page_size=5", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if users.page != 2 || users.size != 5 {
		t.Fatalf("unexpected paging %d/%d", users.page, users.size)
	}
	if rr := do(h, http.MethodGet, "/api/v1/user/sessions?page=x", "", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad page, got %d", rr.Code)
	}
}

func TestChangePassword(t *testing.T) {
	users := &fakeUserService{}
	guard := middleware.AuthMiddleware(principalVerifier{p: &service.Principal{UserID: 5}})
	h := guard(http.HandlerFunc(NewUserHandler(users).ChangePassword))

	rr := do(h, http.MethodPost, "/api/v1/user/change-password", `{"oldPassword":"old","newPassword":"new"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if users.oldPw != "old" || users.newPw != "new" {
		t.Fatalf("unexpected passwords %q/%q", users.oldPw, users.newPw)
	}

	users.err = &service.Error{Kind: service.KindValidation, Message: "old password mismatch"}
	rr = do(h, http.MethodPost, "/api/v1/user/change-password", `{"oldPassword":"x","newPassword":"y"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRevokeSession(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
		wantID     uint
	}{
		{name: "revoked", target: "/sessions/42", wantStatus: http.StatusOK, wantID: 42},
		{name: "not owned", target: "/sessions/43", err: service.ErrSessionNotFound, wantStatus: http.StatusNotFound, wantID: 43},
		{name: "non numeric", target: "/sessions/abc", wantStatus: http.StatusBadRequest},
		{name: "zero", target: "/sessions/0", wantStatus: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &fakeUserService{err: tc.err}
			r := chi.NewRouter()
			r.Use(middleware.AuthMiddleware(principalVerifier{p: &service.Principal{UserID: 5}}))
			r.Delete("/sessions/{session_id}", NewUserHandler(users).RevokeSession)

			rr := do(r, http.MethodDelete, tc.target, "", nil)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
			if users.revokedSession != tc.wantID {
				t.Fatalf("expected session %d, got %d", tc.wantID, users.revokedSession)
			}
			if tc.wantID != 0 && users.revokedUser != 5 {
				t.Fatalf("expected principal user 5, got %d", users.revokedUser)
			}
		})
	}
}

func TestLogoutBypassPrincipalRejectedOutsideLogout(t *testing.T) {
	bypass := principalVerifier{p: &service.Principal{UserID: 5, AccessToken: "stale", LogoutBypass: true}}
	users := &fakeUserService{user: &domain.User{ID: 5}, sessionsResult: &service.SessionPage{}}
	uh := NewUserHandler(users)

	r := chi.NewRouter()
	r.Use(middleware.AuthMiddleware(bypass))
	r.Delete("/api/v1/user/sessions/{session_id}", uh.RevokeSession)
	r.Get("/api/v1/user/sessions", uh.Sessions)
	r.Get("/api/v1/user/profile-details", uh.ProfileDetails)
	r.Post("/api/v1/user/change-password", uh.ChangePassword)

	tests := []struct {
		method, target, body string
	}{
		{method: http.MethodDelete, target: "/api/v1/user/sessions/logout-user"},
		{method: http.MethodDelete, target: "/api/v1/user/sessions/42"},
		{method: http.MethodGet, target: "/api/v1/user/sessions"},
		{method: http.MethodGet, target: "/api/v1/user/profile-details"},
		{method: http.MethodPost, target: "/api/v1/user/change-password", body: `{"oldPassword":"a","newPassword":"b"}`},
	}
	for _, tc := range tests {
		rr := do(r, tc.method, tc.target, tc.body, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.target, rr.Code)
		}
	}
	if users.revokedSession != 0 || users.revokedUser != 0 || users.newPw != "" {
		t.Fatalf("user service acted on bypass principal: %+v", users)
	}
}
