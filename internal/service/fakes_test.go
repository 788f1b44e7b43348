package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/repository"
	"github.com/sandeepkv93/device-session-guard/internal/security"
)

const (
	testSecret = "abcdefghijklmnopqrstuvwxyz123456"
	testPepper = "pepper-1234567890"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type inMemorySessionRepo struct {
	mu             sync.Mutex
	nextID         uint
	rows           map[uint]*domain.Session
	activeLookups  int
	failMarkFor    map[uint]bool
	failMarkLogout bool
	// afterList runs once ListUnexpiredByUserID has released the lock.
	afterList func()
}

func newInMemorySessionRepo() *inMemorySessionRepo {
	return &inMemorySessionRepo{nextID: 1, rows: map[uint]*domain.Session{}, failMarkFor: map[uint]bool{}}
}

func (r *inMemorySessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.AccessToken == s.AccessToken {
			return errors.New("duplicate access token")
		}
	}
	s.ID = r.nextID
	r.nextID++
	cp := *s
	r.rows[cp.ID] = &cp
	return nil
}

func (r *inMemorySessionRepo) find(match func(*domain.Session) bool) (*domain.Session, error) {
	for _, row := range r.rows {
		if match(row) {
			cp := *row
			return &cp, nil
		}
	}
	return nil, repository.ErrSessionNotFound
}

func (r *inMemorySessionRepo) FindByAccessToken(_ context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(s *domain.Session) bool { return s.AccessToken == token })
}

func (r *inMemorySessionRepo) FindActiveByAccessToken(_ context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeLookups++
	return r.find(func(s *domain.Session) bool { return s.AccessToken == token && s.Admissible() })
}

func (r *inMemorySessionRepo) FindLiveByAccessToken(_ context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(s *domain.Session) bool {
		return s.AccessToken == token && !s.IsLoggedOut && !s.IsDeleted
	})
}

func (r *inMemorySessionRepo) UpdateDevice(_ context.Context, id uint, token string, attrs repository.DeviceAttributes, lastActive time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	row.AccessToken = token
	row.DeviceToken = attrs.DeviceToken
	row.UserAgent = attrs.UserAgent
	row.IP = attrs.IP
	row.City = attrs.City
	row.Country = attrs.Country
	row.LastActive = lastActive
	row.Expired = false
	return nil
}

func (r *inMemorySessionRepo) ListUnexpiredByUserID(_ context.Context, userID uint) ([]domain.Session, error) {
	r.mu.Lock()
	var out []domain.Session
	for _, row := range r.rows {
		if row.UserID == userID && !row.Expired && !row.IsDeleted {
			out = append(out, *row)
		}
	}
	hook := r.afterList
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if hook != nil {
		hook()
	}
	return out, nil
}

func (r *inMemorySessionRepo) ListActiveByUserID(_ context.Context, userID uint, req repository.PageRequest) (repository.PageResult[domain.Session], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := repository.PageResult[domain.Session]{Page: req.Page, PageSize: req.PageSize}
	for _, row := range r.rows {
		if row.UserID == userID && row.Admissible() {
			res.Items = append(res.Items, *row)
		}
	}
	res.Total = int64(len(res.Items))
	return res, nil
}

func (r *inMemorySessionRepo) MarkExpired(_ context.Context, id uint, staleToken string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failMarkFor[id] {
		return false, errors.New("db unavailable")
	}
	row, ok := r.rows[id]
	if !ok || row.AccessToken != staleToken || row.Expired {
		return false, nil
	}
	row.Expired = true
	return true, nil
}

func (r *inMemorySessionRepo) MarkLoggedOut(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failMarkLogout {
		return false, errors.New("db unavailable")
	}
	for _, row := range r.rows {
		if row.AccessToken == token {
			row.IsLoggedOut = true
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemorySessionRepo) SoftDelete(_ context.Context, id, userID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID || row.IsDeleted {
		return false, nil
	}
	row.IsDeleted = true
	return true, nil
}

func (r *inMemorySessionRepo) get(id uint) domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

func (r *inMemorySessionRepo) setToken(id uint, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id].AccessToken = token
}

func (r *inMemorySessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type inMemoryRefreshRepo struct {
	mu     sync.Mutex
	nextID uint
	byUser map[uint]*domain.RefreshRecord
}

func newInMemoryRefreshRepo() *inMemoryRefreshRepo {
	return &inMemoryRefreshRepo{nextID: 1, byUser: map[uint]*domain.RefreshRecord{}}
}

func (r *inMemoryRefreshRepo) Upsert(_ context.Context, userID uint, hash string, createdAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byUser[userID]; ok {
		rec.Hash = hash
		rec.CreatedAt = createdAt
		return nil
	}
	r.byUser[userID] = &domain.RefreshRecord{ID: r.nextID, UserID: userID, Hash: hash, CreatedAt: createdAt}
	r.nextID++
	return nil
}

func (r *inMemoryRefreshRepo) FindByHash(_ context.Context, hash string) (*domain.RefreshRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.byUser {
		if rec.Hash == hash {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, repository.ErrRefreshRecordNotFound
}

func (r *inMemoryRefreshRepo) DeleteByID(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, rec := range r.byUser {
		if rec.ID == id {
			delete(r.byUser, uid)
		}
	}
	return nil
}

type inMemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*domain.User
	roles  map[uint]*domain.Role
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{nextID: 1, users: map[uint]*domain.User{}, roles: map[uint]*domain.Role{}}
}

func (r *inMemoryUserRepo) withRole(u *domain.User) *domain.User {
	cp := *u
	if role, ok := r.roles[cp.RoleID]; ok {
		rc := *role
		cp.Role = &rc
	}
	return &cp
}

func (r *inMemoryUserRepo) FindByID(_ context.Context, id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return r.withRole(u), nil
}

func (r *inMemoryUserRepo) FindActiveByID(_ context.Context, id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.Active() {
		return nil, repository.ErrUserNotFound
	}
	return r.withRole(u), nil
}

func (r *inMemoryUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if !u.IsDeleted && strings.EqualFold(u.Email, email) {
			return r.withRole(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = r.nextID
	r.nextID++
	if u.Status == "" {
		u.Status = domain.UserStatusActive
	}
	cp := *u
	cp.Role = nil
	r.users[u.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) UpdateRememberMe(_ context.Context, id uint, rememberMe bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.RememberMe = rememberMe
	return nil
}

func (r *inMemoryUserRepo) UpdatePassword(_ context.Context, id uint, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

// inMemoryRoleRepo shares role storage with the user repo so preloads resolve.
type inMemoryRoleRepo struct{ users *inMemoryUserRepo }

func (r inMemoryRoleRepo) FindByID(_ context.Context, id uint) (*domain.Role, error) {
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	role, ok := r.users.roles[id]
	if !ok {
		return nil, repository.ErrRoleNotFound
	}
	cp := *role
	return &cp, nil
}

func (r inMemoryRoleRepo) FindByName(_ context.Context, name string) (*domain.Role, error) {
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	for _, role := range r.users.roles {
		if role.Name == name && !role.IsDeleted {
			cp := *role
			return &cp, nil
		}
	}
	return nil, repository.ErrRoleNotFound
}

func (r inMemoryRoleRepo) Create(_ context.Context, role *domain.Role) error {
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	role.ID = uint(len(r.users.roles) + 1)
	cp := *role
	r.users.roles[role.ID] = &cp
	return nil
}

type recordingDispatcher struct {
	mu    sync.Mutex
	users []uint
}

func (d *recordingDispatcher) Dispatch(userID uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = append(d.users, userID)
}

type testHarness struct {
	clock      *testClock
	jwt        *security.JWTManager
	sessions   *inMemorySessionRepo
	vault      *inMemoryRefreshRepo
	users      *inMemoryUserRepo
	roles      inMemoryRoleRepo
	rejections *InMemoryNegativeLookupCacheStore
	dispatcher *recordingDispatcher
	sweeper    *SessionSweeper
	issuer     *TokenIssuer
	guard      *AuthGuard
	flow       *RefreshFlow
	core       *Core
}

const (
	testAccessTTL     = 15 * time.Minute
	testRefreshTTL    = 24 * time.Hour
	testRememberMeTTL = 30 * 24 * time.Hour
)

func newTestHarness(t *testing.T, createUnmatched bool) *testHarness {
	t.Helper()
	h := &testHarness{
		clock:      newTestClock(),
		sessions:   newInMemorySessionRepo(),
		vault:      newInMemoryRefreshRepo(),
		users:      newInMemoryUserRepo(),
		rejections: NewInMemoryNegativeLookupCacheStore(),
		dispatcher: &recordingDispatcher{},
	}
	h.roles = inMemoryRoleRepo{users: h.users}
	h.rejections.now = h.clock.Now
	h.jwt = security.NewJWTManager("test-issuer", "test-audience", testSecret).WithClock(h.clock.Now)
	h.sweeper = NewSessionSweeper(h.jwt, h.sessions, time.Second)
	h.issuer = NewTokenIssuer(h.jwt, h.sessions, h.vault, h.dispatcher, h.rejections, nil, TokenIssuerConfig{
		AccessTTL:              testAccessTTL,
		Pepper:                 testPepper,
		CreateUnmatchedSession: createUnmatched,
	})
	h.issuer.now = h.clock.Now
	h.guard = NewAuthGuard(h.jwt, h.sessions, h.users, h.rejections, AuthGuardConfig{
		LogoutRoute:      "logout-user",
		NegativeCacheTTL: time.Minute,
	})
	h.flow = NewRefreshFlow(h.sessions, h.vault, h.users, h.issuer, RefreshFlowConfig{
		Pepper:        testPepper,
		RefreshTTL:    testRefreshTTL,
		RememberMeTTL: testRememberMeTTL,
	})
	h.flow.now = h.clock.Now
	h.core = NewCore(h.issuer, h.guard, h.flow, h.sweeper, h.sessions)
	return h
}

func (h *testHarness) seedUser(t *testing.T, email string, rememberMe bool) *domain.User {
	t.Helper()
	ctx := context.Background()
	role, err := h.roles.FindByName(ctx, domain.DefaultUserRole)
	if err != nil {
		role = &domain.Role{Name: domain.DefaultUserRole, DisplayName: "User"}
		if err := h.roles.Create(ctx, role); err != nil {
			t.Fatalf("seed role: %v", err)
		}
	}
	u := &domain.User{Email: email, FullName: "Test User", RoleID: role.ID, RememberMe: rememberMe}
	if err := h.users.Create(ctx, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	got, err := h.users.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return got
}
