package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"

	"github.com/webstack/webstack/internal/common"
	"github.com/webstack/webstack/internal/dbx"
	"github.com/webstack/webstack/internal/logging"
	"github.com/webstack/webstack/internal/server/auth"
	"github.com/webstack/webstack/internal/server/cache"
	"github.com/webstack/webstack/internal/server/config"
	"github.com/webstack/webstack/internal/server/models"
	"github.com/webstack/webstack/internal/server/ratelimit"
	apikeysrepo "github.com/webstack/webstack/internal/server/repositories/apikeys"
	filesrepo "github.com/webstack/webstack/internal/server/repositories/files"
	refreshtokensrepo "github.com/webstack/webstack/internal/server/repositories/refreshtokens"
	usersrepo "github.com/webstack/webstack/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "k"
	return cfg
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.New(mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("cache.New error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return ratelimit.New(c, testLogger())
}

func newUserService(t *testing.T, db *sql.DB, rm *fakeRepoManager, cfg *config.Config) *UserService {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	codec, err := auth.NewTokenCodec([]byte(cfg.SecretKey), cfg.SigningAlgorithm)
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}
	return NewUserService(db, rm, codec, testLimiter(t), testLogger(), cfg)
}

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	getOut *models.User
	getErr error

	byIDOut *models.User
	byIDErr error

	failedAttempts   int
	failedErr        error
	failedLoginCalls int

	recordLoginErr   error
	recordLoginCalls int
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byIDOut, nil
}

func (f *fakeUsersRepo) GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeUsersRepo) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	return nil, nil
}
func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, id int64, fullName string) error {
	return nil
}
func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return nil
}
func (f *fakeUsersRepo) SetActive(ctx context.Context, id int64, active bool) error { return nil }

func (f *fakeUsersRepo) RecordLogin(ctx context.Context, id int64) error {
	f.recordLoginCalls++
	return f.recordLoginErr
}

func (f *fakeUsersRepo) RecordFailedLogin(ctx context.Context, id int64, maxAttempts int, lockout time.Duration) (int, error) {
	f.failedLoginCalls++
	return f.failedAttempts, f.failedErr
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id int64) error { return nil }

type fakeRefreshRepo struct {
	createErr   error
	createCalls int

	getOut *models.RefreshToken
	getErr error

	revokeErr   error
	revokeCalls int
	revokedJTI  string
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID int64, jti string, expiresAt time.Time) error {
	f.createCalls++
	return f.createErr
}

func (f *fakeRefreshRepo) GetByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := *f.getOut
	out.JTI = jti
	return &out, nil
}

func (f *fakeRefreshRepo) Revoke(ctx context.Context, jti string) error {
	f.revokeCalls++
	f.revokedJTI = jti
	return f.revokeErr
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
	a *fakeAPIKeysRepo
	f *fakeFilesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return m.r
}
func (m *fakeRepoManager) APIKeys(db dbx.DBTX) apikeysrepo.Repository { return m.a }
func (m *fakeRepoManager) Files(db dbx.DBTX) filesrepo.Repository     { return m.f }

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	return h
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{getErr: common.ErrorNotFound}}
	s := newUserService(t, db, rm, nil)

	u, err := s.Register(context.Background(), "a@example.com", "alice", "password1", "Alice")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if u.Email != "a@example.com" || u.Username != "alice" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.Role != models.RoleUser {
		t.Errorf("expected default role %q, got %q", models.RoleUser, u.Role)
	}
	if u.PasswordHash == "" || u.PasswordHash == "password1" {
		t.Errorf("password must be stored hashed")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{getOut: &models.User{ID: 1}}}
	s := newUserService(t, db, rm, nil)

	_, err := s.Register(context.Background(), "a@example.com", "alice", "password1", "")
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRegister_Disabled(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	cfg := testConfig()
	cfg.EnableRegistration = false

	rm := &fakeRepoManager{u: &fakeUsersRepo{getErr: common.ErrorNotFound}}
	s := newUserService(t, db, rm, cfg)

	_, err := s.Register(context.Background(), "a@example.com", "alice", "password1", "")
	if !errors.Is(err, common.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestRegister_PasswordPolicy(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	tests := []struct {
		name     string
		password string
		adjust   func(*config.Config)
	}{
		{name: "too short", password: "pw1"},
		{name: "missing number", password: "longenough"},
		{name: "missing upper", password: "password1", adjust: func(c *config.Config) { c.PasswordRequireUpper = true }},
		{name: "missing symbol", password: "Password1", adjust: func(c *config.Config) { c.PasswordRequireSymbols = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.adjust != nil {
				tt.adjust(cfg)
			}
			rm := &fakeRepoManager{u: &fakeUsersRepo{getErr: common.ErrorNotFound}}
			s := newUserService(t, db, rm, cfg)

			_, err := s.Register(context.Background(), "a@example.com", "alice", tt.password, "")
			if !errors.Is(err, common.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	u := &fakeUsersRepo{getOut: &models.User{
		ID:           1,
		Email:        "a@example.com",
		PasswordHash: mustHash(t, "password1"),
		Role:         models.RoleUser,
		IsActive:     true,
	}}
	rm := &fakeRepoManager{u: u, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	pair, err := s.Login(context.Background(), "a@example.com", "password1", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a populated token pair")
	}
	if pair.ExpiresIn != int64((30 * time.Minute).Seconds()) {
		t.Errorf("unexpected ExpiresIn: %d", pair.ExpiresIn)
	}
	if rm.r.createCalls != 1 {
		t.Errorf("expected one refresh record, got %d", rm.r.createCalls)
	}
	if u.recordLoginCalls != 1 {
		t.Errorf("expected login to be recorded, got %d calls", u.recordLoginCalls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	u := &fakeUsersRepo{
		getOut: &models.User{
			ID:           1,
			PasswordHash: mustHash(t, "password1"),
			IsActive:     true,
		},
		failedAttempts: 1,
	}
	rm := &fakeRepoManager{u: u, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	_, err := s.Login(context.Background(), "a@example.com", "wrong", "10.0.0.1")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("expected ErrorUnauthorized, got %v", err)
	}
	if u.failedLoginCalls != 1 {
		t.Errorf("expected failed attempt to be recorded, got %d calls", u.failedLoginCalls)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{getErr: common.ErrorNotFound}, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	_, err := s.Login(context.Background(), "nobody", "password1", "10.0.0.1")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("expected ErrorUnauthorized, got %v", err)
	}
}

func TestLogin_Locked(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	until := time.Now().Add(10 * time.Minute)
	u := &fakeUsersRepo{getOut: &models.User{
		ID:           1,
		PasswordHash: mustHash(t, "password1"),
		IsActive:     true,
		LockedUntil:  &until,
	}}
	rm := &fakeRepoManager{u: u, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	_, err := s.Login(context.Background(), "a@example.com", "password1", "10.0.0.1")
	if !errors.Is(err, common.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestLogin_ExpiredLockIgnored(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	until := time.Now().Add(-1 * time.Minute)
	u := &fakeUsersRepo{getOut: &models.User{
		ID:           1,
		Email:        "a@example.com",
		PasswordHash: mustHash(t, "password1"),
		Role:         models.RoleUser,
		IsActive:     true,
		LockedUntil:  &until,
	}}
	rm := &fakeRepoManager{u: u, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	if _, err := s.Login(context.Background(), "a@example.com", "password1", "10.0.0.1"); err != nil {
		t.Fatalf("Login error: %v", err)
	}
}

func TestLogin_Inactive(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	u := &fakeUsersRepo{getOut: &models.User{
		ID:           1,
		PasswordHash: mustHash(t, "password1"),
		IsActive:     false,
	}}
	rm := &fakeRepoManager{u: u, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	_, err := s.Login(context.Background(), "a@example.com", "password1", "10.0.0.1")
	if !errors.Is(err, common.ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	cfg := testConfig()
	cfg.LoginRateLimitMax = 2
	cfg.LoginRateLimitWindow = time.Minute

	u := &fakeUsersRepo{getErr: common.ErrorNotFound}
	rm := &fakeRepoManager{u: u, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, cfg)

	for i := 0; i < cfg.LoginRateLimitMax; i++ {
		if _, err := s.Login(context.Background(), "nobody", "x", "10.0.0.1"); !errors.Is(err, common.ErrorUnauthorized) {
			t.Fatalf("attempt %d: expected ErrorUnauthorized, got %v", i, err)
		}
	}

	_, err := s.Login(context.Background(), "nobody", "x", "10.0.0.1")
	if !errors.Is(err, common.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// a different client IP is not affected
	_, err = s.Login(context.Background(), "nobody", "x", "10.0.0.2")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("expected ErrorUnauthorized for other IP, got %v", err)
	}
}

// --- Refresh / Logout ---

func issueRefreshToken(t *testing.T, s *UserService, userID int64) string {
	t.Helper()
	jti := auth.NewJTI()
	token, err := s.codec.Issue("a@example.com", auth.TokenTypeRefresh, time.Hour,
		auth.IssueOptions{UserID: userID, JTI: jti})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	return token
}

func TestRefresh_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	u := &fakeUsersRepo{byIDOut: &models.User{
		ID:       1,
		Email:    "a@example.com",
		Role:     models.RoleUser,
		IsActive: true,
	}}
	rm := &fakeRepoManager{
		u: u,
		r: &fakeRefreshRepo{getOut: &models.RefreshToken{UserID: 1, IsActive: true, ExpiresAt: time.Now().Add(time.Hour)}},
	}
	s := newUserService(t, db, rm, nil)

	refresh := issueRefreshToken(t, s, 1)

	pair, err := s.Refresh(context.Background(), refresh)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("expected a new access token")
	}
	if pair.RefreshToken != refresh {
		t.Error("refresh token must be returned unchanged")
	}

	claims, err := s.codec.Verify(pair.AccessToken, auth.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.UserID != 1 {
		t.Errorf("unexpected user_id claim: %d", claims.UserID)
	}
}

func TestRefresh_Revoked(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{},
		r: &fakeRefreshRepo{getOut: &models.RefreshToken{UserID: 1, IsActive: false, ExpiresAt: time.Now().Add(time.Hour)}},
	}
	s := newUserService(t, db, rm, nil)

	refresh := issueRefreshToken(t, s, 1)

	_, err := s.Refresh(context.Background(), refresh)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefresh_UnknownJTI(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{},
		r: &fakeRefreshRepo{getErr: common.ErrorNotFound},
	}
	s := newUserService(t, db, rm, nil)

	refresh := issueRefreshToken(t, s, 1)

	_, err := s.Refresh(context.Background(), refresh)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	access, err := s.codec.Issue("a@example.com", auth.TokenTypeAccess, time.Hour, auth.IssueOptions{UserID: 1})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = s.Refresh(context.Background(), access)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLogout_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	refresh := issueRefreshToken(t, s, 1)

	if err := s.Logout(context.Background(), 1, refresh); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if rm.r.revokeCalls != 1 {
		t.Errorf("expected one revoke call, got %d", rm.r.revokeCalls)
	}
}

func TestLogout_WrongOwner(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	refresh := issueRefreshToken(t, s, 1)

	err := s.Logout(context.Background(), 2, refresh)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if rm.r.revokeCalls != 0 {
		t.Errorf("revoke must not be called, got %d", rm.r.revokeCalls)
	}
}

func TestLogout_AlreadyRevoked(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, r: &fakeRefreshRepo{revokeErr: common.ErrorNotFound}}
	s := newUserService(t, db, rm, nil)

	refresh := issueRefreshToken(t, s, 1)

	if err := s.Logout(context.Background(), 1, refresh); err != nil {
		t.Fatalf("Logout must tolerate an already revoked token, got %v", err)
	}
}

// --- ChangePassword ---

func TestChangePassword_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	u := &fakeUsersRepo{byIDOut: &models.User{ID: 1, PasswordHash: mustHash(t, "oldpass12")}}
	rm := &fakeRepoManager{u: u, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	if err := s.ChangePassword(context.Background(), 1, "oldpass12", "newpass34"); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	u := &fakeUsersRepo{byIDOut: &models.User{ID: 1, PasswordHash: mustHash(t, "oldpass12")}}
	rm := &fakeRepoManager{u: u, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	err := s.ChangePassword(context.Background(), 1, "wrong", "newpass34")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("expected ErrorUnauthorized, got %v", err)
	}
}

func TestChangePassword_WeakNew(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	u := &fakeUsersRepo{byIDOut: &models.User{ID: 1, PasswordHash: mustHash(t, "oldpass12")}}
	rm := &fakeRepoManager{u: u, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm, nil)

	err := s.ChangePassword(context.Background(), 1, "oldpass12", "short")
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
