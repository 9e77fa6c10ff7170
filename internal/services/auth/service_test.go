package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/delawer33/edumaster/internal/domain/enums"
	pgrepo "github.com/delawer33/edumaster/internal/repo/postgres"
	redrepo "github.com/delawer33/edumaster/internal/repo/redis"
	authsvc "github.com/delawer33/edumaster/internal/services/auth"
)

func TestRegisterThenLogin(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	registerRes, err := svc.Register(ctx, authsvc.RegisterInput{
		Email:    "Student@Example.com",
		Password: "correct-horse",
		Name:     "Student",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registerRes.Me.Role != string(enums.RoleStudent) {
		t.Fatalf("expected student role, got %q", registerRes.Me.Role)
	}
	if registerRes.Me.Email != "student@example.com" {
		t.Fatalf("email was not normalized, got %q", registerRes.Me.Email)
	}

	loginRes, err := svc.Login(ctx, "student@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken); err != nil {
		t.Fatalf("validate access token: %v", err)
	}

	if _, err := svc.Login(ctx, "student@example.com", "wrong-password"); !errors.Is(err, authsvc.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	input := authsvc.RegisterInput{Email: "dup@example.com", Password: "correct-horse"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, input); !errors.Is(err, authsvc.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	res, err := svc.Register(context.Background(), authsvc.RegisterInput{
		Email:    "sneaky@example.com",
		Password: "correct-horse",
		Role:     string(enums.RoleAdmin),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.Me.Role != string(enums.RoleStudent) {
		t.Fatalf("admin role should fall back to student, got %q", res.Me.Role)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	loginRes, err := svc.Register(ctx, authsvc.RegisterInput{
		Email:    "rotate@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	refreshRes, err := svc.Refresh(ctx, loginRes.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshRes.RefreshToken == loginRes.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	if _, err := svc.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("old refresh token should be unauthorized, got err=%v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, refreshRes.AccessToken); err != nil {
		t.Fatalf("new access token validation failed: %v", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	loginRes, err := svc.Register(ctx, authsvc.RegisterInput{
		Email:    "logout@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	claims, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken)
	if err != nil {
		t.Fatalf("validate access token before logout: %v", err)
	}

	if err := svc.Logout(ctx, claims.SID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("access token should be unauthorized after logout, got err=%v", err)
	}
}

type stubUserStore struct {
	nextID  int64
	byEmail map[string]pgrepo.UserRecord
	byID    map[int64]pgrepo.UserRecord
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{
		nextID:  1,
		byEmail: make(map[string]pgrepo.UserRecord),
		byID:    make(map[int64]pgrepo.UserRecord),
	}
}

func (s *stubUserStore) Create(_ context.Context, p pgrepo.CreateUserParams) (pgrepo.UserRecord, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if _, ok := s.byEmail[email]; ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserExists
	}

	rec := pgrepo.UserRecord{
		ID:           s.nextID,
		Email:        email,
		PasswordHash: p.PasswordHash,
		Name:         p.Name,
		Role:         p.Role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.nextID++
	s.byEmail[email] = rec
	s.byID[rec.ID] = rec
	return rec, nil
}

func (s *stubUserStore) FindByEmail(_ context.Context, email string) (pgrepo.UserRecord, error) {
	rec, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
	}
	return rec, nil
}

func (s *stubUserStore) FindByID(_ context.Context, userID int64) (pgrepo.UserRecord, error) {
	rec, ok := s.byID[userID]
	if !ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
	}
	return rec, nil
}

func newAuthServiceForTest(t *testing.T) (*authsvc.Service, func()) {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	sessions := redrepo.NewSessionRepo(client)
	jwtManager := authsvc.NewJWTManager("test-secret", 15*time.Minute)
	svc := authsvc.NewService(newStubUserStore(), sessions, jwtManager, 45*24*time.Hour)

	cleanup := func() {
		_ = client.Close()
		mini.Close()
	}

	return svc, cleanup
}
