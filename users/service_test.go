package users

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"payrollaudit/review"
)

func TestService_CreateAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	ctx := context.Background()
	user, err := svc.Create(ctx, CreateRequest{
		Username: "ana",
		Password: "supersafe",
		FullName: "Ana Auditora",
		Entities: []string{" ente_1_2 ", ""},
	})
	if err != nil {
		t.Fatalf("create: unexpected error: %v", err)
	}
	if user.Role != review.RoleAuditor {
		t.Fatalf("create: expected default role %s got %s", review.RoleAuditor, user.Role)
	}
	if len(user.Entities) != 1 || user.Entities[0] != "ENTE_1_2" {
		t.Fatalf("create: unexpected entities %v", user.Entities)
	}

	resp, err := svc.Login(ctx, LoginRequest{Username: "ANA", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}

	actor, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if actor.Username != "ana" || actor.Role != review.RoleAuditor {
		t.Fatalf("verify token: unexpected actor %+v", actor)
	}
	if actor.Privileged() {
		t.Fatal("verify token: auditor must not be privileged")
	}
	if len(actor.Entities) != 1 || actor.Entities[0] != "ENTE_1_2" {
		t.Fatalf("verify token: unexpected entities %v", actor.Entities)
	}
}

func TestService_TokenExpires(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret", time.Minute)
	ctx := context.Background()
	if _, err := svc.Create(ctx, CreateRequest{Username: "root", Password: "supersafe", FullName: "Root", Role: review.RoleAdmin}); err != nil {
		t.Fatalf("create: %v", err)
	}

	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	resp, err := svc.Login(ctx, LoginRequest{Username: "root", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	actor, err := svc.VerifyToken(resp.Token)
	if err != nil || !actor.Privileged() {
		t.Fatalf("verify token: actor %+v err %v", actor, err)
	}

	svc.now = func() time.Time { return start.Add(2 * time.Minute) }
	if _, err := svc.VerifyToken(resp.Token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}

	other := NewService(newFakeRepository(), "other-secret", time.Minute)
	other.now = func() time.Time { return start }
	if _, err := other.VerifyToken(resp.Token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret", time.Hour)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Username: "ana", Password: "short", FullName: "Ana"})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateRequest{Password: "strongpassword"}); err == nil {
		t.Fatal("expected validation error for missing fields")
	}
	if _, err := svc.Create(ctx, CreateRequest{Username: "x", FullName: "X", Password: "strongpassword", Role: "superuser"}); err == nil {
		t.Fatal("expected invalid role error")
	}
}

func TestService_DuplicateUsername(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret", time.Hour)
	req := CreateRequest{Username: "ana", Password: "strongpassword", FullName: "Ana"}
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret", time.Hour)
	ctx := context.Background()

	if _, err := svc.Login(ctx, LoginRequest{Username: "nadie", Password: "irrelevant"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := svc.Create(ctx, CreateRequest{Username: "ana", Password: "strongpassword", FullName: "Ana"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Username: "ana", Password: "wrongpassword"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_NoSecret(t *testing.T) {
	svc := NewService(newFakeRepository(), "", time.Hour)
	ctx := context.Background()
	if _, err := svc.Create(ctx, CreateRequest{Username: "ana", Password: "strongpassword", FullName: "Ana"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Username: "ana", Password: "strongpassword"}); !errors.Is(err, ErrNoTokenSecret) {
		t.Fatalf("expected ErrNoTokenSecret, got %v", err)
	}
	if _, err := svc.VerifyToken("x.y.z"); !errors.Is(err, ErrNoTokenSecret) {
		t.Fatalf("expected ErrNoTokenSecret, got %v", err)
	}
}

type fakeRepository struct {
	users map[string]User
	next  int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{users: make(map[string]User)}
}

func (f *fakeRepository) CreateUser(_ context.Context, params CreateUserParams) (User, error) {
	key := strings.ToLower(params.Username)
	if _, exists := f.users[key]; exists {
		return User{}, ErrDuplicateUsername
	}
	f.next++
	user := User{
		ID:           strings.Repeat("0", 7) + string(rune('0'+f.next)),
		Username:     params.Username,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         reviewRole(params.Role),
		Entities:     params.Entities,
		CreatedAt:    time.Now().UTC(),
	}
	f.users[key] = user
	return user, nil
}

func (f *fakeRepository) GetUserByUsername(_ context.Context, username string) (User, error) {
	user, ok := f.users[strings.ToLower(username)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) ListUsers(context.Context) ([]User, error) {
	out := make([]User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}
