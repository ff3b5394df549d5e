package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"payrollaudit/review"
)

var (
	// ErrInvalidCredentials signals wrong username or password.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("users: password must be at least 8 characters")
	// ErrNoTokenSecret is returned when tokens are requested without a signing secret.
	ErrNoTokenSecret = errors.New("users: token secret not configured")
)

const minPasswordLen = 8

// Service manages reviewer accounts and the tokens that identify them.
type Service struct {
	repo     Repository
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

type LoginResult struct {
	Token string
	User  User
}

func NewService(repo Repository, tokenSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		secret:   []byte(tokenSecret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// Create registers a reviewer. Role defaults to auditor.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*User, error) {
	if len(req.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || strings.TrimSpace(req.FullName) == "" {
		return nil, fmt.Errorf("users: username and full name are required")
	}

	role := review.Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = review.RoleAuditor
	}
	if !isValidRole(role) {
		return nil, fmt.Errorf("users: invalid role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}

	var entities []string
	for _, e := range req.Entities {
		if e = strings.ToUpper(strings.TrimSpace(e)); e != "" {
			entities = append(entities, e)
		}
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Username:     username,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(hash),
		Role:         string(role),
		Entities:     entities,
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate checks a username and password.
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (User, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a signed token for the user.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.Authenticate(ctx, req)
	if err != nil {
		return LoginResult{}, err
	}
	token, err := s.generateToken(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("users: generate token: %w", err)
	}
	return LoginResult{Token: token, User: user}, nil
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// VerifyToken validates a token and returns the actor it identifies.
func (s *Service) VerifyToken(tokenString string) (review.Actor, error) {
	if len(s.secret) == 0 {
		return review.Actor{}, ErrNoTokenSecret
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return review.Actor{}, fmt.Errorf("users: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return review.Actor{}, fmt.Errorf("users: invalid token")
	}
	username, ok := claims["sub"].(string)
	if !ok || username == "" {
		return review.Actor{}, fmt.Errorf("users: invalid subject in token")
	}
	roleStr, ok := claims["role"].(string)
	if !ok || !isValidRole(review.Role(roleStr)) {
		return review.Actor{}, fmt.Errorf("users: invalid role in token")
	}

	var entities []string
	if raw, ok := claims["entities"].([]any); ok {
		for _, e := range raw {
			if v, ok := e.(string); ok {
				entities = append(entities, v)
			}
		}
	}
	return review.Actor{Username: username, Role: review.Role(roleStr), Entities: entities}, nil
}

func (s *Service) generateToken(u User) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrNoTokenSecret
	}
	now := s.now()
	entities := u.Entities
	if entities == nil {
		entities = []string{}
	}
	claims := jwt.MapClaims{
		"sub":      u.Username,
		"role":     string(u.Role),
		"entities": entities,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func isValidRole(role review.Role) bool {
	switch role {
	case review.RoleAdmin, review.RoleAuditor:
		return true
	default:
		return false
	}
}

// reviewRole maps a stored role; anything unknown is treated as auditor.
func reviewRole(stored string) review.Role {
	r := review.Role(strings.ToLower(strings.TrimSpace(stored)))
	if !isValidRole(r) {
		return review.RoleAuditor
	}
	return r
}
