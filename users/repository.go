package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrDuplicateUsername signals that the username is already registered.
	ErrDuplicateUsername = errors.New("users: username already exists")
)

// Querier is satisfied by pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles reviewer account storage.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

type CreateUserParams struct {
	Username     string
	FullName     string
	PasswordHash string
	Role         string
	Entities     []string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	db Querier
}

func NewRepository(db Querier) *PGRepository {
	return &PGRepository{db: db}
}

const userColumns = `id::text, usuario, nombre, clave_hash, rol, entes, creado`

func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	entities := params.Entities
	if entities == nil {
		entities = []string{}
	}
	user, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO usuarios (id, usuario, nombre, clave_hash, rol, entes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		uuid.NewString(), params.Username, params.FullName, params.PasswordHash, params.Role, entities))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateUsername
		}
		return User{}, fmt.Errorf("users: create user: %w", err)
	}
	return user, nil
}

// GetUserByUsername matches the username case-insensitively.
func (r *PGRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM usuarios WHERE LOWER(usuario) = LOWER($1)`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("users: get user: %w", err)
	}
	return user, nil
}

func (r *PGRepository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM usuarios ORDER BY usuario`)
	if err != nil {
		return nil, fmt.Errorf("users: list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: iterate users: %w", err)
	}
	return out, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &role, &u.Entities, &u.CreatedAt); err != nil {
		return User{}, err
	}
	u.Role = reviewRole(role)
	return u, nil
}
