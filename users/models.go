package users

import (
	"time"

	"payrollaudit/review"
)

// User is a reviewer account.
type User struct {
	ID           string
	Username     string
	FullName     string
	PasswordHash string
	Role         review.Role
	// Entities scopes what the user may see; empty means every entity.
	Entities  []string
	CreatedAt time.Time
}

// Actor is the identity the review workflow acts on behalf of.
func (u User) Actor() review.Actor {
	return review.Actor{Username: u.Username, Role: u.Role, Entities: u.Entities}
}

type CreateRequest struct {
	Username string
	Password string
	FullName string
	Role     review.Role
	Entities []string
}

type LoginRequest struct {
	Username string
	Password string
}
