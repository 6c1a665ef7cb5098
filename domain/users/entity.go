package users

import (
	"time"

	"github.com/uptrace/bun"
)

// User is an account row in the users table.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	Username       string    `bun:"username,notnull" json:"username"`
	Email          string    `bun:"email,notnull" json:"email"`
	HashedPassword string    `bun:"hashed_password,notnull" json:"-"`
	IsActive       bool      `bun:"is_active,notnull" json:"is_active"`
	IsAdmin        bool      `bun:"is_admin,notnull" json:"is_admin"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
