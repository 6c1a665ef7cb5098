package users

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/internal/database"
	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/auth"
	"github.com/mkoskinen/benchcom/pkg/logger"
	"github.com/mkoskinen/benchcom/pkg/pgutils"
)

// Store is the persistence surface the users service depends on.
type Store interface {
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, username, email, passwordHash string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
}

// Repository handles database operations for users
type Repository struct {
	db      bun.IDB
	timeout time.Duration
	log     *slog.Logger
}

// NewRepository creates a new users repository
func NewRepository(db bun.IDB, cfg *config.Config, log *slog.Logger) *Repository {
	return &Repository{
		db:      db,
		timeout: cfg.Database.QueryTimeout,
		log:     log.With(logger.Scope("users.repo")),
	}
}

// ExistsByUsernameOrEmail reports whether either identifier is taken.
func (r *Repository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	exists, err := r.db.NewSelect().
		Model((*User)(nil)).
		Where("username = ?", username).
		WhereOr("email = ?", email).
		Exists(ctx)
	if err != nil {
		r.log.Error("failed to check existing user", logger.Error(err))
		return false, apperror.FromDB(err)
	}
	return exists, nil
}

// Create inserts a new active, non-admin user. A concurrent registration
// that slips past the pre-check still fails on the unique constraints and
// is reported as ErrDuplicateUser.
func (r *Repository) Create(ctx context.Context, username, email, passwordHash string) (*User, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	user := &User{
		Username:       username,
		Email:          email,
		HashedPassword: passwordHash,
		IsActive:       true,
	}
	_, err := r.db.NewInsert().
		Model(user).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return nil, apperror.ErrDuplicateUser.WithInternal(err)
		}
		r.log.Error("failed to create user", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	return user, nil
}

// FindByUsername returns the user or an error matching apperror.ErrNotFound.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, "username = ?", username, username)
}

// FindByID returns the user or an error matching apperror.ErrNotFound.
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.findOne(ctx, "id = ?", id, strconv.FormatInt(id, 10))
}

// LookupAccount implements auth.UserLookup.
func (r *Repository) LookupAccount(ctx context.Context, id int64) (auth.Account, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return auth.Account{}, err
	}
	return auth.Account{ID: user.ID, IsActive: user.IsActive, IsAdmin: user.IsAdmin}, nil
}

func (r *Repository) findOne(ctx context.Context, where string, arg any, label string) (*User, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	user := new(User)
	err := r.db.NewSelect().
		Model(user).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("user", label)
		}
		r.log.Error("failed to load user", logger.Error(err))
		return nil, apperror.FromDB(err)
	}
	return user, nil
}
