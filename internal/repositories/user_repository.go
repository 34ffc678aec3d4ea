package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-relay/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username taken")
)

// UserRepository abstracts user persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, username, passwordHash string, email *string, avatarColor, theme string) (models.User, error)
	GetUser(ctx context.Context, id int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	UpdateUser(ctx context.Context, id int, username, passwordHash, email, avatarColor, theme *string) (models.User, error)
	UpdateTheme(ctx context.Context, id int, theme string) (models.User, error)
	TouchLastLogin(ctx context.Context, id int) error
	DeleteUser(ctx context.Context, id int) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, username, password, email, avatar_color, theme, created_at, last_login`

// CreateUser inserts a user row. A duplicate username maps to ErrUsernameTaken.
func (r *UserRepo) CreateUser(ctx context.Context, username, passwordHash string, email *string, avatarColor, theme string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`INSERT INTO users (username, password, email, avatar_color, theme) VALUES ($1, $2, $3, $4, $5) RETURNING `+userColumns,
		username, passwordHash, email, avatarColor, theme)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, err
	}
	return user, nil
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, id int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByUsername fetches a user by unique username.
func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateUser applies the non-nil fields and returns the updated row.
func (r *UserRepo) UpdateUser(ctx context.Context, id int, username, passwordHash, email, avatarColor, theme *string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `UPDATE users SET
            username = COALESCE($2, username),
            password = COALESCE($3, password),
            email = COALESCE($4, email),
            avatar_color = COALESCE($5, avatar_color),
            theme = COALESCE($6, theme)
        WHERE id=$1 RETURNING `+userColumns,
		id, username, passwordHash, email, avatarColor, theme)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return models.User{}, ErrUsernameTaken
		}
	}
	return user, err
}

// UpdateTheme sets the theme preference only.
func (r *UserRepo) UpdateTheme(ctx context.Context, id int, theme string) (models.User, error) {
	return r.UpdateUser(ctx, id, nil, nil, nil, nil, &theme)
}

// TouchLastLogin stamps a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = NOW() WHERE id=$1`, id)
	return err
}

// DeleteUser removes the user; memberships and messages cascade.
func (r *UserRepo) DeleteUser(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
