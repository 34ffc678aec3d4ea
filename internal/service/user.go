package service

import (
	"context"
	"errors"
	"strings"

	"chat-relay/internal/auth"
	"chat-relay/internal/config"
	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

// UserService wraps registration, login and profile maintenance. Password
// hashing and token signing live in internal/auth.
type UserService struct {
	repo repositories.UserRepository
	cfg  config.Config
}

// NewUserService constructs a UserService.
func NewUserService(repo repositories.UserRepository, cfg config.Config) *UserService {
	return &UserService{repo: repo, cfg: cfg}
}

// ProfilePatch carries optional profile updates.
type ProfilePatch struct {
	Username    *string `json:"username,omitempty"`
	Password    *string `json:"password,omitempty"`
	Email       *string `json:"email,omitempty"`
	AvatarColor *string `json:"avatarColor,omitempty"`
	Theme       *string `json:"theme,omitempty"`
}

// Register creates a user with a hashed password and defaults for theme and
// avatar color.
func (s *UserService) Register(ctx context.Context, username, password string, email *string, avatarColor, theme string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.User{}, ErrInvalidCredentials
	}
	if theme == "" {
		theme = "dark"
	}
	if theme != "dark" && theme != "light" {
		return models.User{}, ErrInvalidTheme
	}
	if avatarColor == "" {
		avatarColor = RandomColor()
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	user, err := s.repo.CreateUser(ctx, username, hash, email, avatarColor, theme)
	if errors.Is(err, repositories.ErrUsernameTaken) {
		return models.User{}, ErrUsernameTaken
	}
	return user, err
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	AccessToken string      `json:"accessToken"`
	User        models.User `json:"user"`
}

// Login verifies credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !auth.VerifyPassword(user.Password, password) {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := auth.GenerateAccessToken(user.ID, s.cfg.JWTSecret, s.cfg.AccessTokenTTLMinutes)
	if err != nil {
		return LoginResult{}, err
	}
	_ = s.repo.TouchLastLogin(ctx, user.ID)
	return LoginResult{AccessToken: token, User: user}, nil
}

// Get fetches a user by id.
func (s *UserService) Get(ctx context.Context, userID int) (models.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// Resolve returns the identity for a username, creating a passwordless row if
// none exists. The relay uses this on join so presence works for identities
// that never went through registration.
func (s *UserService) Resolve(ctx context.Context, username string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, ErrInvalidCredentials
	}
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, err
	}
	user, err = s.repo.CreateUser(ctx, username, "", nil, RandomColor(), "dark")
	if errors.Is(err, repositories.ErrUsernameTaken) {
		// lost a race with a concurrent join; the row exists now
		return s.repo.GetUserByUsername(ctx, username)
	}
	return user, err
}

// UpdateProfile applies the non-nil patch fields, hashing a new password.
func (s *UserService) UpdateProfile(ctx context.Context, userID int, patch ProfilePatch) (models.User, error) {
	if patch.Theme != nil && *patch.Theme != "dark" && *patch.Theme != "light" {
		return models.User{}, ErrInvalidTheme
	}
	if patch.Username != nil && strings.TrimSpace(*patch.Username) == "" {
		return models.User{}, ErrInvalidCredentials
	}

	var hash *string
	if patch.Password != nil {
		h, err := auth.HashPassword(*patch.Password)
		if err != nil {
			return models.User{}, err
		}
		hash = &h
	}

	user, err := s.repo.UpdateUser(ctx, userID, patch.Username, hash, patch.Email, patch.AvatarColor, patch.Theme)
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		return models.User{}, ErrUserNotFound
	case errors.Is(err, repositories.ErrUsernameTaken):
		return models.User{}, ErrUsernameTaken
	}
	return user, err
}

// UpdateTheme validates and stores the theme preference.
func (s *UserService) UpdateTheme(ctx context.Context, userID int, theme string) (models.User, error) {
	if theme != "dark" && theme != "light" {
		return models.User{}, ErrInvalidTheme
	}
	user, err := s.repo.UpdateTheme(ctx, userID, theme)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// Delete removes the account; memberships and messages cascade in storage.
func (s *UserService) Delete(ctx context.Context, userID int) error {
	err := s.repo.DeleteUser(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}
