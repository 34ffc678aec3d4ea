package service

import "errors"

// Business-rule errors. Handlers and the relay map these to HTTP statuses and
// wire error codes; anything not listed here is reported as a generic internal
// error and logged.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrPermissionDenied = errors.New("permission denied")

	ErrGroupNotFound = errors.New("group not found")
	ErrUserNotFound  = errors.New("user not found")

	ErrEmptyName        = errors.New("group name is required")
	ErrEmptyContent     = errors.New("message content is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrWrongPassword    = errors.New("incorrect password")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidTheme     = errors.New("invalid theme value")

	ErrAlreadyMember = errors.New("already a member of this group")
	ErrNotMember     = errors.New("not a member of this group")
	ErrUsernameTaken = errors.New("username already exists")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrOwnerImmutable     = errors.New("owner role cannot be changed")
)
