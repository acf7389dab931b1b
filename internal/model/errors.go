package model

import "errors"

var (
	// Auth related errors
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenMalformed   = errors.New("token malformed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Directory related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrPackageNotFound    = errors.New("package not found")
	ErrPermissionNotFound = errors.New("permission not found")

	// Command channel related errors
	ErrNotConnected = errors.New("command channel not connected")
)
