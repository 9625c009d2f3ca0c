package storage

import "errors"

var (
	ErrAttemptNotFound = errors.New("authorization attempt not found")
	ErrAttemptExpired  = errors.New("authorization attempt expired")
	ErrAttemptExists   = errors.New("authorization attempt already exists")
	ErrTooManyAttempts = errors.New("too many authorization attempts in flight")
	ErrNoSessionCookie = errors.New("session cookie not found")
)
