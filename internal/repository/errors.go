package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrAlreadyExists indicates a uniqueness constraint rejected the write.
	ErrAlreadyExists = errors.New("repository: already exists")
)
