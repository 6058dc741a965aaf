package database

import "github.com/pkg/errors"

// ErrNotFound denotes that the requested item was not
// found in the database.
var ErrNotFound = errors.New("not found")

// ErrKeyAlreadyExists denotes that an insert operation
// attempted to overwrite an existing, append-once entry.
var ErrKeyAlreadyExists = errors.New("key already exists")

// IsNotFoundError checks whether the given error is an
// ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsKeyAlreadyExistsError checks whether the given error
// is an ErrKeyAlreadyExists.
func IsKeyAlreadyExistsError(err error) bool {
	return errors.Is(err, ErrKeyAlreadyExists)
}
