// Package storage declares the full contract implemented by every
// storage backend. Consumers depend on narrower, locally declared
// subsets of it; this union exists for backend compile-time checks and
// for the testify mock.
package storage

import (
	"context"

	"github.com/mpetrenko/geotaglog/internal/models"
	"github.com/mpetrenko/geotaglog/internal/user"
)

type Storage interface {
	// CreateUser persists a new user record. It fails with
	// models.ErrEmailAlreadyTaken when the email is already registered.
	CreateUser(ctx context.Context, usr *user.User) error

	FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error)

	FindUserByID(ctx context.Context, userID string) (*user.User, bool, error)

	// CreateEntry persists a new journal entry. The caller assigns the
	// id and the creation timestamp.
	CreateEntry(ctx context.Context, entry *models.Entry) error

	// FindEntriesByUser returns the given user's entries ordered by
	// creation time descending, most recent first.
	FindEntriesByUser(ctx context.Context, userID string) ([]models.Entry, error)

	FindEntryByID(ctx context.Context, entryID string) (*models.Entry, bool, error)

	// DeleteEntry removes the record. It does not touch the stored
	// image file; compensating cleanup is the caller's concern.
	DeleteEntry(ctx context.Context, entryID string) error

	GetNumberOfUsers(ctx context.Context) (int64, error)

	GetNumberOfEntries(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error

	Close() error
}
