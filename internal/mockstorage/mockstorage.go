// Package mockstorage provides a testify-based mock implementation
// of the storage contract. It is used for unit testing the service and
// HTTP handlers by simulating storage behavior.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mpetrenko/geotaglog/internal/db/storage"
	"github.com/mpetrenko/geotaglog/internal/models"
	"github.com/mpetrenko/geotaglog/internal/user"
)

// StorageMock is a testify mock implementing storage.Storage.
type StorageMock struct {
	mock.Mock
}

var _ storage.Storage = (*StorageMock)(nil)

// CreateUser mocks persisting a new user.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

// FindUserByEmail mocks the email lookup.
func (m *StorageMock) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// FindUserByID mocks the id lookup.
func (m *StorageMock) FindUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// CreateEntry mocks persisting a new entry.
func (m *StorageMock) CreateEntry(ctx context.Context, entry *models.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// FindEntriesByUser mocks the owner-scoped listing.
func (m *StorageMock) FindEntriesByUser(ctx context.Context, userID string) ([]models.Entry, error) {
	args := m.Called(ctx, userID)
	entries, _ := args.Get(0).([]models.Entry)
	return entries, args.Error(1)
}

// FindEntryByID mocks the entry lookup.
func (m *StorageMock) FindEntryByID(ctx context.Context, entryID string) (*models.Entry, bool, error) {
	args := m.Called(ctx, entryID)
	entry, _ := args.Get(0).(*models.Entry)
	return entry, args.Bool(1), args.Error(2)
}

// DeleteEntry mocks the entry removal.
func (m *StorageMock) DeleteEntry(ctx context.Context, entryID string) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}

// GetNumberOfUsers mocks the user total.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// GetNumberOfEntries mocks the entry total.
func (m *StorageMock) GetNumberOfEntries(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks releasing the storage.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
