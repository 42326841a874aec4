// Package memorystorage provides an in-memory storage backend built on
// top of jsondb without file persistence. It is used when neither a
// database DSN nor a storage file is configured, and in tests.
package memorystorage

import (
	"github.com/mpetrenko/geotaglog/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: jsondb.NewEmpty(),
	}, nil
}

// Close is a no-op: nothing is persisted.
func (theStorage *MemoryStorage) Close() error {
	return nil
}
