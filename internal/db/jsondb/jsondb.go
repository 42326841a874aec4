// Package jsondb implements the storage contract on top of a single
// JSON file. The whole dataset lives in memory and is flushed to disk
// on Close, which keeps it a faithful stand-in for a schema-flexible
// document store in local runs and tests.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/thoas/go-funk"

	"github.com/mpetrenko/geotaglog/internal/models"
	"github.com/mpetrenko/geotaglog/internal/user"
)

// userRecord is the persisted form of a user. Unlike user.User it
// serializes the password hash, which never leaves the store layer.
type userRecord struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type entryRecord struct {
	Entry models.Entry

	// Seq preserves insertion order so listings stay stable when two
	// entries share a creation timestamp.
	Seq int64
}

// CacheStruct is the in-memory image of the database file.
type CacheStruct struct {
	Users         map[string]*userRecord
	EmailToUserID map[string]string
	Entries       map[string]*entryRecord
	NextEntrySeq  int64
}

// JSONDB is a file-backed document store guarded by a single RWMutex.
type JSONDB struct {
	fileName string
	Cache    CacheStruct

	mu sync.RWMutex
}

func emptyCache() CacheStruct {
	return CacheStruct{
		Users:         map[string]*userRecord{},
		EmailToUserID: map[string]string{},
		Entries:       map[string]*entryRecord{},
		NextEntrySeq:  1,
	}
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(dbFile)
	encoder.SetIndent("", "\t")
	if err := encoder.Encode(emptyCache()); err != nil {
		return err
	}
	return dbFile.Close()
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %s", err)
	}

	file, err2 := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err2 != nil {
		return fmt.Errorf("error opening file: %s", err2)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %s", err)
	}

	return nil
}

func parseJSONFile(fileName string, cacheMap *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(cacheMap)
	if err != nil {
		return err
	}

	return nil
}

// NewEmpty returns a store with an empty cache and no backing file.
// Close must not be called on it; memorystorage wraps it instead.
func NewEmpty() *JSONDB {
	return &JSONDB{
		Cache: emptyCache(),
	}
}

// New loads the database file, creating an empty one when it does not
// exist yet.
func New(fileName string) (*JSONDB, error) {
	theDB := JSONDB{
		fileName: fileName,
		Cache:    emptyCache(),
	}

	err := parseJSONFile(theDB.fileName, &theDB.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, err
		}
		err = parseJSONFile(theDB.fileName, &theDB.Cache)
		if err != nil {
			return nil, err
		}
	}

	return &theDB, nil
}

// CreateUser persists a new user, enforcing email uniqueness.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.EmailToUserID[usr.Email]; exists {
		return models.ErrEmailAlreadyTaken
	}

	db.Cache.Users[usr.ID] = &userRecord{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
	}
	db.Cache.EmailToUserID[usr.Email] = usr.ID

	return nil
}

func recordToUser(record *userRecord) *user.User {
	return &user.User{
		ID:           record.ID,
		Name:         record.Name,
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
		CreatedAt:    record.CreatedAt,
	}
}

// FindUserByEmail returns the user registered under the given email.
func (db *JSONDB) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	userID, found := db.Cache.EmailToUserID[email]
	if !found {
		return nil, false, nil
	}

	return recordToUser(db.Cache.Users[userID]), true, nil
}

// FindUserByID returns the user with the given id.
func (db *JSONDB) FindUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	record, found := db.Cache.Users[userID]
	if !found {
		return nil, false, nil
	}

	return recordToUser(record), true, nil
}

// CreateEntry persists a new journal entry under the next sequence number.
func (db *JSONDB) CreateEntry(ctx context.Context, entry *models.Entry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.Cache.Entries[entry.ID] = &entryRecord{
		Entry: *entry,
		Seq:   db.Cache.NextEntrySeq,
	}
	db.Cache.NextEntrySeq++

	return nil
}

// FindEntriesByUser returns the user's entries, most recent first.
func (db *JSONDB) FindEntriesByUser(ctx context.Context, userID string) ([]models.Entry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	records := funk.Filter(
		funk.Values(db.Cache.Entries).([]*entryRecord),
		func(record *entryRecord) bool { return record.Entry.UserID == userID },
	).([]*entryRecord)

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Entry.CreatedAt.Equal(records[j].Entry.CreatedAt) {
			return records[i].Entry.CreatedAt.After(records[j].Entry.CreatedAt)
		}
		return records[i].Seq > records[j].Seq
	})

	result := make([]models.Entry, 0, len(records))
	for _, record := range records {
		result = append(result, record.Entry)
	}

	return result, nil
}

// FindEntryByID returns the entry with the given id.
func (db *JSONDB) FindEntryByID(ctx context.Context, entryID string) (*models.Entry, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	record, found := db.Cache.Entries[entryID]
	if !found {
		return nil, false, nil
	}

	entry := record.Entry

	return &entry, true, nil
}

// DeleteEntry removes the entry record. Deleting an unknown id is a no-op.
func (db *JSONDB) DeleteEntry(ctx context.Context, entryID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.Cache.Entries, entryID)

	return nil
}

// GetNumberOfUsers returns the total number of registered users.
func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

// GetNumberOfEntries returns the total number of stored entries.
func (db *JSONDB) GetNumberOfEntries(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Entries)), nil
}

// Ping always succeeds for the file-backed store.
func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the cache to the database file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}
