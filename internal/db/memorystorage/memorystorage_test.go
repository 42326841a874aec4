package memorystorage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrenko/geotaglog/internal/models"
	"github.com/mpetrenko/geotaglog/internal/user"
)

func TestMemoryStorageRoundtrip(t *testing.T) {
	theStorage, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, theStorage.CreateUser(ctx, &user.User{
		ID:           "u1",
		Name:         "Ada",
		Email:        "ada@x.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	}))
	require.NoError(t, theStorage.CreateEntry(ctx, &models.Entry{
		ID:     "e1",
		UserID: "u1",
		Title:  "Sunset",
	}))

	usr, found, err := theStorage.FindUserByEmail(ctx, "ada@x.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "u1", usr.ID)

	entries, err := theStorage.FindEntriesByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Sunset", entries[0].Title)

	assert.NoError(t, theStorage.Ping(ctx))
	assert.NoError(t, theStorage.Close())
}
