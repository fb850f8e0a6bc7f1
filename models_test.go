package userauth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserHasLocalPassword(t *testing.T) {
	assert.False(t, (*User)(nil).HasLocalPassword())
	assert.False(t, (&User{}).HasLocalPassword())
	assert.True(t, (&User{PasswordHash: "x"}).HasLocalPassword())
}

func TestUserIsProviderLinked(t *testing.T) {
	assert.False(t, (*User)(nil).IsProviderLinked())
	assert.False(t, (&User{}).IsProviderLinked())
	assert.True(t, (&User{Provider: "google"}).IsProviderLinked())
}

func TestPrepareUserDefaults(t *testing.T) {
	prepareUserDefaults(nil)

	user := &User{Username: "alice"}
	prepareUserDefaults(user)

	require.NotEqual(t, uuid.Nil, user.ID)
	require.NotNil(t, user.CreatedAt)
	require.NotNil(t, user.UpdatedAt)
	assert.WithinDuration(t, time.Now(), *user.CreatedAt, time.Minute)
}

func TestPrepareUserDefaultsKeepsExisting(t *testing.T) {
	id := uuid.New()
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	user := &User{ID: id, CreatedAt: &created}
	prepareUserDefaults(user)

	assert.Equal(t, id, user.ID)
	assert.Equal(t, created, *user.CreatedAt)
}
