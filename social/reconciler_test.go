package social

import (
	"context"
	"strings"
	"sync"
	"testing"

	userauth "github.com/clipnest/user-service"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryDirectory is an in-memory userauth.UserDirectory.
type memoryDirectory struct {
	mu       sync.Mutex
	users    []*userauth.User
	saveErr  error
	saveHook func()
}

func (d *memoryDirectory) FindByUsername(ctx context.Context, username string) (*userauth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (d *memoryDirectory) FindByEmail(ctx context.Context, email string) (*userauth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (d *memoryDirectory) Save(ctx context.Context, user *userauth.User) (*userauth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saveHook != nil {
		d.saveHook()
	}
	if d.saveErr != nil {
		return nil, d.saveErr
	}
	for _, u := range d.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, userauth.ErrDuplicateUser
		}
	}
	d.users = append(d.users, user)
	return user, nil
}

func githubProfile() *SocialProfile {
	return &SocialProfile{
		ProviderUserID: "gh-1234",
		Provider:       "github",
		Email:          "person@example.com",
		EmailVerified:  true,
		Name:           "Person",
		Username:       "person",
	}
}

func TestReconcileExistingAccount(t *testing.T) {
	existing := &userauth.User{
		ID:       uuid.New(),
		Username: "person",
		Email:    "person@example.com",
	}
	dir := &memoryDirectory{users: []*userauth.User{existing}}

	user, isNew, err := NewReconciler(dir).Reconcile(context.Background(), githubProfile())
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, existing.ID, user.ID)
}

func TestReconcileEmailCaseInsensitive(t *testing.T) {
	existing := &userauth.User{
		ID:       uuid.New(),
		Username: "person",
		Email:    "person@example.com",
	}
	dir := &memoryDirectory{users: []*userauth.User{existing}}

	profile := githubProfile()
	profile.Email = "  Person@Example.COM "

	user, isNew, err := NewReconciler(dir).Reconcile(context.Background(), profile)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, existing.ID, user.ID)
}

func TestReconcileCreatesAccount(t *testing.T) {
	dir := &memoryDirectory{}

	user, isNew, err := NewReconciler(dir).Reconcile(context.Background(), githubProfile())
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "person", user.Username)
	assert.Equal(t, "person@example.com", user.Email)
	assert.Equal(t, "github", user.Provider)
	assert.Empty(t, user.PasswordHash)
	assert.NotEqual(t, uuid.Nil, user.ID)
}

func TestReconcileUsernameConflictGetsSuffix(t *testing.T) {
	dir := &memoryDirectory{users: []*userauth.User{{
		ID:       uuid.New(),
		Username: "person",
		Email:    "other@example.com",
	}}}

	user, isNew, err := NewReconciler(dir).Reconcile(context.Background(), githubProfile())
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, strings.HasPrefix(user.Username, "person-"))
	assert.NotEqual(t, "person", user.Username)
}

func TestReconcileUsernameFromEmail(t *testing.T) {
	dir := &memoryDirectory{}

	profile := githubProfile()
	profile.Username = ""

	user, _, err := NewReconciler(dir).Reconcile(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, "person", user.Username)
}

func TestReconcileRejectsBadProfiles(t *testing.T) {
	dir := &memoryDirectory{}
	reconciler := NewReconciler(dir)

	_, _, err := reconciler.Reconcile(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUserInfoFailed)

	profile := githubProfile()
	profile.Email = ""
	_, _, err = reconciler.Reconcile(context.Background(), profile)
	assert.ErrorIs(t, err, ErrEmailMissing)

	profile = githubProfile()
	profile.EmailVerified = false
	_, _, err = reconciler.Reconcile(context.Background(), profile)
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestReconcileLostCreateRace(t *testing.T) {
	dir := &memoryDirectory{}

	// a concurrent login wins the insert between our lookup and save
	winner := &userauth.User{
		ID:       uuid.New(),
		Username: "person",
		Email:    "person@example.com",
	}
	dir.saveErr = userauth.ErrDuplicateUser
	dir.saveHook = func() {
		dir.users = append(dir.users, winner)
		dir.saveHook = nil
	}

	user, isNew, err := NewReconciler(dir).Reconcile(context.Background(), githubProfile())
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, winner.ID, user.ID)
}
