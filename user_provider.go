package userauth

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"
)

// dummyHash is compared against when no stored hash exists so the
// unknown-user path costs about the same as a real comparison.
var dummyHash = sync.OnceValue(RandomPasswordHash)

// UserProvider verifies credentials against the user directory.
type UserProvider struct {
	store  UserDirectory
	logger Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserDirectory) *UserProvider {
	return &UserProvider{
		store:  store,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyIdentity will find the user and compare the password hash.
// The returned error is identical for an unknown username, a
// provider-linked account without a local password, and a wrong password.
func (u UserProvider) VerifyIdentity(ctx context.Context, username, password string) (Identity, error) {
	user, err := u.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.IsNotFound(err) {
			_ = ComparePasswordAndHash(password, dummyHash())
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if user == nil {
		_ = ComparePasswordAndHash(password, dummyHash())
		return nil, ErrMismatchedHashAndPassword
	}

	if !user.HasLocalPassword() {
		u.logger.Debug("password login attempted for provider linked account", "username", username)
		_ = ComparePasswordAndHash(password, dummyHash())
		return nil, ErrMismatchedHashAndPassword
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrMismatchedHashAndPassword
	}

	return identityFromUser(user), nil
}

// FindIdentityByIdentifier resolves an identity by username, or by email
// when the identifier looks like one.
func (u UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	var user *User
	var err error

	if strings.Contains(identifier, "@") {
		user, err = u.store.FindByEmail(ctx, identifier)
	} else {
		user, err = u.store.FindByUsername(ctx, identifier)
	}

	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	if user == nil {
		return nil, ErrIdentityNotFound
	}

	return identityFromUser(user), nil
}

type authIdentity struct {
	id       string
	username string
	email    string
}

func (a authIdentity) ID() string {
	return a.id
}

func (a authIdentity) Username() string {
	return a.username
}

func (a authIdentity) Email() string {
	return a.email
}

var _ Identity = authIdentity{}

func identityFromUser(user *User) Identity {
	return authIdentity{
		id:       user.ID.String(),
		username: user.Username,
		email:    user.Email,
	}
}
