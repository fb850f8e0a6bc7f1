package social

import (
	"context"
	"fmt"
	"strings"

	userauth "github.com/clipnest/user-service"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// Reconciler maps a provider profile to a local user account. The email is
// the federation key: an existing account with the same email is reused no
// matter which provider delivered it, otherwise a password-less account is
// created on the fly.
type Reconciler struct {
	store  userauth.UserDirectory
	logger userauth.Logger
}

func NewReconciler(store userauth.UserDirectory) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: userauth.DefaultLogger(),
	}
}

func (r *Reconciler) WithLogger(logger userauth.Logger) *Reconciler {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Reconcile resolves the profile to a user record. The second return value
// reports whether the record was created by this call.
func (r *Reconciler) Reconcile(ctx context.Context, profile *SocialProfile) (*userauth.User, bool, error) {
	if profile == nil {
		return nil, false, ErrUserInfoFailed
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return nil, false, ErrEmailMissing
	}

	if !profile.EmailVerified {
		return nil, false, ErrEmailNotVerified
	}

	if user, err := r.store.FindByEmail(ctx, email); err == nil && user != nil {
		return user, false, nil
	} else if err != nil && !goerrors.IsNotFound(err) {
		return nil, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account by email")
	}

	record := &userauth.User{
		Username: r.deriveUsername(ctx, profile, email),
		Email:    email,
		Provider: profile.Provider,
	}
	if id, err := hashid.NewUUID(email); err == nil {
		record.ID = id
	}

	created, err := r.store.Save(ctx, record)
	if err == nil {
		return created, true, nil
	}

	if !userauth.IsUniqueConstraintError(err) {
		return nil, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account for social login")
	}

	// Lost the race against a concurrent login with the same email. The
	// winner's record is the account, use it.
	existing, ferr := r.store.FindByEmail(ctx, email)
	if ferr != nil || existing == nil {
		r.logger.Error("reconcile fallback lookup failed", "email", email, "error", ferr)
		return nil, false, ErrReconcileFailed
	}

	return existing, false, nil
}

func (r *Reconciler) deriveUsername(ctx context.Context, profile *SocialProfile, email string) string {
	base := strings.TrimSpace(profile.Username)
	if base == "" {
		base = strings.Split(email, "@")[0]
	}

	if _, err := r.store.FindByUsername(ctx, base); err != nil && goerrors.IsNotFound(err) {
		return base
	}

	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}
