package userauth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. Username and email are each globally unique; the
// password hash is empty for accounts created through OAuth2 reconciliation.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	Provider      string     `bun:"provider" json:"provider,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasLocalPassword reports whether the account can authenticate with a
// username/password pair.
func (u *User) HasLocalPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// IsProviderLinked reports whether the record was created through OAuth2
// reconciliation.
func (u *User) IsProviderLinked() bool {
	return u != nil && u.Provider != ""
}

func prepareUserDefaults(user *User) {
	if user == nil {
		return
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt == nil {
		now := time.Now()
		user.CreatedAt = &now
		user.UpdatedAt = &now
	}
}
