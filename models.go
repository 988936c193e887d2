package moderation

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RoleAdmin moderates requests and content, and manages accounts
	RoleAdmin UserRole = "admin"
	// RoleCreator authors content and submits it for review
	RoleCreator UserRole = "creator"
	// RoleConsumer reads published content and keeps personal lists
	RoleConsumer UserRole = "consumer"
)

// UserStatus is the account lifecycle state
type UserStatus string

const (
	// UserStatusActive accounts can authenticate and act
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended accounts are refused authentication
	UserStatusSuspended UserStatus = "suspended"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole       `bun:"user_role,notnull" json:"user_role,omitempty"`
	Status         UserStatus     `bun:"status,notnull" json:"status,omitempty"`
	Username       string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"password_hash,omitempty"`
	LoginAttempts  int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	SuspendedAt    *time.Time     `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus backfills the zero value so legacy rows behave as active accounts.
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// IsActive reports whether the account can authenticate.
func (u *User) IsActive() bool {
	u.EnsureStatus()
	return u.Status == UserStatusActive
}

// IsSuspended reports whether the account is suspended.
func (u *User) IsSuspended() bool {
	return u.Status == UserStatusSuspended
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

func statusAuthError(status UserStatus) error {
	if status == UserStatusSuspended {
		return ErrAccountSuspended
	}
	return nil
}

// PasswordPin is a short-lived numeric code used to verify a password reset.
// At most one live pin exists per email; issuing a new one supersedes the old.
type PasswordPin struct {
	bun.BaseModel `bun:"table:password_pins,alias:pin"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        *uuid.UUID `bun:"user_id,notnull" json:"user_id,omitempty"`
	User          *User      `bun:"rel:has-one,join:user_id=id" json:"user,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Pin           int        `bun:"pin,notnull" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the pin is past its expiry at the given instant.
func (p *PasswordPin) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Notification is a per-user inbox row for moderation outcomes.
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:ntf"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID      `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Read          bool           `bun:"read" json:"read"`
	Payload       map[string]any `bun:"payload" json:"payload,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	ReadAt        *time.Time     `bun:"read_at,nullzero" json:"read_at,omitempty"`
}
