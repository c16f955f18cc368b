package domain

import "time"

// User carries the identity and authorization attributes the session
// subsystem needs: privilege flags and the lock timestamp are loaded in
// the same fetch so the lock gate never needs a second query.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DisplayName  string     `gorm:"size:255" json:"display_name"`
	PasswordHash string     `gorm:"size:128" json:"-"`
	Provider     string     `gorm:"size:32;index:idx_users_provider_subject" json:"provider,omitempty"`
	Subject      string     `gorm:"size:255;index:idx_users_provider_subject" json:"-"`
	Admin        bool       `json:"admin"`
	CanPublish   bool       `json:"can_publish"`
	LockedAt     *time.Time `gorm:"index" json:"locked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) Locked() bool {
	return u != nil && u.LockedAt != nil
}
