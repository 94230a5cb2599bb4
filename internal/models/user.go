package models

import "time"

type Role string

const (
	Student   Role = "student"
	Moderator Role = "moderator"
	Admin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case Student, Moderator, Admin:
		return true
	}
	return false
}

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         *string   `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// UserLite is the public projection embedded into other entities.
type UserLite struct {
	ID    string  `json:"id"`
	Name  *string `json:"name"`
	Email string  `json:"email,omitempty"`
}
