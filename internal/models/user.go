package models

import "time"

// Role decides what a staff account may see.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleStaff     Role = "staff"
	RoleUser      Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDeveloper, RoleStaff, RoleUser:
		return true
	}
	return false
}

// Privileged reports whether the role may read reports and manage deleted tasks.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleDeveloper
}

// User is a portal account.
type User struct {
	Base         `bson:",inline"`
	Name         string    `bson:"name" json:"name"`
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password" json:"-"`
	Role         Role      `bson:"role" json:"role"`
	Department   string    `bson:"department,omitempty" json:"department,omitempty"`
	Active       bool      `bson:"active" json:"active"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}
