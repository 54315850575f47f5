// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role enumerates who a user is within the institution.
type Role string

const (
	RoleStudent   Role = "student"
	RoleLecturer  Role = "lecturer"
	RoleRegistrar Role = "registrar"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLecturer, RoleRegistrar:
		return true
	}
	return false
}

// User is the credential-bearing account record. Email is unique.
type User struct {
	ID                 string
	Email              string
	PasswordHash       string
	Role               Role
	FirstName          string
	LastName           string
	StudentNumber      *string
	RegistrationNumber *string
	// ProgrammeID is nil until the student completes the profile.
	ProgrammeID *int64
	HasProfile  bool
	CreatedAt   time.Time
}
