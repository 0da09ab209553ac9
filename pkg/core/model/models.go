package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleDonor        Role = "DONOR"
	RoleVolunteer    Role = "VOLUNTEER"
	RoleMedicalStaff Role = "MEDICAL_STAFF"
	RoleSystemAdmin  Role = "SYSTEM_ADMIN"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleDonor, RoleVolunteer, RoleMedicalStaff, RoleSystemAdmin:
		return true
	}
	return false
}

// ParseRole normalises a role label such as "donor" or "Medical staff"
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")))
	return r, r.IsValid()
}

// VerificationRecord records who verified an account and when
type VerificationRecord struct {
	By string
	At time.Time
}

// User is a read-only view of an account owned by the user directory
type User struct {
	ID                    string
	FirstName             string
	LastName              string
	Email                 string
	Role                  Role
	Verification          *VerificationRecord // nil until an admin verifies the account
	VolunteerVerification *VerificationRecord // nil until the volunteer is cleared to organise camps
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsVerifiedDonor reports whether the user may register for camps
func (u *User) IsVerifiedDonor() bool {
	return u != nil && u.Role == RoleDonor && u.Verification != nil
}

// IsVerifiedVolunteer reports whether the user may organise camps and record attendance
func (u *User) IsVerifiedVolunteer() bool {
	return u != nil && u.Role == RoleVolunteer && u.VolunteerVerification != nil
}
