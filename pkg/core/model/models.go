package model

import (
	"github.com/jakechorley/charity-hub/pkg/db"
)

// Actor is the authenticated identity a request runs as. The role is
// asserted by the caller and re-checked against storage before use.
type Actor struct {
	UserID string
	Role   db.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == db.RoleAdmin
}

// Is reports whether the actor is the given user
func (a Actor) Is(userID string) bool {
	return a.UserID != "" && a.UserID == userID
}

// Account is what a user is: a volunteer with its profile, a charity with
// its profile, or an admin. It is built once at registration and never
// changes kind.
type Account interface {
	Role() db.Role
	isAccount()
}

// VolunteerAccount is a volunteer user and its profile
type VolunteerAccount struct {
	Profile db.VolunteerProfile
}

func (VolunteerAccount) Role() db.Role { return db.RoleVolunteer }
func (VolunteerAccount) isAccount()    {}

// CharityAccount is a charity user and its profile
type CharityAccount struct {
	Profile db.CharityProfile
}

func (CharityAccount) Role() db.Role { return db.RoleCharity }
func (CharityAccount) isAccount()    {}

// AdminAccount carries no profile
type AdminAccount struct{}

func (AdminAccount) Role() db.Role { return db.RoleAdmin }
func (AdminAccount) isAccount()    {}

// UserAccount pairs a user row with its account
type UserAccount struct {
	User    db.User
	Account Account
}
