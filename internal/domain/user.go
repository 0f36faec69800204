package domain

import "time"

// User is the account record shared by reporters, support staff and
// administrators. Role membership is carried as flags rather than separate
// tables; an account can hold several at once.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
	IsSupport    bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the capability set handed to the access resolver and the
// lifecycle engine. It is derived from the authenticated user; the core
// never performs identity lookups itself.
type Actor struct {
	ID        string
	IsAdmin   bool
	IsSupport bool
}

// ActorFromUser derives the capability set for an authenticated user.
func ActorFromUser(u *User) Actor {
	return Actor{ID: u.ID, IsAdmin: u.IsAdmin, IsSupport: u.IsSupport}
}
