package models

import "time"

// User is a registered account. ActivationToken is empty once the account
// has been activated.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	IsAdmin         bool
	Activated       bool
	ActivationToken string
	CreatedAt       time.Time
}

// UserSummary is the public view of a user returned by the API.
type UserSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	Activated bool   `json:"activated"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin, Activated: u.Activated}
}
