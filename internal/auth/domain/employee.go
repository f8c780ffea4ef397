package domain

import "time"

// Employee is a directory user who can sign in through the authorize endpoint.
type Employee struct {
	ID           string
	Username     string
	DisplayName  string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
