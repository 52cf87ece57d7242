package model

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         string
	// IsTemporary marks accounts created implicitly at booking time,
	// pending full registration through signup.
	IsTemporary bool
	CreatedAt   time.Time
}
