package models

import "time"

// Account is a registered user. Username is case-sensitive and unique.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
