package models

import "time"

// Message is a chat message owned by the account whose username is Owner.
type Message struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
