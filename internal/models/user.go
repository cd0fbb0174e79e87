package models

import "time"

// User represents a registered account. Usernames are unique and immutable
// after creation.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
