package entity

import "time"

// User identifies a navigation consumer. Passwords are stored as bcrypt
// hashes in Password; everything else about the account lives outside
// this service.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
