package entity

import "time"

// Role is a named group granting visibility over entries.
// Many-to-many with Entry via entry_roles and with User via user_roles.
type Role struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
