package users

import "time"

// User represents a staff account whose access is administered here.
// Authentication happens elsewhere; this service only manages what the
// account may do.
type User struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
