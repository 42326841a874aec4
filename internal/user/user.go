// Package user defines the user record used for authentication and
// entry ownership.
package user

import "time"

// User represents a registered account. Email is unique across the
// store; PasswordHash holds the bcrypt hash and is never serialized.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string `json:"id"`

	Name  string `json:"name"`
	Email string `json:"email"`

	PasswordHash string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}
