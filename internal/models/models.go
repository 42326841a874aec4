// Package models defines the data shapes exchanged over the HTTP API,
// the journal entry record, and the error taxonomy shared by the
// storage, service and router layers.
package models

import (
	"errors"
	"time"
)

// Entry is a single geotagged photo log record. The JSON field names
// follow the document-store schema, so clients receive `_id`, `user`,
// `imageUrl` and `createdAt` keys.
type Entry struct {
	ID          string    `json:"_id"`
	UserID      string    `json:"user"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Address     string    `json:"address,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// EntryFields carries the text fields of the multipart entry-creation
// form. Latitude and longitude arrive as strings and are parsed by the
// service layer.
type EntryFields struct {
	Title       string
	Description string
	Latitude    string
	Longitude   string
	Address     string
}

// RegisterRequest is the JSON payload of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest is the JSON payload of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PublicUser is the profile part of an auth response. The password hash
// never appears here.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResponse is returned by both register and login.
type AuthResponse struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}

// MessageResponse is the confirmation shape for deletions and errors.
type MessageResponse struct {
	Message string `json:"message"`
}

// InternalStatsResponse reports totals for the trusted-subnet stats route.
type InternalStatsResponse struct {
	Entries int64 `json:"entries"`
	Users   int64 `json:"users"`
}

// FileDeleteJob asks the background files remover to delete the stored
// image files referenced by the given relative URLs.
type FileDeleteJob struct {
	UserID        string
	FilesToDelete []string
}

// Storage backend kinds, selected from configuration.
const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// ErrEmailAlreadyTaken is returned when registering with an email that
// already belongs to a user.
var ErrEmailAlreadyTaken = errors.New("a user with this email already exists")

// ErrInvalidCredentials is returned on login with an unknown email or a
// wrong password. The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken is returned when a bearer token fails signature,
// structure or expiry checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// ErrEntryNotFound is returned when no entry exists under the given id.
var ErrEntryNotFound = errors.New("entry not found")

// ErrAccessDenied is returned when the requester does not own the entry.
var ErrAccessDenied = errors.New("entry belongs to another user")

// ErrMissingImage is returned when the multipart form has no image field.
var ErrMissingImage = errors.New("no image uploaded")

// ErrUnsupportedMediaType is returned when the uploaded file's extension
// or declared content type is not on the jpeg/jpg/png allow-list.
var ErrUnsupportedMediaType = errors.New("images only (jpeg, jpg, png)")

// ErrValidation is returned when required entry fields are missing or
// the coordinates are not parseable as numbers.
var ErrValidation = errors.New("invalid entry fields")
