// Package service implements the application's business logic on top of
// the storage layer: account registration and login, entry creation,
// owner-scoped listing and deletion.
package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mpetrenko/geotaglog/internal/auth"
	"github.com/mpetrenko/geotaglog/internal/models"
	"github.com/mpetrenko/geotaglog/internal/user"
)

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) error
	FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error)
	FindUserByID(ctx context.Context, userID string) (*user.User, bool, error)
}

type entryKeeper interface {
	CreateEntry(ctx context.Context, entry *models.Entry) error
	FindEntriesByUser(ctx context.Context, userID string) ([]models.Entry, error)
	FindEntryByID(ctx context.Context, entryID string) (*models.Entry, bool, error)
	DeleteEntry(ctx context.Context, entryID string) error
}

type statsKeeper interface {
	GetNumberOfUsers(ctx context.Context) (int64, error)
	GetNumberOfEntries(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	userKeeper
	entryKeeper
	statsKeeper
	pinger
}

type tokenIssuer interface {
	BuildJWTString(userID string) (string, error)
}

type filesRemover interface {
	EnqueueJob(job *models.FileDeleteJob)
}

// Service wires storage, token issuing and background file removal into
// the operations exposed by the HTTP layer.
type Service struct {
	db           storage
	tokens       tokenIssuer
	filesRemover filesRemover
}

// New creates a Service.
func New(db storage, tokens tokenIssuer, filesRemover filesRemover) *Service {
	return &Service{
		db:           db,
		tokens:       tokens,
		filesRemover: filesRemover,
	}
}

func publicProfile(usr *user.User) models.PublicUser {
	return models.PublicUser{
		ID:    usr.ID,
		Name:  usr.Name,
		Email: usr.Email,
	}
}

// Register creates a new account and issues a bearer token for it.
// The password is stored only as a bcrypt hash.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.AuthResponse, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	usr := &user.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.db.CreateUser(ctx, usr); err != nil {
		return nil, err
	}

	token, err := s.tokens.BuildJWTString(usr.ID)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{Token: token, User: publicProfile(usr)}, nil
}

// Login verifies the credentials and issues a bearer token. Unknown
// email and wrong password both map to models.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	usr, found, err := s.db.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if !found || !auth.CheckPassword(usr.PasswordHash, password) {
		return nil, models.ErrInvalidCredentials
	}

	token, err := s.tokens.BuildJWTString(usr.ID)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{Token: token, User: publicProfile(usr)}, nil
}

// CreateEntry validates the form fields and persists a new entry owned
// by userID. The creation timestamp is assigned here, server-side.
func (s *Service) CreateEntry(
	ctx context.Context,
	userID string,
	fields models.EntryFields,
	imageURL string,
) (*models.Entry, error) {
	if strings.TrimSpace(fields.Title) == "" || imageURL == "" {
		return nil, models.ErrValidation
	}

	latitude, err := strconv.ParseFloat(fields.Latitude, 64)
	if err != nil {
		return nil, models.ErrValidation
	}
	longitude, err := strconv.ParseFloat(fields.Longitude, 64)
	if err != nil {
		return nil, models.ErrValidation
	}

	entry := &models.Entry{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       fields.Title,
		Description: fields.Description,
		ImageURL:    imageURL,
		Latitude:    latitude,
		Longitude:   longitude,
		Address:     fields.Address,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.db.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// ListEntries returns the requester's entries, most recent first.
func (s *Service) ListEntries(ctx context.Context, userID string) ([]models.Entry, error) {
	return s.db.FindEntriesByUser(ctx, userID)
}

// CanAccess is the single authorization predicate: an entry is
// accessible only to the user who created it.
func CanAccess(userID string, entry *models.Entry) bool {
	return entry != nil && entry.UserID == userID
}

// DeleteEntry removes the entry after an ownership check and enqueues
// the stored image file for background removal.
func (s *Service) DeleteEntry(ctx context.Context, userID, entryID string) error {
	entry, found, err := s.db.FindEntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if !found {
		return models.ErrEntryNotFound
	}
	if !CanAccess(userID, entry) {
		return models.ErrAccessDenied
	}

	if err := s.db.DeleteEntry(ctx, entryID); err != nil {
		return err
	}

	s.filesRemover.EnqueueJob(&models.FileDeleteJob{
		UserID:        userID,
		FilesToDelete: []string{entry.ImageURL},
	})

	return nil
}

// GetInternalStats returns totals for the trusted-subnet stats route.
func (s *Service) GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	entries, err := s.db.GetNumberOfEntries(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{
		Entries: entries,
		Users:   users,
	}, nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
