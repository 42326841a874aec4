// Package router wires the HTTP routes to the service layer, maps
// domain errors to status codes and shapes the JSON responses. It is the
// only place where errors become statuses.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/mpetrenko/geotaglog/internal/auth"
	"github.com/mpetrenko/geotaglog/internal/authenticator"
	"github.com/mpetrenko/geotaglog/internal/gzippedhttp"
	"github.com/mpetrenko/geotaglog/internal/ipchecker"
	"github.com/mpetrenko/geotaglog/internal/logger"
	"github.com/mpetrenko/geotaglog/internal/models"
)

type entryService interface {
	Register(ctx context.Context, name, email, password string) (*models.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	CreateEntry(
		ctx context.Context,
		userID string,
		fields models.EntryFields,
		imageURL string,
	) (*models.Entry, error)
	ListEntries(ctx context.Context, userID string) ([]models.Entry, error)
	DeleteEntry(ctx context.Context, userID, entryID string) error
	GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error)
	Ping(ctx context.Context) error
}

type imageSaver interface {
	Save(file multipart.File, header *multipart.FileHeader) (string, error)
	Dir() string
}

// Router holds the dependencies of the HTTP handlers.
type Router struct {
	service       entryService
	images        imageSaver
	ipChecker     *ipchecker.IPChecker
	validate      *validator.Validate
	maxUploadSize int64
}

// New assembles the chi router with the teacher middlewares and all
// application routes. Entry routes sit behind the bearer-token
// authenticator; uploaded images are served back as static files.
func New(
	service entryService,
	images imageSaver,
	authn authenticator.Authenticator,
	ipChecker *ipchecker.IPChecker,
	maxUploadSize int64,
) *chi.Mux {
	theRouter := &Router{
		service:       service,
		images:        images,
		ipChecker:     ipChecker,
		validate:      validator.New(),
		maxUploadSize: maxUploadSize,
	}

	router := chi.NewRouter()
	router.Use(logger.WithLoggingHTTPMiddleware)
	router.Use(gzippedhttp.GzipResponse)
	router.Use(gzippedhttp.UngzipRequest)

	router.Post(`/api/auth/register`, theRouter.PostRegister)
	router.Post(`/api/auth/login`, theRouter.PostLogin)

	router.Route(`/api/entries`, func(protected chi.Router) {
		protected.Use(authn.AuthenticateUser)
		protected.Post(`/`, theRouter.PostEntry)
		protected.Get(`/`, theRouter.GetEntries)
		protected.Delete(`/{id}`, theRouter.DeleteEntry)
	})

	router.Get(`/api/internal/stats`, theRouter.GetInternalStats)
	router.Get(`/ping`, theRouter.GetPing)

	router.Handle(
		`/uploads/*`,
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(images.Dir()))),
	)

	return router
}

func writeJSON(response http.ResponseWriter, status int, payload any) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error encoding the response payload: ", err)
	}
}

func writeMessage(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, models.MessageResponse{Message: message})
}

// writeDomainError is the single error-to-status mapping of the API.
// Anything outside the taxonomy becomes a generic 500 that leaks no
// internals.
func writeDomainError(response http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrEmailAlreadyTaken):
		writeMessage(response, http.StatusBadRequest, "User already exists")
	case errors.Is(err, models.ErrInvalidCredentials):
		writeMessage(response, http.StatusBadRequest, "Invalid credentials")
	case errors.Is(err, models.ErrMissingImage):
		writeMessage(response, http.StatusBadRequest, "No image uploaded")
	case errors.Is(err, models.ErrUnsupportedMediaType):
		writeMessage(response, http.StatusBadRequest, models.ErrUnsupportedMediaType.Error())
	case errors.Is(err, models.ErrValidation):
		writeMessage(response, http.StatusBadRequest, models.ErrValidation.Error())
	case errors.Is(err, models.ErrEntryNotFound):
		writeMessage(response, http.StatusNotFound, "Entry not found")
	case errors.Is(err, models.ErrAccessDenied), errors.Is(err, models.ErrInvalidToken):
		writeMessage(response, http.StatusUnauthorized, "Unauthorized")
	default:
		logger.Log.Debugln("Unexpected handler error: ", err)
		writeMessage(response, http.StatusInternalServerError, "Server error")
	}
}

func (theRouter *Router) decodeAndValidate(request *http.Request, target any) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return err
	}

	return theRouter.validate.Struct(target)
}

func userIDFromContext(request *http.Request) (string, bool) {
	userID, ok := request.Context().Value(auth.UserIDKey).(string)
	return userID, ok && userID != ""
}

// PostRegister handles POST /api/auth/register: it creates an account
// and returns 201 with a token and the public profile.
func (theRouter *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	payload := models.RegisterRequest{}
	if err := theRouter.decodeAndValidate(request, &payload); err != nil {
		writeMessage(response, http.StatusBadRequest, "Invalid registration payload")
		return
	}

	result, err := theRouter.service.Register(request.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		writeDomainError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, result)
}

// PostLogin handles POST /api/auth/login: it verifies the credentials
// and returns 200 with a fresh token and the public profile.
func (theRouter *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	payload := models.LoginRequest{}
	if err := theRouter.decodeAndValidate(request, &payload); err != nil {
		writeMessage(response, http.StatusBadRequest, "Invalid login payload")
		return
	}

	result, err := theRouter.service.Login(request.Context(), payload.Email, payload.Password)
	if err != nil {
		writeDomainError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, result)
}

// PostEntry handles POST /api/entries: it stores the uploaded image and
// creates an entry owned by the authenticated user.
func (theRouter *Router) PostEntry(response http.ResponseWriter, request *http.Request) {
	userID, ok := userIDFromContext(request)
	if !ok {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := request.ParseMultipartForm(theRouter.maxUploadSize); err != nil {
		writeMessage(response, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := request.FormFile("image")
	if err != nil {
		writeDomainError(response, models.ErrMissingImage)
		return
	}
	defer file.Close()

	imageURL, err := theRouter.images.Save(file, header)
	if err != nil {
		writeDomainError(response, err)
		return
	}

	// The image is on disk by now. If entry creation fails below, the
	// file stays behind; there is no compensating rollback.
	entry, err := theRouter.service.CreateEntry(
		request.Context(),
		userID,
		models.EntryFields{
			Title:       request.FormValue("title"),
			Description: request.FormValue("description"),
			Latitude:    request.FormValue("latitude"),
			Longitude:   request.FormValue("longitude"),
			Address:     request.FormValue("address"),
		},
		imageURL,
	)
	if err != nil {
		writeDomainError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, entry)
}

// GetEntries handles GET /api/entries: it lists the authenticated
// user's entries, most recent first.
func (theRouter *Router) GetEntries(response http.ResponseWriter, request *http.Request) {
	userID, ok := userIDFromContext(request)
	if !ok {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	entries, err := theRouter.service.ListEntries(request.Context(), userID)
	if err != nil {
		writeDomainError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, entries)
}

// DeleteEntry handles DELETE /api/entries/{id}: it removes the entry
// after the ownership check.
func (theRouter *Router) DeleteEntry(response http.ResponseWriter, request *http.Request) {
	userID, ok := userIDFromContext(request)
	if !ok {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	entryID := chi.URLParam(request, "id")
	if err := theRouter.service.DeleteEntry(request.Context(), userID, entryID); err != nil {
		writeDomainError(response, err)
		return
	}

	writeMessage(response, http.StatusOK, "Entry removed")
}

// GetInternalStats handles GET /api/internal/stats, available only from
// the trusted subnet.
func (theRouter *Router) GetInternalStats(response http.ResponseWriter, request *http.Request) {
	if theRouter.ipChecker.IsTrustedSubnetEmpty() {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	clientIP, err := theRouter.ipChecker.GetClientIP(request)
	if err != nil || !theRouter.ipChecker.Check(clientIP) {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	stats, err := theRouter.service.GetInternalStats(request.Context())
	if err != nil {
		writeDomainError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, stats)
}

// GetPing handles GET /ping, reporting storage health.
func (theRouter *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := theRouter.service.Ping(request.Context()); err != nil {
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}
