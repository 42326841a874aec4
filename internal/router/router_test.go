package router_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	resty "github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrenko/geotaglog/internal/auth"
	"github.com/mpetrenko/geotaglog/internal/db/memorystorage"
	"github.com/mpetrenko/geotaglog/internal/filesremover"
	"github.com/mpetrenko/geotaglog/internal/imagestore"
	"github.com/mpetrenko/geotaglog/internal/ipchecker"
	"github.com/mpetrenko/geotaglog/internal/logger"
	"github.com/mpetrenko/geotaglog/internal/models"
	"github.com/mpetrenko/geotaglog/internal/router"
	"github.com/mpetrenko/geotaglog/internal/service"
)

func newTestServer(t *testing.T, trustedSubnet string) *httptest.Server {
	t.Helper()

	require.NoError(t, logger.Init("info"))

	theDB, err := memorystorage.New()
	require.NoError(t, err)

	images, err := imagestore.New(t.TempDir())
	require.NoError(t, err)

	remover := filesremover.New(images, 16, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	remover.Run(ctx)

	theIPChecker, err := ipchecker.New(trustedSubnet)
	require.NoError(t, err)

	authn := auth.New([]byte("test_signing_secret"), time.Hour)
	theService := service.New(theDB, authn, remover)

	server := httptest.NewServer(router.New(theService, images, authn, theIPChecker, 10<<20))
	t.Cleanup(server.Close)

	return server
}

func registerUser(t *testing.T, client *resty.Client, name, email string) *models.AuthResponse {
	t.Helper()

	result := &models.AuthResponse{}
	response, err := client.R().
		SetBody(models.RegisterRequest{Name: name, Email: email, Password: "secret123"}).
		SetResult(result).
		Post("/api/auth/register")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, response.StatusCode())
	require.NotEmpty(t, result.Token)

	return result
}

type entryUpload struct {
	title       string
	description string
	latitude    string
	longitude   string
	address     string
	filename    string
	contentType string
	content     []byte
}

// multipartBody builds the form by hand so the image part carries an
// explicit Content-Type, the way browsers send it.
func multipartBody(t *testing.T, upload entryUpload) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"title":       upload.title,
		"description": upload.description,
		"latitude":    upload.latitude,
		"longitude":   upload.longitude,
		"address":     upload.address,
	}
	for name, value := range fields {
		if value != "" {
			require.NoError(t, writer.WriteField(name, value))
		}
	}

	if upload.filename != "" {
		partHeader := textproto.MIMEHeader{}
		partHeader.Set("Content-Disposition", `form-data; name="image"; filename="`+upload.filename+`"`)
		partHeader.Set("Content-Type", upload.contentType)

		part, err := writer.CreatePart(partHeader)
		require.NoError(t, err)
		_, err = part.Write(upload.content)
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func postEntry(t *testing.T, client *resty.Client, token string, upload entryUpload) (*resty.Response, *models.Entry) {
	t.Helper()

	body, contentType := multipartBody(t, upload)

	entry := &models.Entry{}
	response, err := client.R().
		SetAuthToken(token).
		SetHeader("Content-Type", contentType).
		SetBody(body.Bytes()).
		SetResult(entry).
		Post("/api/entries")
	require.NoError(t, err)

	return response, entry
}

func listEntries(t *testing.T, client *resty.Client, token string) (*resty.Response, []models.Entry) {
	t.Helper()

	var entries []models.Entry
	response, err := client.R().
		SetAuthToken(token).
		SetResult(&entries).
		Get("/api/entries")
	require.NoError(t, err)

	return response, entries
}

var jpegContent = []byte{0xFF, 0xD8, 0xFF, 0xDB, 'p', 'h', 'o', 't', 'o'}

func TestRegisterLoginFlow(t *testing.T) {
	server := newTestServer(t, "")
	client := resty.New().SetBaseURL(server.URL)

	registered := registerUser(t, client, "Ada", "ada@example.com")
	assert.Equal(t, "Ada", registered.User.Name)
	assert.Equal(t, "ada@example.com", registered.User.Email)

	// The same email cannot be registered twice.
	message := &models.MessageResponse{}
	response, err := client.R().
		SetBody(models.RegisterRequest{Name: "Ada Again", Email: "ada@example.com", Password: "secret456"}).
		SetError(message).
		Post("/api/auth/register")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode())
	assert.Equal(t, "User already exists", message.Message)

	loggedIn := &models.AuthResponse{}
	response, err = client.R().
		SetBody(models.LoginRequest{Email: "ada@example.com", Password: "secret123"}).
		SetResult(loggedIn).
		Post("/api/auth/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.NotEmpty(t, loggedIn.Token)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	response, err = client.R().
		SetBody(models.LoginRequest{Email: "ada@example.com", Password: "wrong-password"}).
		Post("/api/auth/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode())

	response, err = client.R().
		SetBody(models.LoginRequest{Email: "nobody@example.com", Password: "secret123"}).
		Post("/api/auth/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode())
}

func TestRegisterRejectsInvalidPayload(t *testing.T) {
	server := newTestServer(t, "")
	client := resty.New().SetBaseURL(server.URL)

	tests := []struct {
		name    string
		payload models.RegisterRequest
	}{
		{name: "malformed email", payload: models.RegisterRequest{Name: "Ada", Email: "not-an-email", Password: "secret123"}},
		{name: "short password", payload: models.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "12345"}},
		{name: "missing name", payload: models.RegisterRequest{Email: "ada@example.com", Password: "secret123"}},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			response, err := client.R().SetBody(testCase.payload).Post("/api/auth/register")
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, response.StatusCode())
		})
	}
}

func TestEntryRoutesRequireBearerToken(t *testing.T) {
	server := newTestServer(t, "")
	client := resty.New().SetBaseURL(server.URL)

	response, err := client.R().Get("/api/entries")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode())

	response, err = client.R().SetAuthToken("not.a.token").Get("/api/entries")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode())

	response, err = client.R().Delete("/api/entries/some-id")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode())
}

func TestPostEntryRejections(t *testing.T) {
	server := newTestServer(t, "")
	client := resty.New().SetBaseURL(server.URL)

	token := registerUser(t, client, "Ada", "ada@example.com").Token

	tests := []struct {
		name            string
		upload          entryUpload
		expectedMessage string
	}{
		{
			name: "no image part",
			upload: entryUpload{
				title: "Sunset", latitude: "12.9", longitude: "77.6",
			},
			expectedMessage: "No image uploaded",
		},
		{
			name: "png extension with spoofed MIME",
			upload: entryUpload{
				title: "Sunset", latitude: "12.9", longitude: "77.6",
				filename: "map.png", contentType: "application/octet-stream", content: []byte("data"),
			},
		},
		{
			name: "disallowed extension",
			upload: entryUpload{
				title: "Sunset", latitude: "12.9", longitude: "77.6",
				filename: "notes.gif", contentType: "image/png", content: []byte("data"),
			},
		},
		{
			name: "missing title",
			upload: entryUpload{
				latitude: "12.9", longitude: "77.6",
				filename: "sunset.jpg", contentType: "image/jpeg", content: jpegContent,
			},
		},
		{
			name: "non-numeric latitude",
			upload: entryUpload{
				title: "Sunset", latitude: "north", longitude: "77.6",
				filename: "sunset.jpg", contentType: "image/jpeg", content: jpegContent,
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			body, contentType := multipartBody(t, testCase.upload)

			message := &models.MessageResponse{}
			response, err := client.R().
				SetAuthToken(token).
				SetHeader("Content-Type", contentType).
				SetBody(body.Bytes()).
				SetError(message).
				Post("/api/entries")
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, response.StatusCode())
			if testCase.expectedMessage != "" {
				assert.Equal(t, testCase.expectedMessage, message.Message)
			}
		})
	}

	_, entries := listEntries(t, client, token)
	assert.Empty(t, entries)
}

func TestEntryLifecycle(t *testing.T) {
	server := newTestServer(t, "")
	client := resty.New().SetBaseURL(server.URL)

	ada := registerUser(t, client, "Ada", "ada@example.com")
	bob := registerUser(t, client, "Bob", "bob@example.com")

	response, sunset := postEntry(t, client, ada.Token, entryUpload{
		title:       "Sunset",
		description: "over the bay",
		latitude:    "12.9716",
		longitude:   "77.5946",
		address:     "Bengaluru",
		filename:    "sunset.jpg",
		contentType: "image/jpeg",
		content:     jpegContent,
	})
	require.Equal(t, http.StatusCreated, response.StatusCode())

	assert.NotEmpty(t, sunset.ID)
	assert.Equal(t, ada.User.ID, sunset.UserID)
	assert.Equal(t, "Sunset", sunset.Title)
	assert.InDelta(t, 12.9716, sunset.Latitude, 1e-9)
	assert.InDelta(t, 77.5946, sunset.Longitude, 1e-9)
	assert.Contains(t, sunset.ImageURL, "/uploads/")
	assert.Contains(t, sunset.ImageURL, "-sunset.jpg")
	assert.False(t, sunset.CreatedAt.IsZero())

	// The stored image is served back under its returned URL.
	imageResponse, err := client.R().Get(sunset.ImageURL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, imageResponse.StatusCode())
	assert.Equal(t, jpegContent, imageResponse.Body())

	response, _ = postEntry(t, client, bob.Token, entryUpload{
		title: "Harbor", latitude: "59.9", longitude: "10.7",
		filename: "harbor.png", contentType: "image/png", content: []byte("png-bytes"),
	})
	require.Equal(t, http.StatusCreated, response.StatusCode())

	response, later := postEntry(t, client, ada.Token, entryUpload{
		title: "Morning", latitude: "12.97", longitude: "77.59",
		filename: "morning.jpeg", contentType: "image/jpeg", content: jpegContent,
	})
	require.Equal(t, http.StatusCreated, response.StatusCode())

	// Listings are owner-scoped and newest-first.
	listResponse, adaEntries := listEntries(t, client, ada.Token)
	assert.Equal(t, http.StatusOK, listResponse.StatusCode())
	require.Len(t, adaEntries, 2)
	assert.Equal(t, later.ID, adaEntries[0].ID)
	assert.Equal(t, sunset.ID, adaEntries[1].ID)

	_, bobEntries := listEntries(t, client, bob.Token)
	require.Len(t, bobEntries, 1)
	assert.Equal(t, "Harbor", bobEntries[0].Title)

	// Bob cannot delete Ada's entry.
	message := &models.MessageResponse{}
	response, err = client.R().
		SetAuthToken(bob.Token).
		SetError(message).
		Delete("/api/entries/" + sunset.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode())
	assert.Equal(t, "Unauthorized", message.Message)

	_, adaEntries = listEntries(t, client, ada.Token)
	assert.Len(t, adaEntries, 2)

	// Deleting an unknown id is a 404.
	response, err = client.R().
		SetAuthToken(ada.Token).
		Delete("/api/entries/no-such-entry")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, response.StatusCode())

	// The owner can delete; the stored image goes away with the entry.
	response, err = client.R().
		SetAuthToken(ada.Token).
		Delete("/api/entries/" + sunset.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())

	_, adaEntries = listEntries(t, client, ada.Token)
	require.Len(t, adaEntries, 1)
	assert.Equal(t, later.ID, adaEntries[0].ID)

	require.Eventually(t, func() bool {
		imageResponse, err := client.R().Get(sunset.ImageURL)
		return err == nil && imageResponse.StatusCode() == http.StatusNotFound
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPing(t *testing.T) {
	server := newTestServer(t, "")
	client := resty.New().SetBaseURL(server.URL)

	response, err := client.R().Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
}

func TestInternalStats(t *testing.T) {
	server := newTestServer(t, "127.0.0.0/8")
	client := resty.New().SetBaseURL(server.URL)

	registerUser(t, client, "Ada", "ada@example.com")

	stats := &models.InternalStatsResponse{}
	response, err := client.R().SetResult(stats).Get("/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Equal(t, int64(1), stats.Users)
	assert.Equal(t, int64(0), stats.Entries)

	// From outside the trusted subnet the route is forbidden.
	response, err = client.R().
		SetHeader("X-Real-IP", "203.0.113.7").
		Get("/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, response.StatusCode())
}

func TestInternalStatsDisabledWithoutTrustedSubnet(t *testing.T) {
	server := newTestServer(t, "")
	client := resty.New().SetBaseURL(server.URL)

	response, err := client.R().Get("/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, response.StatusCode())
}
