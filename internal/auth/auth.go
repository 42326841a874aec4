// Package auth provides password hashing, JWT-based bearer tokens and
// the HTTP middleware that authenticates requests to protected routes.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/mpetrenko/geotaglog/internal/logger"
	"github.com/mpetrenko/geotaglog/internal/models"
)

// Claims represents the JWT claims used by the system.
// It embeds standard JWT claims and adds a user-specific identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key used to store and retrieve the authenticated user's ID.
const UserIDKey ContextKey = "userID"

// Auth issues and verifies bearer tokens and hashes passwords.
// Tokens are stateless: validity is fully determined by the HMAC
// signature and the expiry claim, so there is no revocation list.
type Auth struct {
	signingSecretKey []byte
	tokenTTL         time.Duration
}

// New creates an Auth with the given signing secret and token lifetime.
func New(signingSecretKey []byte, tokenTTL time.Duration) *Auth {
	return &Auth{
		signingSecretKey: signingSecretKey,
		tokenTTL:         tokenTTL,
	}
}

// HashPassword derives a bcrypt hash from the plaintext password. The
// cost is adaptive, so the plaintext is never recoverable from storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword reports whether the candidate password matches the
// stored bcrypt hash. The comparison recomputes the hash; it is not a
// substring match.
func CheckPassword(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// BuildJWTString issues a signed token for the given user id, expiring
// after the configured TTL.
func (a *Auth) BuildJWTString(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(a.signingSecretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserIDFromToken verifies the token's signature, structure and
// expiry and returns the user id claim. Any failure maps to
// models.ErrInvalidToken.
func (a *Auth) GetUserIDFromToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingSecretKey, nil
		},
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return "", models.ErrInvalidToken
	}

	return claims.UserID, nil
}

func getBearerToken(request *http.Request) string {
	header := request.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return parts[1]
}

// AuthenticateUser is an HTTP middleware that authenticates incoming
// requests using the `Authorization: Bearer <token>` header. Requests
// without a verifiable token are rejected with 401; on success the user
// id is stored in the request context under UserIDKey.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		tokenString := getBearerToken(request)
		if tokenString == "" {
			response.WriteHeader(http.StatusUnauthorized)
			return
		}

		userID, err := a.GetUserIDFromToken(tokenString)
		if err != nil {
			logger.Log.Debugln("Error calling the `a.GetUserIDFromToken()`: ", err)
			response.WriteHeader(http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, userID)
		requestWithCtx := request.WithContext(ctx)

		h.ServeHTTP(response, requestWithCtx)
	}

	return http.HandlerFunc(middleware)
}
