// Package user models ledger identities.
package user

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
	"github.com/paywire/paywire/internal/platform/id"
)

var (
	// ErrInvalidEmail indicates an email address that does not parse.
	ErrInvalidEmail = apperrors.New(apperrors.CodeInvalidInput, "email is not a valid address")
	// ErrEmptyName indicates a missing first or last name.
	ErrEmptyName = apperrors.New(apperrors.CodeInvalidInput, "first and last name are required")
	// ErrEmptyPasswordHash indicates a user built without credentials.
	ErrEmptyPasswordHash = apperrors.New(apperrors.CodeInvalidInput, "password hash is required")
)

// User represents an identity record.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput describes the metadata needed to create a user. The
// password must already be hashed.
type CreateUserInput struct {
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
}

// CreateUser builds a durable user identity from validated input.
func CreateUser(input CreateUserInput, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateUserInput(input)
	if err != nil {
		return User{}, err
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	createdAt := now().UTC()
	return User{
		ID:           userID,
		Email:        normalized.Email,
		FirstName:    normalized.FirstName,
		LastName:     normalized.LastName,
		PasswordHash: normalized.PasswordHash,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// NormalizeCreateUserInput trims and normalizes input before validation.
func NormalizeCreateUserInput(input CreateUserInput) (CreateUserInput, error) {
	email, err := NormalizeEmail(input.Email)
	if err != nil {
		return CreateUserInput{}, err
	}
	input.Email = email
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if input.FirstName == "" || input.LastName == "" {
		return CreateUserInput{}, ErrEmptyName
	}
	if input.PasswordHash == "" {
		return CreateUserInput{}, ErrEmptyPasswordHash
	}
	return input, nil
}

// NormalizeEmail lowercases and validates an email address so lookups are
// case-insensitive.
func NormalizeEmail(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(value)
	if err != nil || parsed.Address != value {
		return "", ErrInvalidEmail
	}
	return value, nil
}
