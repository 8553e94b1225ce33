package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
	"github.com/paywire/paywire/internal/services/ledger/auth"
	"github.com/paywire/paywire/internal/services/ledger/money"
)

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 2 * time.Second
)

type signUpRequest struct {
	Email     string `json:"email"     validate:"required,email"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"  validate:"required"`
	Password  string `json:"password"  validate:"required,min=8,max=72"`
}

type signInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type transferRequest struct {
	ReceiverID string        `json:"receiverId" validate:"required"`
	Amount     *money.Amount `json:"amount"     validate:"required"`
}

type signUpResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type signInResponse struct {
	Token string `json:"token"`
}

type balanceResponse struct {
	Balance money.Amount `json:"balance"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (r signUpRequest) input() auth.SignUpInput {
	return auth.SignUpInput{
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Password:  r.Password,
	}
}

// requestError is a client error whose message is safe to return verbatim.
type requestError struct {
	code    apperrors.Code
	message string
}

func (e *requestError) Error() string {
	return e.message
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// decodeRequest reads a JSON body into dst and validates it.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if apperrors.HasCode(err, apperrors.CodeInvalidAmount) {
			return &requestError{code: apperrors.CodeInvalidAmount, message: apperrors.CodeInvalidAmount.UserMessage()}
		}
		if errors.Is(err, io.EOF) {
			return &requestError{code: apperrors.CodeInvalidInput, message: "Request body is missing"}
		}
		return &requestError{code: apperrors.CodeInvalidInput, message: "Request body is not valid JSON"}
	}
	if err := s.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return fieldError(validationErrors[0])
		}
		return &requestError{code: apperrors.CodeInvalidInput, message: apperrors.CodeInvalidInput.UserMessage()}
	}
	return nil
}

func fieldError(fe validator.FieldError) *requestError {
	field := fe.Field()
	if field == "amount" {
		return &requestError{code: apperrors.CodeInvalidAmount, message: apperrors.CodeInvalidAmount.UserMessage()}
	}
	var message string
	switch fe.Tag() {
	case "required":
		message = fmt.Sprintf("%s is required", field)
	case "email":
		message = "Invalid email format"
	case "min":
		if field == "password" {
			message = "Password must contain at least 8 characters"
		} else {
			message = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
	case "max":
		message = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		message = fmt.Sprintf("%s is invalid", field)
	}
	return &requestError{code: apperrors.CodeInvalidInput, message: message}
}
