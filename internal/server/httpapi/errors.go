package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/wbcms/internal/server/services"
)

type publicError struct {
	status  int
	message string
}

// publicErrors is the only place failure kinds become client-visible text.
// Internal causes are logged, never written to the response.
var publicErrors = map[services.Kind]publicError{
	services.KindValidation:          {http.StatusBadRequest, "Invalid request."},
	services.KindMissingCredentials:  {http.StatusBadRequest, "Email and password are required."},
	services.KindMissingEmail:        {http.StatusBadRequest, "Email is required."},
	services.KindMissingPassword:     {http.StatusBadRequest, "Password is required."},
	services.KindWeakPassword:        {http.StatusBadRequest, "Password validation failed."},
	services.KindInvalidEmailDomain:  {http.StatusBadRequest, "Invalid email domain. Must be students.mak.ac.ug or cit.mak.ac.ug."},
	services.KindAlreadyExists:       {http.StatusBadRequest, "User with this email already exists."},
	services.KindInvalidCredentials:  {http.StatusUnauthorized, "Invalid email or password."},
	services.KindInvalidSession:      {http.StatusUnauthorized, "Session is invalid or has expired. Please log in again."},
	services.KindRateLimited:         {http.StatusTooManyRequests, "A password reset request was already sent. Please check your email or try again later."},
	services.KindInvalidOrExpiredTok: {http.StatusBadRequest, "Invalid or expired reset token. Please request a new password reset."},
	services.KindDeliveryFailed:      {http.StatusInternalServerError, "Failed to send reset email. Please try again later."},
	services.KindPersistence:         {http.StatusInternalServerError, "The request could not be completed. Please try again."},
	services.KindInternal:            {http.StatusInternalServerError, "Internal server error."},
}

type errorBody struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

// describe maps err to its status code and response body.
func describe(err error) (int, errorBody) {
	kind := services.KindOf(err)
	pe, ok := publicErrors[kind]
	if !ok {
		kind = services.KindInternal
		pe = publicErrors[kind]
	}

	body := errorBody{Error: pe.message, Code: string(kind)}
	if kind == services.KindWeakPassword {
		body.Details = services.Violations(err)
	}
	return pe.status, body
}
