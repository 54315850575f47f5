// Package common contains shared constants, sentinel errors and small helpers
// used across WBCMS components.
package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// RequestIDHeaderName is echoed on every HTTP response.
const RequestIDHeaderName = "X-Request-ID"

// Institutional e-mail domains accepted at sign-up.
const (
	StudentEmailDomain  = "students.mak.ac.ug"
	LecturerEmailDomain = "cit.mak.ac.ug"
)
