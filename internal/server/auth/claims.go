package auth

import (
	"github.com/dmitrijs2005/wbcms/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// SessionClaims is the identity snapshot embedded in every session token.
// It reflects the user at issuance time; role or profile changes take effect
// on the next login or refresh.
type SessionClaims struct {
	UserID             string      `json:"user_id"`
	Role               models.Role `json:"role"`
	Email              string      `json:"email"`
	StudentNumber      *string     `json:"student_number"`
	RegistrationNumber *string     `json:"registration_number"`
	Programme          *int64      `json:"programme"`
	HasProfile         bool        `json:"has_profile"`
}

// Claims is the full JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	SessionClaims
}

// ClaimsFromUser derives the session snapshot for u.
func ClaimsFromUser(u *models.User) SessionClaims {
	return SessionClaims{
		UserID:             u.ID,
		Role:               u.Role,
		Email:              u.Email,
		StudentNumber:      u.StudentNumber,
		RegistrationNumber: u.RegistrationNumber,
		Programme:          u.ProgrammeID,
		HasProfile:         u.HasProfile,
	}
}
