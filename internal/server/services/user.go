// Package services contains server-side business logic. This file implements
// UserService, which handles sign-up, login, and issuing/refreshing JWTs
// plus the server-side refresh-token ledger.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/wbcms/internal/common"
	"github.com/dmitrijs2005/wbcms/internal/cryptox"
	"github.com/dmitrijs2005/wbcms/internal/dbx"
	"github.com/dmitrijs2005/wbcms/internal/logging"
	"github.com/dmitrijs2005/wbcms/internal/server/auth"
	"github.com/dmitrijs2005/wbcms/internal/server/config"
	"github.com/dmitrijs2005/wbcms/internal/server/models"
	"github.com/dmitrijs2005/wbcms/internal/server/passwords"
	"github.com/dmitrijs2005/wbcms/internal/server/repositories/repomanager"
	"github.com/samber/oops"
)

// LoginResult is what a successful login or refresh hands back.
type LoginResult struct {
	Tokens *auth.TokenPair
	User   *models.User
}

// NewUser carries the fields needed to create an account.
type NewUser struct {
	Email              string
	Password           string
	FirstName          string
	LastName           string
	Role               models.Role
	StudentNumber      *string
	RegistrationNumber *string
}

// UserService provides authentication-related operations:
// - Signup / CreateUser: create accounts
// - Login: verify credentials and mint tokens
// - RefreshToken: rotate refresh tokens and mint a new pair
// - Authenticate: validate an access token
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      cryptox.PasswordHasher
	policy      *passwords.Policy
	codec       *auth.Codec
	log         logging.Logger
	now         func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      cryptox.NewArgon2idHasher(),
		policy:      passwords.NewPolicy(cfg.PasswordMinLength),
		codec:       auth.NewCodec([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration),
		log:         log,
		now:         time.Now,
	}
}

// Login verifies email and password and, on success, returns a new token
// pair. Unknown email and wrong password fail identically, and both run one
// full hash verification.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fail(KindMissingCredentials).Errorf("email and password are required")
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = s.hasher.Verify(password, cryptox.DummyHash)
			return nil, fail(KindInvalidCredentials).Errorf("invalid email or password")
		}
		return nil, fail(KindPersistence).With("operation", "GetByEmail").Wrap(err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		logging.LogError(ctx, s.log, "stored password hash unreadable", err, "user_id", user.ID)
		return nil, fail(KindInvalidCredentials).Errorf("invalid email or password")
	}
	if !ok {
		return nil, fail(KindInvalidCredentials).Errorf("invalid email or password")
	}

	if cryptox.IsBcrypt(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	pair, err := s.issue(ctx, s.db, user)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID, "role", string(user.Role))
	return &LoginResult{Tokens: pair, User: user}, nil
}

// upgradeHash re-hashes a legacy bcrypt password with argon2id. Failure is
// logged only; the login itself already succeeded.
func (s *UserService) upgradeHash(ctx context.Context, user *models.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.repomanager.Users(s.db).UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		logging.LogError(ctx, s.log, "password hash upgrade failed", err, "user_id", user.ID)
		return
	}
	user.PasswordHash = hash
}

// Signup creates a student or lecturer account. The role is derived from the
// institutional e-mail domain.
func (s *UserService) Signup(ctx context.Context, u NewUser) (*models.User, error) {
	email := NormalizeEmail(u.Email)
	if email == "" || u.Password == "" {
		return nil, fail(KindValidation).With("fields", missingFields(email, u.Password)).
			Errorf("email and password are required")
	}
	if !validEmail(email) {
		return nil, fail(KindValidation).Errorf("malformed email address")
	}

	switch emailDomain(email) {
	case common.StudentEmailDomain:
		u.Role = models.RoleStudent
	case common.LecturerEmailDomain:
		u.Role = models.RoleLecturer
	default:
		return nil, fail(KindInvalidEmailDomain).With("domain", emailDomain(email)).
			Errorf("email domain not accepted")
	}

	u.Email = email
	return s.CreateUser(ctx, u)
}

// CreateUser validates and stores an account with an explicit role. Used by
// Signup and by the registrar provisioning command.
func (s *UserService) CreateUser(ctx context.Context, u NewUser) (*models.User, error) {
	u.Email = NormalizeEmail(u.Email)
	if u.Email == "" || u.Password == "" {
		return nil, fail(KindValidation).With("fields", missingFields(u.Email, u.Password)).
			Errorf("email and password are required")
	}
	if !validEmail(u.Email) {
		return nil, fail(KindValidation).Errorf("malformed email address")
	}
	if !u.Role.Valid() {
		return nil, fail(KindValidation).With("role", string(u.Role)).Errorf("unknown role")
	}

	attrs := passwords.Attributes{Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
	if v := s.policy.Validate(u.Password, attrs); len(v) > 0 {
		return nil, fail(KindWeakPassword).With(ViolationsKey, v).Errorf("password validation failed")
	}

	hash, err := s.hasher.Hash(u.Password)
	if err != nil {
		return nil, fail(KindInternal).With("operation", "Hash").Wrap(err)
	}

	user := &models.User{
		Email:              u.Email,
		PasswordHash:       hash,
		Role:               u.Role,
		FirstName:          strings.TrimSpace(u.FirstName),
		LastName:           strings.TrimSpace(u.LastName),
		StudentNumber:      blankToNil(u.StudentNumber),
		RegistrationNumber: blankToNil(u.RegistrationNumber),
	}

	created, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fail(KindAlreadyExists).Errorf("user with this email already exists")
		}
		return nil, fail(KindPersistence).With("operation", "Create").Wrap(err)
	}

	s.log.Info(ctx, "user created", "user_id", created.ID, "role", string(created.Role))
	return created, nil
}

// RefreshToken validates a refresh token, rotates its ledger entry
// transactionally, and returns a fresh pair with claims re-read from the
// current user record.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, fail(KindValidation).Errorf("refresh token is required")
	}

	claims, err := s.codec.ParseRefresh(refreshToken)
	if err != nil {
		return nil, fail(KindInvalidSession).Wrap(err)
	}

	var result *LoginResult
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ledger := s.repomanager.RefreshTokens(tx)

		entry, err := ledger.Find(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fail(KindInvalidSession).Errorf("refresh token revoked")
			}
			return fail(KindPersistence).With("operation", "Find").Wrap(err)
		}
		if entry.UserID != claims.Subject || !s.now().Before(entry.Expires) {
			return fail(KindInvalidSession).Wrap(common.ErrRefreshTokenExpired)
		}
		if err := ledger.Delete(ctx, entry.ID); err != nil {
			return fail(KindPersistence).With("operation", "Delete").Wrap(err)
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, entry.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fail(KindInvalidSession).Errorf("user no longer exists")
			}
			return fail(KindPersistence).With("operation", "GetByID").Wrap(err)
		}

		pair, err := s.issue(ctx, tx, user)
		if err != nil {
			return err
		}
		result = &LoginResult{Tokens: pair, User: user}
		return nil
	})
	if err != nil {
		return nil, asPersistence(err)
	}

	return result, nil
}

// Authenticate validates an access token and returns its claim snapshot.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	if accessToken == "" {
		return nil, fail(KindInvalidSession).Errorf("missing access token")
	}
	claims, err := s.codec.ParseAccess(accessToken)
	if err != nil {
		return nil, fail(KindInvalidSession).Wrap(err)
	}
	return claims, nil
}

// --- helpers below ---

// issue mints a pair for user and records the refresh jti via db.
func (s *UserService) issue(ctx context.Context, db dbx.DBTX, user *models.User) (*auth.TokenPair, error) {
	pair, err := s.codec.MintPair(auth.ClaimsFromUser(user))
	if err != nil {
		return nil, fail(KindInternal).With("operation", "MintPair").Wrap(err)
	}
	if err := s.repomanager.RefreshTokens(db).Create(ctx, pair.RefreshID, user.ID, pair.RefreshExpires); err != nil {
		return nil, fail(KindPersistence).With("operation", "CreateRefreshToken").Wrap(err)
	}
	return pair, nil
}

// asPersistence leaves coded errors alone and classifies anything else
// (typically a failed commit) as a persistence failure.
func asPersistence(err error) error {
	if _, ok := oops.AsOops(err); ok {
		return err
	}
	return fail(KindPersistence).Wrap(err)
}

func missingFields(email, password string) []string {
	var f []string
	if email == "" {
		f = append(f, "email")
	}
	if password == "" {
		f = append(f, "password")
	}
	return f
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
