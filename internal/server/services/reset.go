package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/wbcms/internal/common"
	"github.com/dmitrijs2005/wbcms/internal/cryptox"
	"github.com/dmitrijs2005/wbcms/internal/dbx"
	"github.com/dmitrijs2005/wbcms/internal/logging"
	"github.com/dmitrijs2005/wbcms/internal/server/config"
	"github.com/dmitrijs2005/wbcms/internal/server/mailer"
	"github.com/dmitrijs2005/wbcms/internal/server/models"
	"github.com/dmitrijs2005/wbcms/internal/server/passwords"
	"github.com/dmitrijs2005/wbcms/internal/server/ratelimit"
	"github.com/dmitrijs2005/wbcms/internal/server/repositories/repomanager"
)

// ResetTokenLength is the number of alphanumeric characters in a reset token.
const ResetTokenLength = 32

// maxTokenAttempts bounds retries on the (astronomically unlikely) event of
// a token collision.
const maxTokenAttempts = 3

// PasswordResetService handles the forgot-password flow: issuing single-use
// tokens by mail and redeeming them for a new password.
type PasswordResetService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	limiter     ratelimit.Limiter
	mailer      mailer.Mailer
	hasher      cryptox.PasswordHasher
	policy      *passwords.Policy
	log         logging.Logger

	tokenTTL    time.Duration
	window      time.Duration
	frontendURL string

	now      func() time.Time
	newToken func() (string, error)
}

func NewPasswordResetService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	limiter ratelimit.Limiter,
	ml mailer.Mailer,
	cfg *config.Config,
	log logging.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		db:          db,
		repomanager: m,
		limiter:     limiter,
		mailer:      ml,
		hasher:      cryptox.NewArgon2idHasher(),
		policy:      passwords.NewPolicy(cfg.PasswordMinLength),
		log:         log,
		tokenTTL:    cfg.ResetTokenValidityDuration,
		window:      cfg.ResetRequestWindow,
		frontendURL: cfg.FrontendURL,
		now:         time.Now,
		newToken: func() (string, error) {
			return common.MakeRandAlphanumericString(ResetTokenLength)
		},
	}
}

// RequestReset issues a reset token for email and mails the link.
//
// The rate-limit marker is claimed atomically for every well-formed address
// before the account lookup, so a repeated request is refused the same way
// whether or not the account exists. A missing account returns nil exactly
// like a real send.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return fail(KindMissingEmail).Errorf("email is required")
	}
	if !validEmail(email) {
		return fail(KindValidation).Errorf("malformed email address")
	}

	claimed, err := s.limiter.SetIfAbsent(ctx, email, s.window)
	if err != nil {
		return fail(KindInternal).With("operation", "SetIfAbsent").Wrap(err)
	}
	if !claimed {
		return fail(KindRateLimited).Errorf("reset already requested recently")
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Debug(ctx, "reset requested for unknown email")
			return nil
		}
		s.release(ctx, email)
		return fail(KindPersistence).With("operation", "GetByEmail").Wrap(err)
	}

	token, err := s.createToken(ctx, user)
	if err != nil {
		s.release(ctx, email)
		return err
	}

	link := mailer.ResetLink(s.frontendURL, token.Token)
	if err := s.mailer.Send(ctx, user.Email, mailer.ResetSubject, mailer.ResetBody(link, s.tokenTTL)); err != nil {
		return fail(KindDeliveryFailed).With("user_id", user.ID).Wrap(err)
	}

	s.log.Info(ctx, "password reset token issued", "user_id", user.ID, "token_id", token.ID)
	return nil
}

func (s *PasswordResetService) createToken(ctx context.Context, user *models.User) (*models.PasswordResetToken, error) {
	repo := s.repomanager.ResetTokens(s.db)
	expires := s.now().Add(s.tokenTTL)

	for attempt := 1; ; attempt++ {
		raw, err := s.newToken()
		if err != nil {
			return nil, fail(KindInternal).With("operation", "newToken").Wrap(err)
		}

		token, err := repo.Create(ctx, user.ID, raw, expires)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, common.ErrorAlreadyExists) || attempt == maxTokenAttempts {
			return nil, fail(KindPersistence).With("operation", "CreateResetToken").Wrap(err)
		}
	}
}

// release drops the rate-limit marker after a server-side failure so the
// user is not locked out for an error that was not theirs.
func (s *PasswordResetService) release(ctx context.Context, email string) {
	if err := s.limiter.Delete(ctx, email); err != nil {
		logging.LogError(ctx, s.log, "rate limit release failed", err)
	}
}

// ConfirmReset redeems token and sets password.
//
// Token lookup, password update, consumption, sibling cleanup and session
// revocation run in one transaction: any failure rolls everything back and
// the token stays redeemable. The owner's row is locked before any token
// row, so concurrent confirms of sibling tokens queue on the owner instead
// of deadlocking on each other's tokens.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, token, password string) error {
	if password == "" {
		return fail(KindMissingPassword).Errorf("password is required")
	}
	if v := s.policy.Validate(password, passwords.Attributes{}); len(v) > 0 {
		return fail(KindWeakPassword).With(ViolationsKey, v).Errorf("password validation failed")
	}
	if token == "" {
		return fail(KindInvalidOrExpiredTok).Errorf("empty reset token")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fail(KindInternal).With("operation", "Hash").Wrap(err)
	}

	var (
		userID  string
		revoked int64
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.repomanager.ResetTokens(tx)
		users := s.repomanager.Users(tx)

		ownerID, err := tokens.OwnerOf(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fail(KindInvalidOrExpiredTok).Errorf("unknown reset token")
			}
			return fail(KindPersistence).With("operation", "OwnerOf").Wrap(err)
		}

		user, err := users.GetByIDForUpdate(ctx, ownerID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fail(KindInvalidOrExpiredTok).Errorf("reset token owner gone")
			}
			return fail(KindPersistence).With("operation", "GetByIDForUpdate").Wrap(err)
		}

		t, err := tokens.FindValid(ctx, token, s.now())
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fail(KindInvalidOrExpiredTok).Errorf("reset token not redeemable")
			}
			return fail(KindPersistence).With("operation", "FindValid").Wrap(err)
		}
		userID = t.UserID

		attrs := passwords.Attributes{Email: user.Email, FirstName: user.FirstName, LastName: user.LastName}
		if v := s.policy.Validate(password, attrs); len(v) > 0 {
			return fail(KindWeakPassword).With(ViolationsKey, v).Errorf("password validation failed")
		}

		if err := users.UpdatePassword(ctx, user.ID, hash); err != nil {
			return fail(KindPersistence).With("operation", "UpdatePassword").Wrap(err)
		}
		if err := tokens.MarkUsed(ctx, t.ID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fail(KindInvalidOrExpiredTok).Errorf("reset token already used")
			}
			return fail(KindPersistence).With("operation", "MarkUsed").Wrap(err)
		}
		if _, err := tokens.DeleteUnusedForOwner(ctx, user.ID, t.ID); err != nil {
			return fail(KindPersistence).With("operation", "DeleteUnusedForOwner").Wrap(err)
		}
		if revoked, err = s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, user.ID); err != nil {
			return fail(KindPersistence).With("operation", "DeleteByUser").Wrap(err)
		}
		return nil
	})
	if err != nil {
		return asPersistence(err)
	}

	s.log.Info(ctx, "password reset completed", "user_id", userID, "sessions_revoked", revoked)
	return nil
}

// PurgeExpired deletes reset tokens and refresh-token ledger entries whose
// expiry has passed.
func (s *PasswordResetService) PurgeExpired(ctx context.Context) (resetTokens, refreshTokens int64, err error) {
	now := s.now()

	resetTokens, err = s.repomanager.ResetTokens(s.db).DeleteExpired(ctx, now)
	if err != nil {
		return 0, 0, fail(KindPersistence).With("operation", "DeleteExpiredResetTokens").Wrap(err)
	}
	refreshTokens, err = s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, now)
	if err != nil {
		return resetTokens, 0, fail(KindPersistence).With("operation", "DeleteExpiredRefreshTokens").Wrap(err)
	}

	s.log.Info(ctx, "expired tokens purged", "reset_tokens", resetTokens, "refresh_tokens", refreshTokens)
	return resetTokens, refreshTokens, nil
}
