package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/wbcms/internal/common"
	"github.com/dmitrijs2005/wbcms/internal/cryptox"
	"github.com/dmitrijs2005/wbcms/internal/logging"
	"github.com/dmitrijs2005/wbcms/internal/server/auth"
	"github.com/dmitrijs2005/wbcms/internal/server/config"
	"github.com/dmitrijs2005/wbcms/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "k"
	cfg.AccessTokenValidityDuration = time.Hour
	cfg.RefreshTokenValidityDuration = 2 * time.Hour
	return cfg
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := cryptox.NewArgon2idHasher().Hash(password)
	require.NoError(t, err)
	return h
}

func student(t *testing.T, password string) *models.User {
	t.Helper()
	sn := "2100712345"
	return &models.User{
		ID:            "u-a",
		Email:         "a@students.mak.ac.ug",
		PasswordHash:  mustHash(t, password),
		Role:          models.RoleStudent,
		FirstName:     "Amina",
		LastName:      "Nabirye",
		StudentNumber: &sn,
	}
}

func TestLogin_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager(student(t, "river-mango-42"))
	s := NewUserService(db, rm, testConfig(), logging.Nop{})

	res, err := s.Login(context.Background(), "  A@Students.Mak.ac.ug ", "river-mango-42")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, "u-a", res.User.ID)
	assert.Equal(t, 1, rm.r.countFor("u-a"), "refresh jti recorded")

	claims, err := s.Authenticate(context.Background(), res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "a@students.mak.ac.ug", claims.Email)
}

func TestLogin_MissingCredentials(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := NewUserService(db, newFakeRepoManager(), testConfig(), logging.Nop{})

	_, err := s.Login(context.Background(), "", "x")
	requireKind(t, err, KindMissingCredentials)

	_, err = s.Login(context.Background(), "a@students.mak.ac.ug", "")
	requireKind(t, err, KindMissingCredentials)
}

func TestLogin_UnknownAndWrongPasswordLookAlike(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager(student(t, "river-mango-42"))
	s := NewUserService(db, rm, testConfig(), logging.Nop{})

	_, errUnknown := s.Login(context.Background(), "ghost@students.mak.ac.ug", "river-mango-42")
	_, errWrong := s.Login(context.Background(), "a@students.mak.ac.ug", "not-the-password")

	requireKind(t, errUnknown, KindInvalidCredentials)
	requireKind(t, errWrong, KindInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
	assert.Equal(t, 0, rm.r.countFor("u-a"))
}

func TestLogin_StoreFailure(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	rm.u.failGet = errBoom{}
	s := NewUserService(db, rm, testConfig(), logging.Nop{})

	_, err := s.Login(context.Background(), "a@students.mak.ac.ug", "pw")
	requireKind(t, err, KindPersistence)
	assert.ErrorIs(t, err, errBoom{})
}

func TestLogin_RefreshLedgerFailure(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager(student(t, "river-mango-42"))
	rm.r.createErr = errBoom{}
	s := NewUserService(db, rm, testConfig(), logging.Nop{})

	_, err := s.Login(context.Background(), "a@students.mak.ac.ug", "river-mango-42")
	requireKind(t, err, KindPersistence)
}

func TestLogin_UpgradesLegacyBcrypt(t *testing.T) {
	db, _ := newSQLMockDB(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte("river-mango-42"), bcrypt.MinCost)
	require.NoError(t, err)

	u := student(t, "unused")
	u.PasswordHash = string(legacy)
	rm := newFakeRepoManager(u)
	s := NewUserService(db, rm, testConfig(), logging.Nop{})

	_, err = s.Login(context.Background(), "a@students.mak.ac.ug", "river-mango-42")
	require.NoError(t, err)
	assert.False(t, cryptox.IsBcrypt(rm.u.hash("u-a")), "hash re-encoded as argon2id")

	_, err = s.Login(context.Background(), "a@students.mak.ac.ug", "river-mango-42")
	assert.NoError(t, err, "upgraded hash still verifies")
}

func TestSignup_RoleFromDomain(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := NewUserService(db, newFakeRepoManager(), testConfig(), logging.Nop{})

	st, err := s.Signup(context.Background(), NewUser{Email: "B@students.mak.ac.ug", Password: "river-mango-42", FirstName: "Brian"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, st.Role)
	assert.Equal(t, "b@students.mak.ac.ug", st.Email)
	assert.NotEqual(t, "river-mango-42", st.PasswordHash)

	lec, err := s.Signup(context.Background(), NewUser{Email: "okello@cit.mak.ac.ug", Password: "river-mango-42", Role: models.RoleRegistrar})
	require.NoError(t, err)
	assert.Equal(t, models.RoleLecturer, lec.Role, "client cannot choose role")
}

func TestSignup_Rejections(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager(student(t, "river-mango-42"))
	s := NewUserService(db, rm, testConfig(), logging.Nop{})
	ctx := context.Background()

	_, err := s.Signup(ctx, NewUser{Email: "x@gmail.com", Password: "river-mango-42"})
	requireKind(t, err, KindInvalidEmailDomain)

	_, err = s.Signup(ctx, NewUser{Email: "x@evilstudents.mak.ac.ug", Password: "river-mango-42"})
	requireKind(t, err, KindInvalidEmailDomain)

	_, err = s.Signup(ctx, NewUser{Email: "", Password: "river-mango-42"})
	requireKind(t, err, KindValidation)

	_, err = s.Signup(ctx, NewUser{Email: "not an email", Password: "river-mango-42"})
	requireKind(t, err, KindValidation)

	_, err = s.Signup(ctx, NewUser{Email: "a@students.mak.ac.ug", Password: "river-mango-42"})
	requireKind(t, err, KindAlreadyExists)

	_, err = s.Signup(ctx, NewUser{Email: "c@students.mak.ac.ug", Password: "12345678"})
	requireKind(t, err, KindWeakPassword)
	assert.Contains(t, Violations(err), "This password is entirely numeric.")
}

func TestCreateUser_Registrar(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := NewUserService(db, newFakeRepoManager(), testConfig(), logging.Nop{})
	reg := "  "

	u, err := s.CreateUser(context.Background(), NewUser{
		Email: "registrar@mak.ac.ug", Password: "river-mango-42", Role: models.RoleRegistrar, RegistrationNumber: &reg,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleRegistrar, u.Role)
	assert.Nil(t, u.RegistrationNumber, "blank identifiers stored as NULL")

	_, err = s.CreateUser(context.Background(), NewUser{Email: "x@mak.ac.ug", Password: "river-mango-42", Role: "admin"})
	requireKind(t, err, KindValidation)
}

func TestRefreshToken_Rotates(t *testing.T) {
	db, mock := newSQLMockDB(t)
	u := student(t, "river-mango-42")
	rm := newFakeRepoManager(u)
	s := NewUserService(db, rm, testConfig(), logging.Nop{})

	res, err := s.Login(context.Background(), u.Email, "river-mango-42")
	require.NoError(t, err)

	// Profile completed after login; the refreshed pair must carry it.
	rm.u.byID["u-a"].HasProfile = true

	mock.ExpectBegin()
	mock.ExpectCommit()

	next, err := s.RefreshToken(context.Background(), res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshID, next.Tokens.RefreshID)
	assert.Equal(t, 1, rm.r.countFor("u-a"), "old jti replaced")

	claims, err := s.Authenticate(context.Background(), next.Tokens.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.HasProfile)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = s.RefreshToken(context.Background(), res.Tokens.RefreshToken)
	requireKind(t, err, KindInvalidSession)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshToken_RejectsAccessAndGarbage(t *testing.T) {
	db, _ := newSQLMockDB(t)
	u := student(t, "river-mango-42")
	s := NewUserService(db, newFakeRepoManager(u), testConfig(), logging.Nop{})

	res, err := s.Login(context.Background(), u.Email, "river-mango-42")
	require.NoError(t, err)

	_, err = s.RefreshToken(context.Background(), res.Tokens.AccessToken)
	requireKind(t, err, KindInvalidSession)

	_, err = s.RefreshToken(context.Background(), "garbage")
	requireKind(t, err, KindInvalidSession)

	_, err = s.RefreshToken(context.Background(), "")
	requireKind(t, err, KindValidation)
}

func TestRefreshToken_LedgerError(t *testing.T) {
	db, mock := newSQLMockDB(t)
	u := student(t, "river-mango-42")
	rm := newFakeRepoManager(u)
	s := NewUserService(db, rm, testConfig(), logging.Nop{})

	res, err := s.Login(context.Background(), u.Email, "river-mango-42")
	require.NoError(t, err)

	rm.r.findErr = errBoom{}
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = s.RefreshToken(context.Background(), res.Tokens.RefreshToken)
	requireKind(t, err, KindPersistence)
}

func TestRefreshToken_CommitFailure(t *testing.T) {
	db, mock := newSQLMockDB(t)
	u := student(t, "river-mango-42")
	s := NewUserService(db, newFakeRepoManager(u), testConfig(), logging.Nop{})

	res, err := s.Login(context.Background(), u.Email, "river-mango-42")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("commit lost"))

	_, err = s.RefreshToken(context.Background(), res.Tokens.RefreshToken)
	requireKind(t, err, KindPersistence)
}

func TestAuthenticate_Expired(t *testing.T) {
	db, _ := newSQLMockDB(t)
	u := student(t, "river-mango-42")
	s := NewUserService(db, newFakeRepoManager(u), testConfig(), logging.Nop{})

	issued := time.Now().Add(-2 * time.Hour)
	s.codec = auth.NewCodec([]byte("k"), time.Hour, 2*time.Hour).WithClock(func() time.Time { return issued })
	res, err := s.Login(context.Background(), u.Email, "river-mango-42")
	require.NoError(t, err)

	s.codec.WithClock(time.Now)
	_, err = s.Authenticate(context.Background(), res.Tokens.AccessToken)
	requireKind(t, err, KindInvalidSession)
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	_, err = s.Authenticate(context.Background(), "")
	requireKind(t, err, KindInvalidSession)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindRateLimited, KindOf(fail(KindRateLimited).Errorf("x")))
	assert.Nil(t, Violations(errors.New("plain")))
}
