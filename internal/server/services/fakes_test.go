package services

import (
	"context"
	"database/sql"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/wbcms/internal/common"
	"github.com/dmitrijs2005/wbcms/internal/dbx"
	"github.com/dmitrijs2005/wbcms/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/wbcms/internal/server/repositories/refreshtokens"
	resettokensrepo "github.com/dmitrijs2005/wbcms/internal/server/repositories/resettokens"
	usersrepo "github.com/dmitrijs2005/wbcms/internal/server/repositories/users"
	"github.com/samber/oops"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	require.Error(t, err)
	_, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	require.Equal(t, want, KindOf(err), "error: %v", err)
}

// callLog records repository calls across fakes in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// fakeUsersRepo is an in-memory users.Repository.
type fakeUsersRepo struct {
	log     *callLog
	mu      sync.Mutex
	byID    map[string]*models.User
	nextID  int
	failGet error
	failSet error
	failNew error
}

func newFakeUsers(users ...*models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{byID: map[string]*models.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNew != nil {
		return nil, f.failNew
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	u.ID = "u-" + strconv.Itoa(f.nextID)
	u.CreatedAt = time.Now()
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	f.log.add("lock user " + id)
	return f.GetByID(ctx, id)
}

func (f *fakeUsersRepo) UpdatePassword(_ context.Context, id string, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet != nil {
		return f.failSet
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsersRepo) hash(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].PasswordHash
}

// fakeRefreshRepo is an in-memory refreshtokens.Repository.
type fakeRefreshRepo struct {
	mu         sync.Mutex
	rows       map[string]models.RefreshToken
	createErr  error
	findErr    error
	delUserErr error
}

func newFakeRefresh() *fakeRefreshRepo {
	return &fakeRefreshRepo{rows: map[string]models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(_ context.Context, id, userID string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.rows[id] = models.RefreshToken{ID: id, UserID: userID, Expires: expires}
	return nil
}

func (f *fakeRefreshRepo) Find(_ context.Context, id string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	rt, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rt, nil
}

func (f *fakeRefreshRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeRefreshRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delUserErr != nil {
		return 0, f.delUserErr
	}
	var n int64
	for id, rt := range f.rows {
		if rt.UserID == userID {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, rt := range f.rows {
		if !now.Before(rt.Expires) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshRepo) countFor(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rt := range f.rows {
		if rt.UserID == userID {
			n++
		}
	}
	return n
}

// fakeResetRepo is an in-memory resettokens.Repository. It does not model
// transactions; rollback behaviour is asserted through sqlmock expectations.
type fakeResetRepo struct {
	log       *callLog
	mu        sync.Mutex
	rows      []*models.PasswordResetToken
	createErr []error
	findErr   error
	markErr   error
}

func (f *fakeResetRepo) Create(_ context.Context, userID, token string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErr) > 0 {
		err := f.createErr[0]
		f.createErr = f.createErr[1:]
		return nil, err
	}
	t := &models.PasswordResetToken{ID: int64(len(f.rows) + 1), UserID: userID, Token: token, ExpiresAt: expiresAt}
	f.rows = append(f.rows, t)
	cp := *t
	return &cp, nil
}

func (f *fakeResetRepo) OwnerOf(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.Token == token {
			return t.UserID, nil
		}
	}
	return "", common.ErrorNotFound
}

func (f *fakeResetRepo) FindValid(_ context.Context, token string, now time.Time) (*models.PasswordResetToken, error) {
	f.log.add("lock token " + token)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, t := range f.rows {
		if t.Token == token && t.Redeemable(now) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeResetRepo) MarkUsed(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	for _, t := range f.rows {
		if t.ID == id && !t.Used {
			t.Used = true
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeResetRepo) DeleteUnusedForOwner(_ context.Context, userID string, exceptID int64) (int64, error) {
	f.log.add("delete siblings of " + userID)
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.PasswordResetToken
	var n int64
	for _, t := range f.rows {
		if t.UserID == userID && !t.Used && t.ID != exceptID {
			n++
			continue
		}
		kept = append(kept, t)
	}
	f.rows = kept
	return n, nil
}

func (f *fakeResetRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.PasswordResetToken
	var n int64
	for _, t := range f.rows {
		if !now.Before(t.ExpiresAt) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	f.rows = kept
	return n, nil
}

func (f *fakeResetRepo) byToken(token string) *models.PasswordResetToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.Token == token {
			cp := *t
			return &cp
		}
	}
	return nil
}

type fakeRepoManager struct {
	u   *fakeUsersRepo
	r   *fakeRefreshRepo
	p   *fakeResetRepo
	log *callLog
}

func newFakeRepoManager(users ...*models.User) *fakeRepoManager {
	log := &callLog{}
	u := newFakeUsers(users...)
	u.log = log
	return &fakeRepoManager{u: u, r: newFakeRefresh(), p: &fakeResetRepo{log: log}, log: log}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) ResetTokens(dbx.DBTX) resettokensrepo.Repository     { return m.p }
