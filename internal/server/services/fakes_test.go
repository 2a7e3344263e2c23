package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/dmitrijs2005/seqsubmit/internal/dbx"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	samplesrepo "github.com/dmitrijs2005/seqsubmit/internal/server/repositories/samples"
	settingsrepo "github.com/dmitrijs2005/seqsubmit/internal/server/repositories/settings"
	usersrepo "github.com/dmitrijs2005/seqsubmit/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// newTxDB returns a real database used only for BEGIN/COMMIT around the
// fakes below.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- settings ---

type fakeSettingsRepo struct {
	mu        sync.Mutex
	rows      []models.Settings
	locks     int
	latestErr error
	createErr error
}

func (f *fakeSettingsRepo) Lock(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks++
	return nil
}

func (f *fakeSettingsRepo) Latest(ctx context.Context) (*models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	if len(f.rows) == 0 {
		return nil, common.ErrorNotFound
	}
	s := f.rows[len(f.rows)-1]
	s.RunningOptions = append([]string{}, s.RunningOptions...)
	return &s, nil
}

func (f *fakeSettingsRepo) Create(ctx context.Context, s *models.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	s.ID = int64(len(f.rows) + 1)
	s.CreatedAt = time.Now()
	f.rows = append(f.rows, *s)
	return nil
}

func (f *fakeSettingsRepo) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

func (f *fakeSettingsRepo) put(s models.Settings) {
	_ = f.Create(context.Background(), &s)
}

// --- samples ---

type fakeSamplesRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.Sample
	weekLocks []models.Week
	createErr error
	markErr   error
}

func newFakeSamplesRepo() *fakeSamplesRepo {
	return &fakeSamplesRepo{rows: map[string]*models.Sample{}}
}

func (f *fakeSamplesRepo) LockWeek(ctx context.Context, week models.Week) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.weekLocks = append(f.weekLocks, week)
	return nil
}

func (f *fakeSamplesRepo) between(from, to time.Time) []*models.Sample {
	var out []*models.Sample
	for _, s := range f.rows {
		if !s.Date.Before(from) && !s.Date.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrimaryKey < out[j].PrimaryKey })
	return out
}

func (f *fakeSamplesRepo) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.between(from, to)), nil
}

func (f *fakeSamplesRepo) PrimaryKeysBetween(ctx context.Context, from, to time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for _, s := range f.between(from, to) {
		keys = append(keys, s.PrimaryKey)
	}
	return keys, nil
}

func (f *fakeSamplesRepo) Create(ctx context.Context, s *models.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.rows[s.PrimaryKey]; ok {
		return common.ErrSlotTaken
	}
	cp := *s
	f.rows[s.PrimaryKey] = &cp
	return nil
}

func (f *fakeSamplesRepo) GetByPrimaryKey(ctx context.Context, pk string) (*models.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[pk]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSamplesRepo) List(ctx context.Context, email string) ([]*models.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Sample
	for _, s := range f.rows {
		if email == "" || s.Email == email {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrimaryKey < out[j].PrimaryKey })
	return out, nil
}

func (f *fakeSamplesRepo) ListBetween(ctx context.Context, from, to time.Time) ([]*models.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.between(from, to), nil
}

func (f *fakeSamplesRepo) MarkResults(ctx context.Context, pk string, fasta, gbk, zip bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	s, ok := f.rows[pk]
	if !ok {
		return common.ErrorNotFound
	}
	s.HasResultsFasta = s.HasResultsFasta || fasta
	s.HasResultsGbk = s.HasResultsGbk || gbk
	s.HasResultsZip = s.HasResultsZip || zip
	return nil
}

func (f *fakeSamplesRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// --- users ---

type fakeUsersRepo struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	nextID    int
	createErr error
	getErr    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("u%d", f.nextID)
	u.CreatedAt = time.Now()
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) ActivateByToken(ctx context.Context, tokenHash string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.ActivationToken != "" && u.ActivationToken == tokenHash {
			u.Activated = true
			u.ActivationToken = ""
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.User
	for _, u := range f.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *fakeUsersRepo) byEmail(email string) *models.User {
	u, err := f.GetByEmail(context.Background(), email)
	if err != nil {
		return nil
	}
	return u
}

// --- manager ---

type fakeRepoManager struct {
	users    *fakeUsersRepo
	samples  *fakeSamplesRepo
	settings *fakeSettingsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:    newFakeUsersRepo(),
		samples:  newFakeSamplesRepo(),
		settings: &fakeSettingsRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.users }
func (m *fakeRepoManager) Samples(db dbx.DBTX) samplesrepo.Repository   { return m.samples }
func (m *fakeRepoManager) Settings(db dbx.DBTX) settingsrepo.Repository { return m.settings }

