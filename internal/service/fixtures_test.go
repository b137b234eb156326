package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/pkg/storage"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	// One connection serialises concurrent transactions so expectations stay ordered.
	sqlxdb.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func expectCommits(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

var (
	testNow = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	studentCS = models.User{ID: "stu-1", FullName: "Asha Student", Role: models.RoleStudent, Department: models.DepartmentCS}
	officerCS = models.User{ID: "po-cs", FullName: "CS Officer", Role: models.RoleProgramOfficer, Department: models.DepartmentCS}
	officerSE = models.User{ID: "po-se", FullName: "SE Officer", Role: models.RoleProgramOfficer, Department: models.DepartmentSE}
	officerFn = models.User{ID: "po-fin", FullName: "Finance Officer", Role: models.RoleProgramOfficer, Department: models.DepartmentFin}
	adminUser = models.User{ID: "admin-1", FullName: "Root Admin", Role: models.RoleAdmin}
)

func actorOf(u models.User) models.Actor {
	return models.Actor{ID: u.ID, Name: u.FullName, Role: u.Role, Department: u.Department}
}

// directoryStub answers audience queries from a fixed user list.
type directoryStub struct {
	users []models.User
	err   error
}

func newDirectory() *directoryStub {
	return &directoryStub{users: []models.User{studentCS, officerCS, officerSE, officerFn, adminUser}}
}

func (d *directoryStub) ListByAudience(ctx context.Context, f models.AudienceFilter) ([]models.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	var out []models.User
	for _, u := range d.users {
		if matchesAudience(u, f) {
			out = append(out, u)
		}
	}
	return out, nil
}

func matchesAudience(u models.User, f models.AudienceFilter) bool {
	for _, id := range f.UserIDs {
		if id == u.ID {
			return true
		}
	}
	for _, r := range f.Roles {
		if r == u.Role {
			return true
		}
	}
	for _, rd := range f.RoleDepartments {
		if rd.Role == u.Role && rd.Department == u.Department {
			return true
		}
	}
	return false
}

type fileStoreStub struct {
	mu        sync.Mutex
	files     map[string]*models.File
	lastQuery models.FileFilter
	updateErr error
}

func newFileStore(files ...*models.File) *fileStoreStub {
	s := &fileStoreStub{files: make(map[string]*models.File)}
	for _, f := range files {
		s.files[f.ID] = f
	}
	return s
}

func (s *fileStoreStub) Insert(ctx context.Context, exec sqlx.ExtContext, file *models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *file
	s.files[file.ID] = &cp
	return nil
}

func (s *fileStoreStub) GetByID(ctx context.Context, id string) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *f
	cp.History = append(models.FileHistory(nil), f.History...)
	return &cp, nil
}

func (s *fileStoreStub) List(ctx context.Context, filter models.FileFilter) ([]models.File, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = filter
	var out []models.File
	for _, f := range s.files {
		out = append(out, *f)
	}
	return out, len(out), nil
}

func (s *fileStoreStub) UpdateWorkflow(ctx context.Context, exec sqlx.ExtContext, file *models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.files[file.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *file
	s.files[file.ID] = &cp
	return nil
}

func (s *fileStoreStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.files, id)
	return nil
}

type sequenceStub struct {
	mu  sync.Mutex
	seq int64
}

func (s *sequenceStub) Next(ctx context.Context, exec sqlx.ExtContext, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

type notificationWriterStub struct {
	mu    sync.Mutex
	items []*models.Notification
	err   error
}

func (s *notificationWriterStub) Create(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if n.ID == "" {
		n.ID = "n-" + n.Title
	}
	s.items = append(s.items, n)
	return nil
}

func (s *notificationWriterStub) last() *models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil
	}
	return s.items[len(s.items)-1]
}

type dispatcherStub struct {
	mu         sync.Mutex
	deliveries []models.Delivery
}

func (d *dispatcherStub) Dispatch(ctx context.Context, delivery models.Delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, delivery)
}

func (d *dispatcherStub) byEvent(event models.EventName) []models.Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.Delivery
	for _, del := range d.deliveries {
		if del.Event == event {
			out = append(out, del)
		}
	}
	return out
}

type blobStub struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newBlobStub() *blobStub {
	return &blobStub{objects: make(map[string][]byte)}
}

func (b *blobStub) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *blobStub) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *blobStub) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(b.objects, key)
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
