package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"docsync/internal/document/model"
	"docsync/pkg/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var docCols = []string{"id", "title", "content", "folder_id", "created_at", "updated_at"}

func newRepo(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewDocumentRepository(db), mock
}

func TestListFolders(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()
	mock.ExpectQuery("SELECT id, name, created_at FROM folders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).
			AddRow("f1", "Reports", now).
			AddRow("f2", "Notes", now))

	folders, err := repo.ListFolders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Folder{{ID: "f1", Name: "Reports", CreatedAt: now}, {ID: "f2", Name: "Notes", CreatedAt: now}}, folders)
}

func TestDeleteFolderReturnsDocumentIDs(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM documents WHERE folder_id = \\$1 RETURNING id").
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("d1").AddRow("d2"))
	mock.ExpectExec("DELETE FROM folders WHERE id = \\$1").
		WithArgs("f1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ids, err := repo.DeleteFolder(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, ids)
}

func TestDeleteMissingFolderRollsBack(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM documents").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("DELETE FROM folders").
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.DeleteFolder(context.Background(), "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGetDocumentNotFound(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WithArgs("d9").
		WillReturnRows(sqlmock.NewRows(docCols))

	_, err := repo.GetDocument(context.Background(), "d9")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCreateDocumentUnknownFolder(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs("d1", "Q1", "...", "f9").
		WillReturnError(&pq.Error{Code: fkViolation})

	_, err := repo.CreateDocument(context.Background(), model.Document{ID: "d1", Title: "Q1", Content: "...", FolderID: "f9"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Contains(t, err.Error(), "folder f9")
}

func TestCreateDocument(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs("d1", "Q1", "...", "f1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	d, err := repo.CreateDocument(context.Background(), model.Document{ID: "d1", Title: "Q1", Content: "...", FolderID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, now, d.CreatedAt)
	assert.Equal(t, "f1", d.FolderID)
}

func TestUpdateContent(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()
	mock.ExpectQuery("UPDATE documents SET content = \\$1").
		WithArgs("new", "d1").
		WillReturnRows(sqlmock.NewRows(docCols).AddRow("d1", "Q1", "new", "f1", now, now))

	d, err := repo.UpdateContent(context.Background(), "d1", "new")
	require.NoError(t, err)
	assert.Equal(t, "new", d.Content)

	mock.ExpectQuery("UPDATE documents").
		WithArgs("x", "gone").
		WillReturnRows(sqlmock.NewRows(docCols))
	_, err = repo.UpdateContent(context.Background(), "gone", "x")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteDocument(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec("DELETE FROM documents WHERE id = \\$1").
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeleteDocument(context.Background(), "d1"))

	mock.ExpectExec("DELETE FROM documents WHERE id = \\$1").
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.DeleteDocument(context.Background(), "d1"), apperror.ErrNotFound)
}

func TestSearchDocumentsEscapesPattern(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery("WHERE title ILIKE \\$1 OR content ILIKE \\$1").
		WithArgs(`%50\%\_off%`).
		WillReturnRows(sqlmock.NewRows(docCols))

	docs, err := repo.SearchDocuments(context.Background(), "50%_off")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestReplaceHistory(t *testing.T) {
	repo, mock := newRepo(t)
	entries := []model.HistoryEntry{{ID: "d2", Title: "B", Timestamp: 20}, {ID: "d1", Title: "A", Timestamp: 10}}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM history").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO history").WithArgs("d2", "B", int64(20)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO history").WithArgs("d1", "A", int64(10)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceHistory(context.Background(), entries))
}

func TestReplaceHistoryRollsBackOnFailure(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM history").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	assert.Error(t, repo.ReplaceHistory(context.Background(), nil))
}

func TestGetHistory(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery("SELECT document_id, title, visited_at FROM history").
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "title", "visited_at"}).AddRow("d1", "A", int64(7)))

	entries, err := repo.GetHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.HistoryEntry{{ID: "d1", Title: "A", Timestamp: 7}}, entries)
}
