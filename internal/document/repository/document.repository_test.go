package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewDocumentRepository(db), mock, func() { db.Close() }
}

func TestUpdateWithHistoryRollsBackWhenHistoryInsertFails(t *testing.T) {
	repo, mock, done := newTestRepo(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE documents SET title").
		WithArgs("Spec", "v2", "d1").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectExec("INSERT INTO document_history").
		WithArgs("d1", "u1", "v2").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.UpdateWithHistory("d1", "u1", "Spec", "v2")
	assert.Error(t, err, "a document update without its ledger entry must not commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWithHistoryMissingDocument(t *testing.T) {
	repo, mock, done := newTestRepo(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE documents SET title").
		WithArgs("Spec", "v2", "gone").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))
	mock.ExpectRollback()

	_, err := repo.UpdateWithHistory("gone", "u1", "Spec", "v2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserReturnsMostRecentFirst(t *testing.T) {
	repo, mock, done := newTestRepo(t)
	defer done()

	now := time.Now()
	cols := []string{"id", "title", "content", "owner_id", "created_at", "updated_at"}
	mock.ExpectQuery("FROM documents WHERE owner_id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("d2", "Newer", "v1", "u1", now, now).
			AddRow("d1", "Older", "v1", "u2", now.Add(-time.Hour), now.Add(-time.Hour)))
	mock.ExpectQuery("SELECT user_id FROM collaborators WHERE document_id").
		WithArgs("d2").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectQuery("SELECT user_id FROM collaborators WHERE document_id").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))

	docs, err := repo.ListByUser("u1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d2", docs[0].ID)
	assert.Equal(t, []string{"u1"}, docs[1].Collaborators)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess(t *testing.T) {
	repo, mock, done := newTestRepo(t)
	defer done()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("d1", "u2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.CheckAccess("d1", "u2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
