package service

import (
	"testing"
	"time"

	"coscribe/internal/document/model"
	"coscribe/internal/document/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	removed []string
}

func (f *fakeRelay) RemoveDocument(docID string) {
	f.removed = append(f.removed, docID)
}

func newTestService(t *testing.T) (*DocumentService, sqlmock.Sqlmock, *fakeRelay, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	relay := &fakeRelay{}
	svc := NewDocumentService(repository.NewDocumentRepository(db), relay, "http://localhost:8080")
	return svc, mock, relay, func() { db.Close() }
}

func docColumns() []string {
	return []string{"id", "title", "content", "owner_id", "created_at", "updated_at"}
}

func expectGetByID(mock sqlmock.Sqlmock, docID, title, content, ownerID string, collaborators ...string) {
	now := time.Now()
	mock.ExpectQuery("SELECT id, title, content, owner_id, created_at, updated_at FROM documents WHERE id").
		WithArgs(docID).
		WillReturnRows(sqlmock.NewRows(docColumns()).AddRow(docID, title, content, ownerID, now, now))

	collabRows := sqlmock.NewRows([]string{"user_id"})
	for _, c := range collaborators {
		collabRows.AddRow(c)
	}
	mock.ExpectQuery("SELECT user_id FROM collaborators WHERE document_id").
		WithArgs(docID).
		WillReturnRows(collabRows)
}

func TestCreateDocumentRejectsEmptyFields(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	_, err := svc.CreateDocument("u1", "  ", "v1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateDocument("u1", "Spec", "\n\t ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.NoError(t, mock.ExpectationsWereMet(), "no write may happen on invalid input")
}

func TestCreateDocumentUnknownUser(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	mock.ExpectQuery("SELECT 1 FROM users WHERE id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := svc.CreateDocument("ghost", "Spec", "v1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDocument(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery("SELECT 1 FROM users WHERE id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(sqlmock.AnyArg(), "Spec", "v1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	doc, err := svc.CreateDocument("u1", "Spec", "v1")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "u1", doc.OwnerID)
	assert.Equal(t, []string{}, doc.Collaborators)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentDeniedForStranger(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	expectGetByID(mock, "d1", "Spec", "v1", "u1", "u2")

	_, err := svc.GetDocument("u3", "d1")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentAllowsCollaborator(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	expectGetByID(mock, "d1", "Spec", "v1", "u1", "u2")

	doc, err := svc.GetDocument("u2", "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppendsExactlyOneHistoryEntry(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	expectGetByID(mock, "d1", "Spec", "v1", "u1", "u2")

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE documents SET title").
		WithArgs("Spec", "v2", "d1").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectExec("INSERT INTO document_history").
		WithArgs("d1", "u2", "v2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	doc, err := svc.UpdateDocument("u2", "d1", "Spec", "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", doc.Content, "last write fully replaces content")
	assert.Equal(t, "u1", doc.OwnerID, "owner never changes on update")
	assert.NoError(t, mock.ExpectationsWereMet(), "history snapshot must equal the persisted content")
}

func TestUpdateDeniedForStrangerWritesNothing(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	expectGetByID(mock, "d1", "Spec", "v1", "u1")

	_, err := svc.UpdateDocument("u3", "d1", "Spec", "v2")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRejectsEmptyContentBeforeWrite(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	expectGetByID(mock, "d1", "Spec", "v1", "u1")

	_, err := svc.UpdateDocument("u1", "d1", "Spec", "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteOwnerOnly(t *testing.T) {
	svc, mock, relay, done := newTestService(t)
	defer done()

	// A collaborator cannot delete.
	expectGetByID(mock, "d1", "Spec", "v1", "u1", "u2")
	err := svc.DeleteDocument("u2", "d1")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Empty(t, relay.removed)

	// The owner can; the room is closed afterwards.
	expectGetByID(mock, "d1", "Spec", "v1", "u1", "u2")
	mock.ExpectExec("DELETE FROM documents WHERE id").
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM collaborators WHERE document_id").
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.DeleteDocument("u1", "d1"))
	assert.Equal(t, []string{"d1"}, relay.removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddCollaborator(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	// Non-owner may not invite.
	expectGetByID(mock, "d1", "Spec", "v1", "u1", "u2")
	err := svc.AddCollaborator("u2", "d1", "friend@example.com")
	assert.ErrorIs(t, err, ErrForbidden)

	// Unknown email resolves to NotFound.
	expectGetByID(mock, "d1", "Spec", "v1", "u1")
	mock.ExpectQuery("SELECT id FROM users WHERE email").
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	err = svc.AddCollaborator("u1", "d1", "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	// Known user is added idempotently.
	expectGetByID(mock, "d1", "Spec", "v1", "u1")
	mock.ExpectQuery("SELECT id FROM users WHERE email").
		WithArgs("friend@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u2"))
	mock.ExpectExec("INSERT INTO collaborators").
		WithArgs("d1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, svc.AddCollaborator("u1", "d1", "friend@example.com"))

	// Inviting the owner is a no-op, not an error.
	expectGetByID(mock, "d1", "Spec", "v1", "u1")
	mock.ExpectQuery("SELECT id FROM users WHERE email").
		WithArgs("owner@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	require.NoError(t, svc.AddCollaborator("u1", "d1", "owner@example.com"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueInvite(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	// Only the owner can mint tokens.
	expectGetByID(mock, "d1", "Spec", "v1", "u1", "u2")
	_, err := svc.IssueInvite("u2", "d1")
	assert.ErrorIs(t, err, ErrForbidden)

	expectGetByID(mock, "d1", "Spec", "v1", "u1")
	mock.ExpectExec("INSERT INTO invite_tokens").
		WithArgs(sqlmock.AnyArg(), "d1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	link, err := svc.IssueInvite("u1", "d1")
	require.NoError(t, err)
	assert.Contains(t, link, "http://localhost:8080/invite/")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeneratedTokensAreLongAndUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		token, err := generateToken()
		require.NoError(t, err)
		assert.Len(t, token, 40, "20 random bytes hex-encoded")
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestRedeemInvite(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	// Unknown token.
	mock.ExpectQuery("FROM invite_tokens WHERE token").
		WithArgs("bogus").
		WillReturnRows(sqlmock.NewRows([]string{"token", "document_id", "created_by", "created_at"}))
	_, err := svc.RedeemInvite("u2", "bogus")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Token whose document has since been deleted.
	now := time.Now()
	mock.ExpectQuery("FROM invite_tokens WHERE token").
		WithArgs("orphan").
		WillReturnRows(sqlmock.NewRows([]string{"token", "document_id", "created_by", "created_at"}).
			AddRow("orphan", "gone", "u1", now))
	mock.ExpectQuery("SELECT id, title, content, owner_id, created_at, updated_at FROM documents WHERE id").
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows(docColumns()))
	_, err = svc.RedeemInvite("u2", "orphan")
	assert.ErrorIs(t, err, ErrNotFound)

	// First redemption adds the collaborator.
	mock.ExpectQuery("FROM invite_tokens WHERE token").
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"token", "document_id", "created_by", "created_at"}).
			AddRow("tok", "d1", "u1", now))
	expectGetByID(mock, "d1", "Spec", "v1", "u1")
	mock.ExpectExec("INSERT INTO collaborators").
		WithArgs("d1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	docID, err := svc.RedeemInvite("u2", "tok")
	require.NoError(t, err)
	assert.Equal(t, "d1", docID)

	// Second redemption by the same user is a no-op with the same result.
	mock.ExpectQuery("FROM invite_tokens WHERE token").
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"token", "document_id", "created_by", "created_at"}).
			AddRow("tok", "d1", "u1", now))
	expectGetByID(mock, "d1", "Spec", "v1", "u1", "u2")
	docID, err = svc.RedeemInvite("u2", "tok")
	require.NoError(t, err)
	assert.Equal(t, "d1", docID)

	// The owner redeeming their own link changes nothing.
	mock.ExpectQuery("FROM invite_tokens WHERE token").
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"token", "document_id", "created_by", "created_at"}).
			AddRow("tok", "d1", "u1", now))
	expectGetByID(mock, "d1", "Spec", "v1", "u1", "u2")
	docID, err = svc.RedeemInvite("u1", "tok")
	require.NoError(t, err)
	assert.Equal(t, "d1", docID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHistoryRequiresReadAccess(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	expectGetByID(mock, "d1", "Spec", "v2", "u1")
	_, err := svc.GetHistory("u3", "d1")
	assert.ErrorIs(t, err, ErrAccessDenied)

	now := time.Now()
	expectGetByID(mock, "d1", "Spec", "v2", "u1", "u2")
	mock.ExpectQuery("FROM document_history WHERE document_id").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "editor_id", "content_snapshot", "created_at"}).
			AddRow(2, "d1", "u2", "v2", now).
			AddRow(1, "d1", "u1", "v1", now.Add(-time.Minute)))

	entries, err := svc.GetHistory("u2", "d1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "v2", entries[0].ContentSnapshot, "newest snapshot first")
	assert.Equal(t, "u2", entries[0].EditorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncUserValidatesInput(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	err := svc.SyncUser(model.User{ID: "", Email: "a@b.c"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "a@b.c", "Ada", "L").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, svc.SyncUser(model.User{ID: "u1", Email: "a@b.c", FirstName: "Ada", LastName: "L"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
