package repository

import (
	"database/sql"
	"time"

	"coscribe/internal/document/model"
	"coscribe/pkg/logger"
)

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	err := r.DB.QueryRow(`INSERT INTO documents (id, title, content, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at`,
		doc.ID, doc.Title, doc.Content, doc.OwnerID,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document %s: %v", doc.ID, err)
	}
	return err
}

// GetByID loads a document and its collaborator set. Returns sql.ErrNoRows
// when the document does not exist.
func (r *DocumentRepository) GetByID(docID string) (*model.Document, error) {
	var doc model.Document
	err := r.DB.QueryRow(`SELECT id, title, content, owner_id, created_at, updated_at FROM documents WHERE id = $1`,
		docID).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.OwnerID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to get document %s: %v", docID, err)
		}
		return nil, err
	}

	collabs, err := r.GetCollaborators(docID)
	if err != nil {
		return nil, err
	}
	doc.Collaborators = collabs
	return &doc, nil
}

func (r *DocumentRepository) GetCollaborators(docID string) ([]string, error) {
	rows, err := r.DB.Query(`SELECT user_id FROM collaborators WHERE document_id = $1 ORDER BY user_id`, docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get collaborators for doc %s: %v", docID, err)
		return nil, err
	}
	defer rows.Close()

	collabs := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		collabs = append(collabs, userID)
	}
	return collabs, rows.Err()
}

// UpdateWithHistory replaces title and content and appends the snapshot row
// in a single transaction, so a document update is never observable without
// its ledger entry. Returns the refreshed updated_at.
func (r *DocumentRepository) UpdateWithHistory(docID, editorID, title, content string) (time.Time, error) {
	var updatedAt time.Time

	tx, err := r.DB.Begin()
	if err != nil {
		logger.Sugar.Errorf("Failed to begin update tx for doc %s: %v", docID, err)
		return updatedAt, err
	}

	err = tx.QueryRow(`UPDATE documents SET title = $1, content = $2, updated_at = NOW() WHERE id = $3 RETURNING updated_at`,
		title, content, docID).Scan(&updatedAt)
	if err != nil {
		tx.Rollback()
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to update doc %s: %v", docID, err)
		}
		return updatedAt, err
	}

	_, err = tx.Exec(`INSERT INTO document_history (document_id, editor_id, content_snapshot, created_at) VALUES ($1, $2, $3, NOW())`,
		docID, editorID, content)
	if err != nil {
		tx.Rollback()
		logger.Sugar.Errorf("Failed to append history for doc %s: %v", docID, err)
		return updatedAt, err
	}

	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit update for doc %s: %v", docID, err)
		return updatedAt, err
	}
	return updatedAt, nil
}

// Delete removes the document row only. History and invite tokens are kept
// as orphaned audit records on purpose.
func (r *DocumentRepository) Delete(docID string) error {
	if _, err := r.DB.Exec(`DELETE FROM documents WHERE id = $1`, docID); err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", docID, err)
		return err
	}
	if _, err := r.DB.Exec(`DELETE FROM collaborators WHERE document_id = $1`, docID); err != nil {
		logger.Sugar.Errorf("Failed to delete collaborators for doc %s: %v", docID, err)
		return err
	}
	return nil
}

func (r *DocumentRepository) ListByUser(userID string) ([]model.Document, error) {
	query := `
		SELECT id, title, content, owner_id, created_at, updated_at FROM documents WHERE owner_id = $1
		UNION
		SELECT d.id, d.title, d.content, d.owner_id, d.created_at, d.updated_at
		FROM documents d JOIN collaborators c ON d.id = c.document_id WHERE c.user_id = $1
		ORDER BY updated_at DESC`
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents for user %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.OwnerID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range docs {
		collabs, err := r.GetCollaborators(docs[i].ID)
		if err != nil {
			return nil, err
		}
		docs[i].Collaborators = collabs
	}
	return docs, nil
}

// AddCollaborator is idempotent: adding an existing collaborator is a no-op.
func (r *DocumentRepository) AddCollaborator(docID, userID string) error {
	_, err := r.DB.Exec(`INSERT INTO collaborators (document_id, user_id) VALUES ($1, $2)
		ON CONFLICT (document_id, user_id) DO NOTHING`, docID, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to add collaborator %s to doc %s: %v", userID, docID, err)
	}
	return err
}

// CheckAccess reports whether the user is the owner or a collaborator.
// This is the same predicate the relay consults before admitting a session
// to a room.
func (r *DocumentRepository) CheckAccess(docID, userID string) (bool, error) {
	var hasAccess bool
	err := r.DB.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM documents WHERE id = $1 AND owner_id = $2
			UNION
			SELECT 1 FROM collaborators WHERE document_id = $1 AND user_id = $2
		)`, docID, userID).Scan(&hasAccess)
	if err != nil {
		logger.Sugar.Errorf("Failed to check access for user %s on doc %s: %v", userID, docID, err)
	}
	return hasAccess, err
}

func (r *DocumentRepository) GetUserByEmail(email string) (string, error) {
	var userID string
	err := r.DB.QueryRow(`SELECT id FROM users WHERE email = $1`, email).Scan(&userID)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to get user by email %s: %v", email, err)
	}
	return userID, err
}

func (r *DocumentRepository) UserExists(userID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		logger.Sugar.Errorf("Failed to check user %s: %v", userID, err)
	}
	return exists, err
}

func (r *DocumentRepository) UpsertUser(u model.User) error {
	_, err := r.DB.Exec(`INSERT INTO users (id, email, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET email = $2, first_name = $3, last_name = $4`,
		u.ID, u.Email, u.FirstName, u.LastName)
	if err != nil {
		logger.Sugar.Errorf("Failed to upsert user %s: %v", u.ID, err)
	}
	return err
}

func (r *DocumentRepository) CreateInviteToken(token, docID, createdBy string) error {
	_, err := r.DB.Exec(`INSERT INTO invite_tokens (token, document_id, created_by, created_at) VALUES ($1, $2, $3, NOW())`,
		token, docID, createdBy)
	if err != nil {
		logger.Sugar.Errorf("Failed to create invite token for doc %s: %v", docID, err)
	}
	return err
}

// GetInviteToken returns sql.ErrNoRows for unknown tokens.
func (r *DocumentRepository) GetInviteToken(token string) (*model.InviteToken, error) {
	var t model.InviteToken
	err := r.DB.QueryRow(`SELECT token, document_id, created_by, created_at FROM invite_tokens WHERE token = $1`,
		token).Scan(&t.Token, &t.DocumentID, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to get invite token: %v", err)
		}
		return nil, err
	}
	return &t, nil
}

// GetHistory returns the snapshot ledger for a document, newest first. The
// serial id breaks ties between entries committed in the same instant.
func (r *DocumentRepository) GetHistory(docID string) ([]model.HistoryEntry, error) {
	rows, err := r.DB.Query(`SELECT id, document_id, editor_id, content_snapshot, created_at
		FROM document_history WHERE document_id = $1 ORDER BY created_at DESC, id DESC`, docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get history for doc %s: %v", docID, err)
		return nil, err
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.EditorID, &e.ContentSnapshot, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
