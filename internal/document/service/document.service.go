package service

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"coscribe/internal/document/model"
	"coscribe/internal/document/repository"

	"github.com/google/uuid"
)

// Relay is the slice of the websocket hub the service needs: kicking every
// live session out of a room once its document is deleted.
type Relay interface {
	RemoveDocument(docID string)
}

type DocumentService struct {
	Repo          *repository.DocumentRepository
	Hub           Relay
	InviteBaseURL string
}

func NewDocumentService(repo *repository.DocumentRepository, hub Relay, inviteBaseURL string) *DocumentService {
	return &DocumentService{Repo: repo, Hub: hub, InviteBaseURL: strings.TrimRight(inviteBaseURL, "/")}
}

func (s *DocumentService) CreateDocument(userID, title, content string) (*model.Document, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return nil, ErrInvalidInput
	}

	exists, err := s.Repo.UserExists(userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	doc := &model.Document{
		ID:            uuid.NewString(),
		Title:         title,
		Content:       content,
		OwnerID:       userID,
		Collaborators: []string{},
	}
	if err := s.Repo.Create(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) GetDocument(userID, docID string) (*model.Document, error) {
	doc, err := s.Repo.GetByID(docID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canRead(doc, userID) {
		return nil, ErrAccessDenied
	}
	return doc, nil
}

func (s *DocumentService) GetDocuments(userID string) ([]model.Document, error) {
	return s.Repo.ListByUser(userID)
}

// UpdateDocument replaces title and content wholesale (last-writer-wins)
// and appends exactly one history snapshot in the same transaction.
func (s *DocumentService) UpdateDocument(userID, docID, title, content string) (*model.Document, error) {
	doc, err := s.Repo.GetByID(docID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canRead(doc, userID) {
		return nil, ErrAccessDenied
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return nil, ErrInvalidInput
	}

	updatedAt, err := s.Repo.UpdateWithHistory(docID, userID, title, content)
	if err == sql.ErrNoRows {
		// Deleted between the read and the write.
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.Title = title
	doc.Content = content
	doc.UpdatedAt = updatedAt
	return doc, nil
}

func (s *DocumentService) DeleteDocument(userID, docID string) error {
	doc, err := s.Repo.GetByID(docID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if doc.OwnerID != userID {
		return ErrAccessDenied
	}

	if err := s.Repo.Delete(docID); err != nil {
		return err
	}
	if s.Hub != nil {
		s.Hub.RemoveDocument(docID)
	}
	return nil
}

// AddCollaborator is the owner's invite-by-email flow. Adding someone who
// already collaborates, or the owner themselves, is a no-op.
func (s *DocumentService) AddCollaborator(userID, docID, email string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(docID) == "" {
		return ErrInvalidInput
	}

	doc, err := s.Repo.GetByID(docID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if doc.OwnerID != userID {
		return ErrForbidden
	}

	targetID, err := s.Repo.GetUserByEmail(email)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if targetID == doc.OwnerID {
		return nil
	}
	return s.Repo.AddCollaborator(docID, targetID)
}

// IssueInvite mints a shareable invite link. The token carries 160 bits of
// entropy and stays valid until redeemed; redemption itself is idempotent.
func (s *DocumentService) IssueInvite(userID, docID string) (string, error) {
	if strings.TrimSpace(docID) == "" {
		return "", ErrInvalidInput
	}

	doc, err := s.Repo.GetByID(docID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if doc.OwnerID != userID {
		return "", ErrForbidden
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := s.Repo.CreateInviteToken(token, docID, userID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/invite/%s", s.InviteBaseURL, token), nil
}

// RedeemInvite turns a token into collaborator membership for the caller.
func (s *DocumentService) RedeemInvite(userID, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}

	invite, err := s.Repo.GetInviteToken(token)
	if err == sql.ErrNoRows {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}

	doc, err := s.Repo.GetByID(invite.DocumentID)
	if err == sql.ErrNoRows {
		// Document deleted after the token was issued.
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	if userID == doc.OwnerID || contains(doc.Collaborators, userID) {
		return doc.ID, nil
	}
	if err := s.Repo.AddCollaborator(doc.ID, userID); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (s *DocumentService) GetHistory(userID, docID string) ([]model.HistoryEntry, error) {
	doc, err := s.Repo.GetByID(docID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canRead(doc, userID) {
		return nil, ErrAccessDenied
	}
	return s.Repo.GetHistory(docID)
}

// SyncUser upserts the identity record pushed by the auth provider webhook.
func (s *DocumentService) SyncUser(u model.User) error {
	if strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.Email) == "" {
		return ErrInvalidInput
	}
	return s.Repo.UpsertUser(u)
}

func canRead(doc *model.Document, userID string) bool {
	return doc.OwnerID == userID || contains(doc.Collaborators, userID)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func generateToken() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
