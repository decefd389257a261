package model

import "time"

// Document is the persisted record. Content is an opaque serialized editor
// state; the server never interprets it. OwnerID is set at creation and
// never changes afterwards.
type Document struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	OwnerID       string    `json:"owner_id"`
	Collaborators []string  `json:"collaborators"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HistoryEntry is one row of the append-only snapshot ledger. Rows are
// written exactly once per accepted content update and never modified.
type HistoryEntry struct {
	ID              int64     `json:"id"`
	DocumentID      string    `json:"document_id"`
	EditorID        string    `json:"editor_id"`
	ContentSnapshot string    `json:"content_snapshot"`
	CreatedAt       time.Time `json:"created_at"`
}

// InviteToken grants collaborator status on redemption. Tokens do not
// expire and stay valid for repeat (idempotent) redemption.
type InviteToken struct {
	Token      string    `json:"token"`
	DocumentID string    `json:"document_id"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// User mirrors the identity records synced in from the external auth
// provider via the webhook.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type CreateDocRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type UpdateDocRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type InviteRequest struct {
	DocID             string `json:"document_id"`
	CollaboratorEmail string `json:"collaborator_email"`
}

type IssueInviteRequest struct {
	DocID string `json:"document_id"`
}

type IssueInviteResponse struct {
	InviteLink string `json:"invite_link"`
}

type RedeemInviteRequest struct {
	Token string `json:"token"`
}

type RedeemInviteResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
}

// WebhookUserRequest is the payload the auth provider posts when a user
// record is created or updated.
type WebhookUserRequest struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
