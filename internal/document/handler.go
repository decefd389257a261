package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"coscribe/internal/document/model"
	"coscribe/internal/document/service"
	"coscribe/middleware"
	"coscribe/pkg/logger"
)

type DocumentHandler struct {
	Service *service.DocumentService

	// WebhookSecret guards the user-sync endpoint; it is the only route not
	// behind JWT auth.
	WebhookSecret string
}

func NewDocumentHandler(svc *service.DocumentService, webhookSecret string) *DocumentHandler {
	return &DocumentHandler{Service: svc, WebhookSecret: webhookSecret}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleServiceError maps the service taxonomy onto HTTP status codes.
// Unknown errors are logged and collapsed to a generic 500 so internal
// detail never reaches the caller.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAccessDenied), errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		logger.Sugar.Errorf("Unhandled service error: %v", err)
		writeError(w, http.StatusInternalServerError, "Server error")
	}
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, _ := middleware.UserID(r)

	var req model.CreateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	doc, err := h.Service.CreateDocument(userID, req.Title, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		writeError(w, http.StatusBadRequest, "Missing docId parameter")
		return
	}
	userID, _ := middleware.UserID(r)

	doc, err := h.Service.GetDocument(userID, docID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, _ := middleware.UserID(r)

	docs, err := h.Service.GetDocuments(userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		writeError(w, http.StatusBadRequest, "Missing docId parameter")
		return
	}
	userID, _ := middleware.UserID(r)

	var req model.UpdateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	doc, err := h.Service.UpdateDocument(userID, docID, req.Title, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		writeError(w, http.StatusBadRequest, "Missing docId parameter")
		return
	}
	userID, _ := middleware.UserID(r)

	if err := h.Service.DeleteDocument(userID, docID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted successfully"})
}

func (h *DocumentHandler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, _ := middleware.UserID(r)

	var req model.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.Service.AddCollaborator(userID, req.DocID, req.CollaboratorEmail); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Collaborator added"})
}

func (h *DocumentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		writeError(w, http.StatusBadRequest, "Missing docId parameter")
		return
	}
	userID, _ := middleware.UserID(r)

	entries, err := h.Service.GetHistory(userID, docID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *DocumentHandler) IssueInvite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, _ := middleware.UserID(r)

	var req model.IssueInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	link, err := h.Service.IssueInvite(userID, req.DocID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.IssueInviteResponse{InviteLink: link})
}

func (h *DocumentHandler) RedeemInvite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, _ := middleware.UserID(r)

	var req model.RedeemInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	docID, err := h.Service.RedeemInvite(userID, req.Token)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.RedeemInviteResponse{
		Message:    "You are now a collaborator",
		DocumentID: docID,
	})
}

// UserWebhook receives user create/update events from the auth provider.
func (h *DocumentHandler) UserWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.WebhookSecret == "" || r.Header.Get("X-Webhook-Secret") != h.WebhookSecret {
		writeError(w, http.StatusUnauthorized, "Invalid webhook secret")
		return
	}

	var req model.WebhookUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.Service.SyncUser(model.User{
		ID:        req.ID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
