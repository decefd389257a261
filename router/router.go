package router

import (
	"database/sql"
	"net/http"
	"time"

	handler "coscribe/internal/document"
	"coscribe/internal/document/repository"
	"coscribe/internal/document/service"
	"coscribe/middleware"
	"coscribe/socket"

	"github.com/go-redis/redis/v8"
)

type Options struct {
	JWTSecret     string
	WebhookSecret string
	InviteBaseURL string

	// Redis may be nil, which disables rate limiting.
	Redis        *redis.Client
	RateLimitMax int
	RateLimitWin time.Duration
}

// Setup wires the repository, service, handlers, and websocket endpoint
// into one mux.
func Setup(db *sql.DB, hub *socket.Hub, opts Options) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.AuthMiddleware(opts.JWTSecret)
	limit := middleware.RateLimit(opts.Redis, opts.RateLimitMax, opts.RateLimitWin)

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserID(r)
		socket.ServeWs(hub, w, r, userID)
	})
	mux.Handle("/ws", auth(wsHandler))

	// REST API
	docRepo := repository.NewDocumentRepository(db)
	docService := service.NewDocumentService(docRepo, hub, opts.InviteBaseURL)
	docHandler := handler.NewDocumentHandler(docService, opts.WebhookSecret)

	mux.Handle("/api/documents/create", auth(limit(http.HandlerFunc(docHandler.CreateDocument))))
	mux.Handle("/api/documents/get", auth(http.HandlerFunc(docHandler.GetDocument)))
	mux.Handle("/api/documents/update", auth(http.HandlerFunc(docHandler.UpdateDocument)))
	mux.Handle("/api/documents/delete", auth(http.HandlerFunc(docHandler.DeleteDocument)))
	mux.Handle("/api/documents", auth(http.HandlerFunc(docHandler.GetDocuments)))
	mux.Handle("/api/documents/invite", auth(http.HandlerFunc(docHandler.AddCollaborator)))
	mux.Handle("/api/documents/history", auth(http.HandlerFunc(docHandler.GetHistory)))
	mux.Handle("/api/invites/create", auth(limit(http.HandlerFunc(docHandler.IssueInvite))))
	mux.Handle("/api/invites/redeem", auth(http.HandlerFunc(docHandler.RedeemInvite)))
	mux.Handle("/api/webhooks/user", http.HandlerFunc(docHandler.UserWebhook))

	return middleware.CORSMiddleware(mux)
}
