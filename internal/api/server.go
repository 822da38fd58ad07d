package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teamup-app/chat-service/internal/config"
	"github.com/teamup-app/chat-service/internal/database"
	"github.com/teamup-app/chat-service/internal/server"
	"github.com/teamup-app/chat-service/internal/stats"
)

// ChatAPI is the synchronous surface of the chat subsystem plus the
// websocket gateway endpoint. Everything it depends on is constructed
// once in main and passed in here.
type ChatAPI struct {
	log            *log.Logger
	db             database.ChatRepository
	cfg            *config.Config
	srv            *http.Server
	cs             *server.ChatServer
	stats          stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string
}

func NewChatAPI(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.ChatRepository, sp stats.StatsProvider, cfg *config.Config) *ChatAPI {
	s := &ChatAPI{
		log:            logger,
		db:             db,
		cfg:            cfg,
		cs:             cs,
		stats:          sp,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("DELETE /api/messages", s.authMiddleware(s.deleteMessage))
	mux.Handle("GET /api/admin/messages", s.authMiddleware(s.adminMiddleware(s.adminGetMessages)))
	mux.Handle("DELETE /api/admin/messages", s.authMiddleware(s.adminMiddleware(s.adminDeleteMessage)))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *ChatAPI) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *ChatAPI) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Println("server shutdown complete")
	return nil
}
