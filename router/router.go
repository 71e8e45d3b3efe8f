package router

import (
	"database/sql"
	"net/http"

	"docsync/config"
	docHandler "docsync/internal/document"
	"docsync/internal/document/repository"
	"docsync/internal/document/service"
	"docsync/middleware"
	"docsync/socket"
)

func Setup(cfg *config.Config, db *sql.DB, hub *socket.Hub) http.Handler {
	docRepo := repository.NewDocumentRepository(db)
	docService := service.NewDocumentService(docRepo, hub)
	return Routes(cfg, docHandler.NewDocumentHandler(docService), hub)
}

// Routes builds the mux around an already wired handler.
func Routes(cfg *config.Config, h *docHandler.DocumentHandler, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.AuthMiddleware(cfg.JWTSecret)

	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r, middleware.UserID(r))
	})
	mux.Handle("GET /ws", auth(wsHandler))

	h.Register(mux, auth)

	return middleware.Logging(middleware.CORSMiddleware(cfg.AllowedOrigin)(mux))
}
