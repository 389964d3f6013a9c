package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mechatbot/mechatbot/config"
	"github.com/mechatbot/mechatbot/engine"
	"github.com/mechatbot/mechatbot/knowledge"
)

type Server struct {
	logger  *slog.Logger
	manager *knowledge.Manager
	store   knowledge.Store
	engine  *engine.Engine

	bearerToken string
}

func NewServer(
	logger *slog.Logger,
	manager *knowledge.Manager,
	store knowledge.Store,
	engine *engine.Engine,
	conf *config.ServerConfig,
) *Server {
	return &Server{
		logger:      logger,
		manager:     manager,
		store:       store,
		engine:      engine,
		bearerToken: conf.BearerToken,
	}
}

// Handler builds the full middleware chain: CORS, panic recovery, bearer
// auth, then the route table.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/knowledge/{userId}/{instanceName}", s.upsertKnowledge).Methods(http.MethodPut)
	router.HandleFunc("/knowledge/{id}", s.deleteKnowledge).Methods(http.MethodDelete)

	router.HandleFunc("/instances/{userId}", s.listInstances).Methods(http.MethodGet)
	router.HandleFunc("/instances/{userId}/{instanceName}", s.deleteInstance).Methods(http.MethodDelete)
	router.HandleFunc("/instances/{userId}/{instanceName}/revisions", s.listRevisions).Methods(http.MethodGet)
	router.HandleFunc("/instances/{userId}/{instanceName}/revisions/{label}", s.deleteRevision).Methods(http.MethodDelete)
	router.HandleFunc("/instances/{userId}/{instanceName}/persona", s.getPersona).Methods(http.MethodGet)
	router.HandleFunc("/instances/{userId}/{instanceName}/persona", s.setPersona).Methods(http.MethodPost)

	router.HandleFunc("/ask", s.ask).Methods(http.MethodPost)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(true),
	)

	return cors(recovery(s.authMiddleware(router)))
}

// authMiddleware enforces the shared bearer token. An empty configured token
// disables the check, which is only meant for local development.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.bearerToken != "" && r.Header.Get("Authorization") != "Bearer "+s.bearerToken {
			writeStatus(w, statusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
