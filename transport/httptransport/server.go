package httptransport

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	syncErrors "github.com/c0deZ3R0/go-quote-sync/errors"
	"github.com/c0deZ3R0/go-quote-sync/lineage"
	"github.com/c0deZ3R0/go-quote-sync/logging"
	"github.com/c0deZ3R0/go-quote-sync/quotesync"
)

// Server exposes document fetch, lineage listing and rollback over HTTP.
type Server struct {
	store    quotesync.DocumentStore
	manager  *lineage.Manager
	validate *validator.Validate
	logger   *logging.Logger
}

// NewServer creates a Server over the given store and lineage manager.
func NewServer(store quotesync.DocumentStore, manager *lineage.Manager) *Server {
	return &Server{
		store:    store,
		manager:  manager,
		validate: validator.New(),
		logger:   logging.WithComponent(logging.Component("httptransport")),
	}
}

// Handler returns the HTTP handler for all transport routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	mux.HandleFunc("GET /lineages/{base}", s.handleListLineage)
	mux.HandleFunc("POST /rollback", s.handleRollback)
	return mux
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	doc, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toJSONDocument(doc))
}

func (s *Server) handleListLineage(w http.ResponseWriter, r *http.Request) {
	base := r.PathValue("base")

	docs, err := s.manager.ListLineage(r.Context(), base)
	if err != nil {
		s.respondError(w, err)
		return
	}

	wire := make([]JSONDocument, len(docs))
	for i, doc := range docs {
		wire[i] = toJSONDocument(doc)
	}
	s.respondJSON(w, http.StatusOK, wire)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request body",
			Details: err.Error(),
		})
		return
	}

	if err := s.validate.Struct(req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation failed",
			Details: validationDetails(err),
		})
		return
	}

	result, err := s.manager.Rollback(r.Context(), req.VersionToDelete, req.PreviousVersionID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, RollbackResponse{
		Success:             true,
		SnapshotsEliminados: result.SnapshotsDeleted,
	})
}

// respondError maps the error taxonomy onto HTTP status codes.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case syncErrors.IsNotFound(err) || stderrors.Is(err, quotesync.ErrNotFound):
		s.respondJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found", Details: err.Error()})
	case syncErrors.IsValidation(err):
		s.respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: err.Error()})
	default:
		s.logger.Error("request failed", slog.String("error", err.Error()))
		s.respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Details: err.Error()})
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// validationDetails flattens validator field errors into one message.
func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" is "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
