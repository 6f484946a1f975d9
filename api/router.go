// Package api exposes the share engine over HTTP. Authentication is an
// external concern; the reverse proxy in front of this service injects
// the verified user id as the X-User header.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/kevgathuku/server/internal/chizap"
	"github.com/kevgathuku/server/internal/database"
	"github.com/kevgathuku/server/pkg/schemas"
	"github.com/kevgathuku/server/pkg/services"
	"github.com/kevgathuku/server/pkg/share"
	"go.uber.org/zap"
)

const userHeader = "X-User"

type Server struct {
	shares   *services.ShareService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewRouter(shares *services.ShareService, logger *zap.Logger) http.Handler {
	s := &Server{
		shares:   shares,
		validate: validator.New(),
		logger:   logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(chizap.ChizapWithConfig(logger, &chizap.Config{
		UTC:       true,
		SkipPaths: []string{"/api/health"},
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", userHeader},
		AllowCredentials: false,
	}))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public token endpoints, no user required.
	r.Get("/api/shares/token/{token}", s.getByToken)
	r.Post("/api/shares/token/{token}/unlock", s.unlock)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/api/shares", s.create)
		r.Delete("/api/shares", s.delete)
		r.Get("/api/shares", s.listShared)
		r.Get("/api/shares/shared-with-me", s.listSharedWithMe)
		r.Delete("/api/shares/shared-with-me", s.deleteFromSelf)
		r.Get("/api/shares/statuses", s.statuses)
		r.Patch("/api/shares/permissions", s.setPermissions)
		r.Patch("/api/shares/expiration", s.setExpiration)
		r.Patch("/api/shares/mail", s.setMailStatus)
	})

	return r
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(userHeader) == "" {
			writeError(w, http.StatusUnauthorized, errors.New("missing user identity"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req schemas.ShareCreate
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.shares.Create(r.Context(), user(r), &req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	var req schemas.ShareDelete
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.shares.Delete(r.Context(), user(r), &req); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteFromSelf(w http.ResponseWriter, r *http.Request) {
	itemType := r.URL.Query().Get("itemType")
	itemTarget := r.URL.Query().Get("itemTarget")
	if itemType == "" || itemTarget == "" {
		writeError(w, http.StatusBadRequest, errors.New("itemType and itemTarget are required"))
		return
	}
	if err := s.shares.DeleteFromSelf(r.Context(), user(r), itemType, itemTarget); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listShared(w http.ResponseWriter, r *http.Request) {
	items, err := s.shares.ListShared(r.Context(), user(r), itemType(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) listSharedWithMe(w http.ResponseWriter, r *http.Request) {
	items, err := s.shares.ListSharedWithMe(r.Context(), user(r), itemType(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) statuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.shares.Statuses(r.Context(), user(r), itemType(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) getByToken(w http.ResponseWriter, r *http.Request) {
	res, err := s.shares.GetByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) unlock(w http.ResponseWriter, r *http.Request) {
	var req schemas.ShareUnlock
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.shares.Unlock(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setPermissions(w http.ResponseWriter, r *http.Request) {
	var req schemas.SharePermissionsUpdate
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.shares.SetPermissions(r.Context(), user(r), &req); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setExpiration(w http.ResponseWriter, r *http.Request) {
	var req schemas.ShareExpirationUpdate
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.shares.SetExpiration(r.Context(), user(r), &req); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setMailStatus(w http.ResponseWriter, r *http.Request) {
	var req schemas.ShareMailUpdate
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.shares.SetMailStatus(r.Context(), user(r), &req); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// fail maps domain errors onto HTTP status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, share.ErrShareNotFound),
		errors.Is(err, share.ErrSourceNotFound),
		errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, share.ErrPolicyViolation),
		errors.Is(err, share.ErrPermissionExceeded),
		errors.Is(err, share.ErrExpirationInvalid):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, share.ErrUnknownBackend),
		errors.Is(err, share.ErrInvalidBackend):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrInvalidPassword):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, services.ErrNotProtected):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, share.ErrRemoteUnreachable):
		writeError(w, http.StatusBadGateway, err)
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func user(r *http.Request) string {
	return r.Header.Get(userHeader)
}

func itemType(r *http.Request) string {
	t := r.URL.Query().Get("itemType")
	if t == "" {
		t = "file"
	}
	return t
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
