package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) userStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.directory.Status(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type bulkStatusRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" validate:"required,min=1"`
}

func (s *Server) bulkStatus(w http.ResponseWriter, r *http.Request) {
	var in bulkStatusRequest
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.directory.BulkStatus(r.Context(), in.UserIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statuses": out})
}

type deviceRequest struct {
	Token  string `json:"token" validate:"required,max=512"`
	Device string `json:"device" validate:"max=64"`
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.directory.Tokens(r.Context(), principalFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": tokens})
}

func (s *Server) addDevice(w http.ResponseWriter, r *http.Request) {
	var in deviceRequest
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.directory.RegisterToken(r.Context(), principalFrom(r.Context()).UserID, in.Token, in.Device); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.directory.RemoveToken(r.Context(), principalFrom(r.Context()).UserID, chi.URLParam(r, "token")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
