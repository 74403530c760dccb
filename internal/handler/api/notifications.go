package api

import (
	"net/http"

	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	me := principalFrom(r.Context()).UserID
	page, err := s.notifier.List(r.Context(), me, model.ListOptions{
		Page:       intQuery(r, "page"),
		Limit:      intQuery(r, "limit"),
		UnreadOnly: boolQuery(r, "unread_only"),
		Kind:       model.NotificationKind(r.URL.Query().Get("kind")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) unreadNotifications(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifier.UnreadCount(r.Context(), principalFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (s *Server) readNotification(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.notifier.MarkRead(r.Context(), id, principalFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) readAllNotifications(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifier.MarkAllRead(r.Context(), principalFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (s *Server) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.notifier.Delete(r.Context(), id, principalFrom(r.Context()).UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
