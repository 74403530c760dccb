package api

import (
	"net/http"

	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func (s *Server) conversations(w http.ResponseWriter, r *http.Request) {
	out, err := s.messenger.Conversations(r.Context(), principalFrom(r.Context()).UserID, intQuery(r, "limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	partner, err := uuidParam(r, "partnerID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.messenger.History(r.Context(), principalFrom(r.Context()).UserID, partner, r.URL.Query().Get("post_id"), pageQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) unreadMessages(w http.ResponseWriter, r *http.Request) {
	n, err := s.messenger.UnreadCount(r.Context(), principalFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func targetQuery(r *http.Request) (model.TargetType, string) {
	q := r.URL.Query()
	return model.TargetType(q.Get("target_type")), q.Get("target_id")
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	typ, id := targetQuery(r)
	page, err := s.commenter.List(r.Context(), typ, id, pageQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) commentStats(w http.ResponseWriter, r *http.Request) {
	typ, id := targetQuery(r)
	st, err := s.commenter.Stats(r.Context(), typ, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) thread(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	th, err := s.commenter.Thread(r.Context(), id, pageQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, th)
}

func (s *Server) likeState(w http.ResponseWriter, r *http.Request) {
	other, err := uuidParam(r, "userID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.reactions.LikeState(r.Context(), principalFrom(r.Context()).UserID, other)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request) {
	typ, _ := targetQuery(r)
	page, err := s.reactions.ListFavorites(r.Context(), principalFrom(r.Context()).UserID, typ, pageQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type checkFavoritesRequest struct {
	Items []model.FavoriteRef `json:"items" validate:"required,min=1,max=200,dive"`
}

func (s *Server) checkFavorites(w http.ResponseWriter, r *http.Request) {
	var in checkFavoritesRequest
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.reactions.CheckFavorites(r.Context(), principalFrom(r.Context()).UserID, in.Items)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) favoriteCount(w http.ResponseWriter, r *http.Request) {
	typ, id := targetQuery(r)
	n, err := s.reactions.FavoriteCount(r.Context(), typ, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}
