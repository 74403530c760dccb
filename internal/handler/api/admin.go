package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/service"
)

type bulkRequest struct {
	RecipientIDs []uuid.UUID                `json:"recipient_ids" validate:"required,min=1"`
	Template     model.NotificationTemplate `json:"template"`
}

type massRequest struct {
	Template   model.NotificationTemplate `json:"template"`
	ExcludeIDs []uuid.UUID                `json:"exclude_ids,omitempty"`
	ActiveOnly bool                       `json:"active_only"`
	// PushOnly multicasts to device tokens without records or live delivery.
	PushOnly bool `json:"push_only"`
}

type segmentRequest struct {
	Segment  model.Segment              `json:"segment" validate:"required"`
	Template model.NotificationTemplate `json:"template"`
}

type targetedRequest struct {
	UserIDs       []uuid.UUID                `json:"user_ids,omitempty"`
	ExcludeIDs    []uuid.UUID                `json:"exclude_ids,omitempty"`
	ActiveOnly    bool                       `json:"active_only"`
	Status        model.PresenceStatus       `json:"status,omitempty" validate:"omitempty,oneof=online away busy offline"`
	CreatedAfter  *time.Time                 `json:"created_after,omitempty"`
	CreatedBefore *time.Time                 `json:"created_before,omitempty"`
	SeenAfter     *time.Time                 `json:"seen_after,omitempty"`
	SeenBefore    *time.Time                 `json:"seen_before,omitempty"`
	WithTokens    bool                       `json:"with_tokens"`
	Template      model.NotificationTemplate `json:"template"`
}

type scheduleRequest struct {
	DueAt        time.Time                  `json:"due_at" validate:"required"`
	RecipientIDs []uuid.UUID                `json:"recipient_ids" validate:"required,min=1"`
	Template     model.NotificationTemplate `json:"template"`
}

type pushResult struct {
	Attempted   int    `json:"attempted"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Invalidated int    `json:"invalidated"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) adminBulk(w http.ResponseWriter, r *http.Request) {
	var in bulkRequest
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.notifier.NotifyMany(r.Context(), in.RecipientIDs, in.Template)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) adminMass(w http.ResponseWriter, r *http.Request) {
	var in massRequest
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := service.MassOptions{ExcludeIDs: in.ExcludeIDs, ActiveOnly: in.ActiveOnly}

	if in.PushOnly {
		res, err := s.notifier.PushAll(r.Context(), in.Template, opts)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out := pushResult{
			Attempted:   res.Attempted,
			Succeeded:   res.Succeeded,
			Failed:      res.Failed,
			Invalidated: res.Invalidated,
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	res, err := s.notifier.NotifyAll(r.Context(), in.Template, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) adminSegment(w http.ResponseWriter, r *http.Request) {
	var in segmentRequest
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.notifier.NotifySegment(r.Context(), in.Segment, in.Template)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) adminTargeted(w http.ResponseWriter, r *http.Request) {
	var in targetedRequest
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.notifier.NotifyTargeted(r.Context(), model.RecipientCriteria{
		UserIDs:       in.UserIDs,
		ExcludeIDs:    in.ExcludeIDs,
		ActiveOnly:    in.ActiveOnly,
		Status:        in.Status,
		CreatedAfter:  in.CreatedAfter,
		CreatedBefore: in.CreatedBefore,
		SeenAfter:     in.SeenAfter,
		SeenBefore:    in.SeenBefore,
		WithTokens:    in.WithTokens,
	}, in.Template)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) adminSchedule(w http.ResponseWriter, r *http.Request) {
	var in scheduleRequest
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sn, err := s.notifier.Schedule(r.Context(), in.DueAt, in.RecipientIDs, in.Template)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sn)
}
