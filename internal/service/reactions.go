package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

type FavoritePage struct {
	Favorites  []model.Favorite `json:"favorites"`
	Pagination model.Pagination `json:"pagination"`
}

// Reactions implements likes between identities and favorites on content.
type Reactions struct {
	reactions ReactionStore
	users     UserDirectory
	notifier  *Notifier
	logger    *slog.Logger
	clock     func() time.Time
}

func NewReactions(reactions ReactionStore, users UserDirectory, notifier *Notifier, logger *slog.Logger) *Reactions {
	return &Reactions{
		reactions: reactions,
		users:     users,
		notifier:  notifier,
		logger:    logger,
		clock:     time.Now,
	}
}

// Like records a like or skip verdict on another identity. When the verdict
// newly makes the like mutual, both sides get a match notification.
func (s *Reactions) Like(ctx context.Context, actor Actor, likedID uuid.UUID, status model.LikeStatus) (model.LikeState, error) {
	if status == "" {
		status = model.LikeLike
	}
	if !status.Valid() {
		return model.LikeState{}, fmt.Errorf("like status %q: %w", status, model.ErrInvalidArgument)
	}
	if likedID == uuid.Nil || likedID == actor.UserID {
		return model.LikeState{}, fmt.Errorf("like self: %w", model.ErrInvalidTarget)
	}
	ok, err := s.users.Exists(ctx, likedID)
	if err != nil {
		return model.LikeState{}, err
	}
	if !ok {
		return model.LikeState{}, fmt.Errorf("identity %s: %w", likedID, model.ErrNotFound)
	}

	prev, err := s.reactions.GetLike(ctx, actor.UserID, likedID)
	if err != nil {
		return model.LikeState{}, err
	}

	now := s.clock().UTC()
	if err := s.reactions.UpsertLike(ctx, &model.Like{
		LikerID:   actor.UserID,
		LikedID:   likedID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return model.LikeState{}, err
	}

	state, err := s.LikeState(ctx, actor.UserID, likedID)
	if err != nil {
		return model.LikeState{}, err
	}

	newlyLiked := status == model.LikeLike && (prev == nil || prev.Status != model.LikeLike)
	switch {
	case newlyLiked && state.Mutual:
		liker := actor.UserID
		s.notifier.NotifyFrom(ctx, liker, func(u *model.User) NotifyRequest { return MatchNotice(u, likedID) })
		s.notifier.NotifyFrom(ctx, likedID, func(u *model.User) NotifyRequest { return MatchNotice(u, liker) })
		s.logger.Info("MUTUAL_LIKE", slog.String("a", liker.String()), slog.String("b", likedID.String()))
	case newlyLiked:
		s.notifier.NotifyFrom(ctx, actor.UserID, func(u *model.User) NotifyRequest { return ProfileLikeNotice(u, likedID) })
	}
	return state, nil
}

// Unlike removes the actor's verdict; NotFound when there was none.
func (s *Reactions) Unlike(ctx context.Context, actor Actor, likedID uuid.UUID) error {
	return s.reactions.DeleteLike(ctx, actor.UserID, likedID)
}

// LikeState describes the verdicts between userID and other from userID's side.
func (s *Reactions) LikeState(ctx context.Context, userID, other uuid.UUID) (model.LikeState, error) {
	mine, err := s.reactions.GetLike(ctx, userID, other)
	if err != nil {
		return model.LikeState{}, err
	}
	theirs, err := s.reactions.GetLike(ctx, other, userID)
	if err != nil {
		return model.LikeState{}, err
	}

	var st model.LikeState
	if mine != nil {
		st.UserLiked = lo.ToPtr(mine.Status)
	}
	if theirs != nil {
		st.OtherUserLiked = lo.ToPtr(theirs.Status)
	}
	st.Mutual = mine != nil && theirs != nil && mine.Status == model.LikeLike && theirs.Status == model.LikeLike
	return st, nil
}

// AddFavorite reports Conflict when the content is already a favorite.
func (s *Reactions) AddFavorite(ctx context.Context, actor Actor, typ model.TargetType, targetID string) (*model.Favorite, error) {
	if err := checkTarget(typ, targetID); err != nil {
		return nil, err
	}
	f := &model.Favorite{UserID: actor.UserID, TargetType: typ, TargetID: targetID, CreatedAt: s.clock().UTC()}
	if err := s.reactions.AddFavorite(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// RemoveFavorite reports NotFound when the content was not a favorite.
func (s *Reactions) RemoveFavorite(ctx context.Context, actor Actor, typ model.TargetType, targetID string) error {
	if err := checkTarget(typ, targetID); err != nil {
		return err
	}
	return s.reactions.RemoveFavorite(ctx, actor.UserID, typ, targetID)
}

// ToggleFavorite flips the favorite state and returns the new one.
func (s *Reactions) ToggleFavorite(ctx context.Context, actor Actor, typ model.TargetType, targetID string) (bool, error) {
	if err := checkTarget(typ, targetID); err != nil {
		return false, err
	}
	fav, err := s.reactions.IsFavorite(ctx, actor.UserID, typ, targetID)
	if err != nil {
		return false, err
	}
	if fav {
		err := s.reactions.RemoveFavorite(ctx, actor.UserID, typ, targetID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return true, err
		}
		return false, nil
	}
	_, err = s.AddFavorite(ctx, actor, typ, targetID)
	if err != nil && !errors.Is(err, model.ErrConflict) {
		return false, err
	}
	return true, nil
}

func (s *Reactions) ListFavorites(ctx context.Context, userID uuid.UUID, typ model.TargetType, page model.Page) (*FavoritePage, error) {
	if typ != "" && !typ.Valid() {
		return nil, fmt.Errorf("favorite type %q: %w", typ, model.ErrInvalidTarget)
	}
	page = page.Normalize(commentsDefaultLimit, commentsMaxLimit)
	items, total, err := s.reactions.ListFavorites(ctx, userID, typ, page)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Favorite{}
	}
	return &FavoritePage{Favorites: items, Pagination: model.NewPagination(total, page)}, nil
}

// CheckFavorites fills IsFavorited on every reference.
func (s *Reactions) CheckFavorites(ctx context.Context, userID uuid.UUID, refs []model.FavoriteRef) ([]model.FavoriteRef, error) {
	byType := lo.GroupBy(refs, func(r model.FavoriteRef) model.TargetType { return r.TargetType })

	out := make([]model.FavoriteRef, len(refs))
	copy(out, refs)
	for typ, group := range byType {
		if !typ.Valid() {
			return nil, fmt.Errorf("favorite type %q: %w", typ, model.ErrInvalidTarget)
		}
		ids := lo.Map(group, func(r model.FavoriteRef, _ int) string { return r.TargetID })
		found, err := s.reactions.FavoriteTargets(ctx, userID, typ, ids)
		if err != nil {
			return nil, err
		}
		for i := range out {
			if out[i].TargetType == typ {
				out[i].IsFavorited = found[out[i].TargetID]
			}
		}
	}
	return out, nil
}

func (s *Reactions) FavoriteCount(ctx context.Context, typ model.TargetType, targetID string) (int64, error) {
	if err := checkTarget(typ, targetID); err != nil {
		return 0, err
	}
	return s.reactions.FavoriteCount(ctx, typ, targetID)
}

func checkTarget(typ model.TargetType, targetID string) error {
	if !typ.Valid() || targetID == "" {
		return fmt.Errorf("target %s:%s: %w", typ, targetID, model.ErrInvalidTarget)
	}
	return nil
}
