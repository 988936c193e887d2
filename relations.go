package moderation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RelationService guards the link stores. Bookmark and read-later links are
// owned by the caller and any member role may manage their own; content-tag
// links change the shared catalog, so attaching and detaching are limited to
// publishers.
type RelationService struct {
	repo         RepositoryManager
	logger       Logger
	now          func() time.Time
	activitySink ActivitySink
}

// RelationServiceOption customizes service construction.
type RelationServiceOption func(*RelationService)

// WithRelationLogger overrides the default logger.
func WithRelationLogger(logger Logger) RelationServiceOption {
	return func(s *RelationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRelationClock injects a custom clock (useful for tests).
func WithRelationClock(clock func() time.Time) RelationServiceOption {
	return func(s *RelationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithRelationActivitySink sets the sink that receives link events.
func WithRelationActivitySink(sink ActivitySink) RelationServiceOption {
	return func(s *RelationService) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// NewRelationService creates the service on top of the repository manager.
func NewRelationService(repo RepositoryManager, opts ...RelationServiceOption) *RelationService {
	s := &RelationService{
		repo:         repo,
		logger:       defLogger{},
		now:          time.Now,
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// AddBookmark saves content for the caller. Repeating the call with the same
// content returns the same stored row.
func (s *RelationService) AddBookmark(ctx context.Context, claims AuthClaims, contentID uuid.UUID) (*Bookmark, error) {
	actor, err := s.requireActor(claims, Members)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.Bookmarks().Add(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}

	s.recordLink(ctx, claims, ActivityEventRelationAdded, "bookmark", actor, contentID)
	return record, nil
}

// RemoveBookmark deletes the caller's own bookmark.
func (s *RelationService) RemoveBookmark(ctx context.Context, claims AuthClaims, contentID uuid.UUID) error {
	actor, err := s.requireActor(claims, Members)
	if err != nil {
		return err
	}

	if err := s.repo.Bookmarks().Remove(ctx, actor, contentID); err != nil {
		return err
	}

	s.recordLink(ctx, claims, ActivityEventRelationRemoved, "bookmark", actor, contentID)
	return nil
}

// ListBookmarks returns the caller's bookmarks.
func (s *RelationService) ListBookmarks(ctx context.Context, claims AuthClaims) ([]*Bookmark, error) {
	actor, err := s.requireActor(claims, Members)
	if err != nil {
		return nil, err
	}

	return s.repo.Bookmarks().List(ctx, actor)
}

// AddReadLater queues content for the caller.
func (s *RelationService) AddReadLater(ctx context.Context, claims AuthClaims, contentID uuid.UUID) (*ReadLaterItem, error) {
	actor, err := s.requireActor(claims, Members)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.ReadLater().Add(ctx, actor, contentID)
	if err != nil {
		return nil, err
	}

	s.recordLink(ctx, claims, ActivityEventRelationAdded, "read_later", actor, contentID)
	return record, nil
}

// RemoveReadLater deletes the caller's own read-later entry.
func (s *RelationService) RemoveReadLater(ctx context.Context, claims AuthClaims, contentID uuid.UUID) error {
	actor, err := s.requireActor(claims, Members)
	if err != nil {
		return err
	}

	if err := s.repo.ReadLater().Remove(ctx, actor, contentID); err != nil {
		return err
	}

	s.recordLink(ctx, claims, ActivityEventRelationRemoved, "read_later", actor, contentID)
	return nil
}

// ListReadLater returns the caller's queue.
func (s *RelationService) ListReadLater(ctx context.Context, claims AuthClaims) ([]*ReadLaterItem, error) {
	actor, err := s.requireActor(claims, Members)
	if err != nil {
		return nil, err
	}

	return s.repo.ReadLater().List(ctx, actor)
}

// AttachTag links a canonical tag to content. Publishers only.
func (s *RelationService) AttachTag(ctx context.Context, claims AuthClaims, contentID, tagID uuid.UUID) (*ContentTag, error) {
	actor, err := s.requireActor(claims, Publishers)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.ContentTags().Attach(ctx, contentID, tagID)
	if err != nil {
		return nil, err
	}

	s.recordLink(ctx, claims, ActivityEventRelationAdded, "content_tag", actor, contentID)
	return record, nil
}

// DetachTag removes a tag link from content. Publishers only.
func (s *RelationService) DetachTag(ctx context.Context, claims AuthClaims, contentID, tagID uuid.UUID) error {
	actor, err := s.requireActor(claims, Publishers)
	if err != nil {
		return err
	}

	if err := s.repo.ContentTags().Detach(ctx, contentID, tagID); err != nil {
		return err
	}

	s.recordLink(ctx, claims, ActivityEventRelationRemoved, "content_tag", actor, contentID)
	return nil
}

// ListContentTags returns the tag links for a piece of content.
func (s *RelationService) ListContentTags(ctx context.Context, claims AuthClaims, contentID uuid.UUID) ([]*ContentTag, error) {
	if _, err := s.requireActor(claims, Members); err != nil {
		return nil, err
	}

	return s.repo.ContentTags().ListByContent(ctx, contentID)
}

func (s *RelationService) requireActor(claims AuthClaims, allowed RoleSet) (uuid.UUID, error) {
	if claims == nil {
		return uuid.Nil, ErrUnauthenticated
	}

	if claims.Status() == string(UserStatusSuspended) {
		return uuid.Nil, ErrAccountSuspended
	}

	if !claims.HasAnyRole(allowed.Strings()...) {
		return uuid.Nil, ErrForbidden.WithMetadata(map[string]any{
			"required_roles": allowed.Strings(),
		})
	}

	actor, err := uuid.Parse(claims.UserID())
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}

	return actor, nil
}

func (s *RelationService) recordLink(ctx context.Context, claims AuthClaims, event ActivityEventType, relation string, actor, contentID uuid.UUID) {
	err := s.activitySink.Record(ctx, ActivityEvent{
		EventType:  event,
		Actor:      ActorFromClaims(claims),
		UserID:     actor.String(),
		SubjectID:  contentID.String(),
		Metadata:   map[string]any{"relation": relation},
		OccurredAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("relation activity sink error: %v", err)
	}
}
