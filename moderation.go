package moderation

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RequestDecision is the outcome of resolving a category or tag proposal.
// AlreadyExists reports that the canonical entity predated this approval, in
// which case the request is still marked approved but nothing new was created.
type RequestDecision struct {
	Request       *ModerationRequest `json:"request"`
	EntityID      uuid.UUID          `json:"entity_id,omitempty"`
	Created       bool               `json:"created"`
	AlreadyExists bool               `json:"already_exists"`
}

// ModerationService drives proposals and content through their review
// workflows. Every operation takes the caller's resolved claims explicitly,
// checks role membership up front, and runs multi-step mutations in one
// transaction.
type ModerationService struct {
	repo         RepositoryManager
	logger       Logger
	now          func() time.Time
	activitySink ActivitySink
}

// ModerationServiceOption customizes service construction.
type ModerationServiceOption func(*ModerationService)

// WithModerationLogger overrides the default logger.
func WithModerationLogger(logger Logger) ModerationServiceOption {
	return func(s *ModerationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithModerationClock injects a custom clock (useful for tests).
func WithModerationClock(clock func() time.Time) ModerationServiceOption {
	return func(s *ModerationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithModerationActivitySink sets the sink that receives workflow events.
func WithModerationActivitySink(sink ActivitySink) ModerationServiceOption {
	return func(s *ModerationService) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// NewModerationService creates the service on top of the repository manager.
func NewModerationService(repo RepositoryManager, opts ...ModerationServiceOption) *ModerationService {
	s := &ModerationService{
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

// SubmitRequest files a category or tag proposal. Any authenticated member
// may propose; the request starts pending and waits for an admin decision.
func (s *ModerationService) SubmitRequest(ctx context.Context, claims AuthClaims, kind SubjectKind, name, description string) (*ModerationRequest, error) {
	actor, err := s.requireActor(claims, Members)
	if err != nil {
		return nil, err
	}

	if !kind.IsProposal() {
		return nil, goerrors.New("kind does not accept proposals", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"kind": kind})
	}

	name = normalizeName(name)
	if err := validation.Validate(name, validation.Required, validation.Length(1, 120)); err != nil {
		return nil, goerrors.New("a request needs a name", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	record := &ModerationRequest{
		Kind:        kind,
		Name:        name,
		Description: description,
		RequestedBy: actor,
		State:       RequestPending,
	}

	created, err := s.repo.Requests().Create(ctx, record)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRequestSubmitted,
		Actor:     ActorFromClaims(claims),
		SubjectID: created.ID.String(),
		Kind:      kind,
		ToState:   RequestPending,
		Metadata:  map[string]any{"name": created.Name},
	})

	return created, nil
}

// ListPendingRequests returns the review queue for admins, optionally
// filtered by kind.
func (s *ModerationService) ListPendingRequests(ctx context.Context, claims AuthClaims, kind SubjectKind) ([]*ModerationRequest, error) {
	if _, err := s.requireActor(claims, AdminOnly); err != nil {
		return nil, err
	}

	return s.repo.Requests().ListPending(ctx, kind)
}

// ApproveRequest marks a proposal approved and materializes the canonical
// entity. Marking and materializing share one transaction so a crash cannot
// leave an approved request with no entity. A name that already exists is
// reported as such, never as an error and never as a duplicate row.
func (s *ModerationService) ApproveRequest(ctx context.Context, claims AuthClaims, requestID uuid.UUID, note string) (*RequestDecision, error) {
	actor, err := s.requireActor(claims, AdminOnly)
	if err != nil {
		return nil, err
	}

	request, err := s.repo.Requests().GetByID(ctx, requestID.String())
	if err != nil {
		return nil, err
	}

	decision := &RequestDecision{}
	reviewedAt := s.now()

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		wf := s.requestWorkflow(tx)

		updated, err := wf.Transition(ctx, ActorFromClaims(claims), request, RequestApproved,
			WithTransitionReason[*ModerationRequest](note),
			WithStateUpdates(WithRequestReviewer(actor, reviewedAt, note)),
		)
		if err != nil {
			return err
		}
		decision.Request = updated

		switch request.Kind {
		case SubjectCategory:
			record, created, err := s.repo.Categories().CreateIfAbsentTx(ctx, tx, &Category{
				Name:       request.Name,
				ApprovedBy: &actor,
			})
			if err != nil {
				return err
			}
			decision.EntityID = record.ID
			decision.Created = created
		case SubjectTag:
			record, created, err := s.repo.Tags().CreateIfAbsentTx(ctx, tx, &Tag{
				Name:       request.Name,
				ApprovedBy: &actor,
			})
			if err != nil {
				return err
			}
			decision.EntityID = record.ID
			decision.Created = created
		default:
			return ErrInvalidTransition.WithMetadata(map[string]any{
				"kind":   request.Kind,
				"reason": "kind has no canonical entity",
			})
		}

		decision.AlreadyExists = !decision.Created

		return s.notifyTx(ctx, tx, request.RequestedBy, map[string]any{
			"kind":           "request_approved",
			"request_id":     request.ID.String(),
			"name":           request.Name,
			"entity_id":      decision.EntityID.String(),
			"already_exists": decision.AlreadyExists,
		})
	})
	if err != nil {
		return nil, err
	}

	if decision.AlreadyExists {
		s.logger.Info("request approved, entity already exists: kind=%s name=%s", request.Kind, request.Name)
	}

	return decision, nil
}

// RejectRequest marks a proposal rejected. No canonical entity is touched.
func (s *ModerationService) RejectRequest(ctx context.Context, claims AuthClaims, requestID uuid.UUID, note string) (*ModerationRequest, error) {
	actor, err := s.requireActor(claims, AdminOnly)
	if err != nil {
		return nil, err
	}

	request, err := s.repo.Requests().GetByID(ctx, requestID.String())
	if err != nil {
		return nil, err
	}

	var rejected *ModerationRequest
	reviewedAt := s.now()

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		wf := s.requestWorkflow(tx)

		updated, err := wf.Transition(ctx, ActorFromClaims(claims), request, RequestRejected,
			WithTransitionReason[*ModerationRequest](note),
			WithStateUpdates(WithRequestReviewer(actor, reviewedAt, note)),
		)
		if err != nil {
			return err
		}

		rejected = updated

		return s.notifyTx(ctx, tx, request.RequestedBy, map[string]any{
			"kind":       "request_rejected",
			"request_id": request.ID.String(),
			"name":       request.Name,
			"note":       note,
		})
	})
	if err != nil {
		return nil, err
	}

	return rejected, nil
}

// CreateContent stores a new draft owned by the caller. Publishers only.
func (s *ModerationService) CreateContent(ctx context.Context, claims AuthClaims, draft *Content) (*Content, error) {
	actor, err := s.requireActor(claims, Publishers)
	if err != nil {
		return nil, err
	}

	if draft == nil {
		return nil, goerrors.New("content payload is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if err := validation.Validate(draft.Title, validation.Required, validation.Length(1, 250)); err != nil {
		return nil, goerrors.New("content needs a title", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	draft.OwnerID = actor
	draft.State = ContentDraft

	return s.repo.Contents().Create(ctx, draft)
}

// SubmitContent moves the caller's own draft into the review queue.
func (s *ModerationService) SubmitContent(ctx context.Context, claims AuthClaims, contentID uuid.UUID) (*Content, error) {
	actor, err := s.requireActor(claims, Publishers)
	if err != nil {
		return nil, err
	}

	content, err := s.repo.Contents().GetByID(ctx, contentID.String())
	if err != nil {
		return nil, err
	}

	if content.OwnerID != actor && !claims.HasRole(string(RoleAdmin)) {
		return nil, ErrForbidden.WithMetadata(map[string]any{
			"content_id": contentID.String(),
		})
	}

	return s.contentWorkflow(s.repo.Contents()).Transition(ctx, ActorFromClaims(claims), content, ContentPendingApproval)
}

// PublishContent resolves pending content as published. Admin only.
func (s *ModerationService) PublishContent(ctx context.Context, claims AuthClaims, contentID uuid.UUID, note string) (*Content, error) {
	return s.resolveContent(ctx, claims, contentID, ContentPublished, note)
}

// RejectContent resolves pending content as rejected. Admin only.
func (s *ModerationService) RejectContent(ctx context.Context, claims AuthClaims, contentID uuid.UUID, note string) (*Content, error) {
	return s.resolveContent(ctx, claims, contentID, ContentRejected, note)
}

// ListPendingContent returns the content review queue. Admin only.
func (s *ModerationService) ListPendingContent(ctx context.Context, claims AuthClaims) ([]*Content, error) {
	if _, err := s.requireActor(claims, AdminOnly); err != nil {
		return nil, err
	}

	return s.repo.Contents().ListPendingApproval(ctx)
}

func (s *ModerationService) resolveContent(ctx context.Context, claims AuthClaims, contentID uuid.UUID, target WorkflowState, note string) (*Content, error) {
	actor, err := s.requireActor(claims, AdminOnly)
	if err != nil {
		return nil, err
	}

	content, err := s.repo.Contents().GetByID(ctx, contentID.String())
	if err != nil {
		return nil, err
	}

	reviewedAt := s.now()
	updates := []StateUpdateOption[*Content]{
		WithContentReviewer(actor, reviewedAt, note),
	}
	kind := "content_rejected"
	if target == ContentPublished {
		updates = append(updates, WithPublishedAt(reviewedAt))
		kind = "content_published"
	}

	var resolved *Content

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		updated, err := s.contentWorkflow(txContentStore{repo: s.repo.Contents(), tx: tx}).Transition(ctx, ActorFromClaims(claims), content, target,
			WithTransitionReason[*Content](note),
			WithStateUpdates(updates...),
		)
		if err != nil {
			return err
		}

		resolved = updated

		return s.notifyTx(ctx, tx, content.OwnerID, map[string]any{
			"kind":       kind,
			"content_id": content.ID.String(),
			"title":      content.Title,
			"note":       note,
		})
	})
	if err != nil {
		return nil, err
	}

	return resolved, nil
}

// ListUnreadNotifications returns the caller's unread notifications,
// newest first.
func (s *ModerationService) ListUnreadNotifications(ctx context.Context, claims AuthClaims) ([]*Notification, error) {
	actor, err := s.requireActor(claims, Members)
	if err != nil {
		return nil, err
	}

	return s.repo.Notifications().ListUnread(ctx, actor)
}

// MarkNotificationRead marks one of the caller's notifications as read.
// Notifications belonging to another user are reported as not found.
func (s *ModerationService) MarkNotificationRead(ctx context.Context, claims AuthClaims, notificationID uuid.UUID) error {
	actor, err := s.requireActor(claims, Members)
	if err != nil {
		return err
	}

	return s.repo.Notifications().MarkRead(ctx, actor, notificationID)
}

func (s *ModerationService) notifyTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, payload map[string]any) error {
	_, err := s.repo.Notifications().CreateTx(ctx, tx, &Notification{
		UserID:  userID,
		Payload: payload,
	})
	return err
}

// requireActor rejects missing claims, suspended accounts, and callers whose
// role is outside the allowed set, in that order. It returns the caller's id
// so operations can scope their writes.
func (s *ModerationService) requireActor(claims AuthClaims, allowed RoleSet) (uuid.UUID, error) {
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

func (s *ModerationService) requestWorkflow(tx bun.IDB) Workflow[*ModerationRequest] {
	return NewRequestWorkflow(
		txRequestStore{repo: s.repo.Requests(), tx: tx},
		WithWorkflowClock[*ModerationRequest](s.now),
		WithWorkflowActivitySink[*ModerationRequest](s.activitySink),
		WithWorkflowLogger[*ModerationRequest](s.logger),
	)
}

func (s *ModerationService) contentWorkflow(store WorkflowStore[*Content]) Workflow[*Content] {
	return NewContentWorkflow(store,
		WithWorkflowClock[*Content](s.now),
		WithWorkflowActivitySink[*Content](s.activitySink),
		WithWorkflowLogger[*Content](s.logger),
	)
}

func (s *ModerationService) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	if err := s.activitySink.Record(ctx, event); err != nil {
		s.logger.Warn("moderation activity sink error: %v", err)
	}
}

// txRequestStore binds the request store's state writes to one transaction so
// the workflow's persistence shares it with entity materialization.
type txRequestStore struct {
	repo Requests
	tx   bun.IDB
}

func (s txRequestStore) UpdateState(ctx context.Context, id uuid.UUID, state WorkflowState, opts ...StateUpdateOption[*ModerationRequest]) (*ModerationRequest, error) {
	return s.repo.UpdateStateTx(ctx, s.tx, id, state, opts...)
}

// txContentStore is the content counterpart, used when a review decision and
// its notification must land together.
type txContentStore struct {
	repo Contents
	tx   bun.IDB
}

func (s txContentStore) UpdateState(ctx context.Context, id uuid.UUID, state WorkflowState, opts ...StateUpdateOption[*Content]) (*Content, error) {
	return s.repo.UpdateStateTx(ctx, s.tx, id, state, opts...)
}
