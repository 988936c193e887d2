package moderation

import (
	"context"
	"time"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

// ActorFromClaims builds an ActorRef for audit events from resolved claims.
func ActorFromClaims(claims AuthClaims) ActorRef {
	if claims == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{
		ID:   claims.UserID(),
		Type: "user",
	}
}

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserStatusChanged    ActivityEventType = "user.status.changed"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventPinIssued            ActivityEventType = "auth.pin.issued"
	ActivityEventPinVerified          ActivityEventType = "auth.pin.verified"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
	ActivityEventRequestSubmitted     ActivityEventType = "moderation.request.submitted"
	ActivityEventStateChanged         ActivityEventType = "moderation.state.changed"
	ActivityEventRelationAdded        ActivityEventType = "relation.added"
	ActivityEventRelationRemoved      ActivityEventType = "relation.removed"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	SubjectID  string
	Kind       SubjectKind
	FromState  WorkflowState
	ToState    WorkflowState
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
