package activitymap

import (
	"strings"
	"time"

	moderation "github.com/goliatone/go-moderation"
)

const (
	// MetadataKeyActorType stores the actor type derived from moderation.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyKind stores the subject kind for moderation events.
	MetadataKeyKind = "kind"
	// MetadataKeyFromState stores the source workflow state for transitions.
	MetadataKeyFromState = "from_state"
	// MetadataKeyToState stores the target workflow state for transitions.
	MetadataKeyToState = "to_state"
)

const (
	defaultChannel    = "moderation"
	defaultObjectType = "subject"
	defaultActorID    = "system"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(moderation.ActivityEvent) string
}

// Normalize converts a moderation.ActivityEvent into a generic normalized shape.
func Normalize(event moderation.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.Actor.ID),
		strings.TrimSpace(event.UserID),
		strings.TrimSpace(options.actorFallback),
	)

	objectID := resolveObjectID(event, options.objectIDResolver)
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(moderation.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the final actor-id fallback when actor/user ids are empty.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func resolveObjectID(event moderation.ActivityEvent, resolver func(moderation.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	if id := strings.TrimSpace(event.SubjectID); id != "" {
		return id
	}
	return strings.TrimSpace(event.UserID)
}

func normalizeMetadata(event moderation.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if metadata == nil || metadata[MetadataKeyActorType] == nil {
			set(MetadataKeyActorType, actorType)
		}
	}

	if event.Kind != "" {
		set(MetadataKeyKind, string(event.Kind))
	}

	if event.FromState != "" {
		set(MetadataKeyFromState, string(event.FromState))
	}

	if event.ToState != "" {
		set(MetadataKeyToState, string(event.ToState))
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
