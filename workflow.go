package moderation

import (
	"context"
	"fmt"
	"reflect"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	textCodeInvalidTransition = "INVALID_STATE_TRANSITION"
)

// ErrInvalidTransition is returned when a requested state change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid state transition", goerrors.CategoryConflict).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeConflict)

// ErrTerminalState is returned when attempting to move away from a terminal
// state (approved, rejected, published). Re-requesting the current terminal
// state is a no-op instead.
var ErrTerminalState = goerrors.New("subject state is terminal", goerrors.CategoryConflict).
	WithTextCode(TextCodeInvalidState).
	WithCode(goerrors.CodeConflict)

// WorkflowSubject is anything a moderation decision moves through states.
type WorkflowSubject interface {
	SubjectID() uuid.UUID
	SubjectKind() SubjectKind
	CurrentState() WorkflowState
	SetState(WorkflowState)
}

// StateUpdateOption mutates the record before the state change is persisted,
// e.g. stamping reviewer and review time.
type StateUpdateOption[T WorkflowSubject] func(T)

// WorkflowStore persists state changes for a subject type.
type WorkflowStore[T WorkflowSubject] interface {
	UpdateState(ctx context.Context, id uuid.UUID, state WorkflowState, opts ...StateUpdateOption[T]) (T, error)
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext[T WorkflowSubject] struct {
	Actor   ActorRef
	Subject T
	From    WorkflowState
	To      WorkflowState
	Meta    TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook[T WorkflowSubject] func(ctx context.Context, tc TransitionContext[T]) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes a single transition.
type TransitionOption[T WorkflowSubject] func(*transitionOptions[T])

// Workflow drives a subject through its moderation state graph.
type Workflow[T WorkflowSubject] interface {
	Transition(ctx context.Context, actor ActorRef, subject T, target WorkflowState, opts ...TransitionOption[T]) (T, error)
	CurrentState(subject T) WorkflowState
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler[T WorkflowSubject] func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext[T]) error

// WorkflowOption customizes workflow construction.
type WorkflowOption[T WorkflowSubject] func(*workflow[T])

// WithWorkflowClock injects a custom clock (useful for tests).
func WithWorkflowClock[T WorkflowSubject](clock func() time.Time) WorkflowOption[T] {
	return func(w *workflow[T]) {
		if clock != nil {
			w.now = clock
		}
	}
}

// WithWorkflowActivitySink sets the ActivitySink used to publish state events.
func WithWorkflowActivitySink[T WorkflowSubject](sink ActivitySink) WorkflowOption[T] {
	return func(w *workflow[T]) {
		w.activitySink = normalizeActivitySink(sink)
	}
}

// WithWorkflowHookErrorHandler overrides how hook failures are propagated.
// Provide a handler to convert hook errors into domain-specific responses,
// otherwise the default handler panics with guidance for developers.
func WithWorkflowHookErrorHandler[T WorkflowSubject](handler HookErrorHandler[T]) WorkflowOption[T] {
	return func(w *workflow[T]) {
		if handler != nil {
			w.hookErrorHandler = handler
		}
	}
}

// WithWorkflowLogger overrides the logger used for sink failures.
func WithWorkflowLogger[T WorkflowSubject](logger Logger) WorkflowOption[T] {
	return func(w *workflow[T]) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason[T WorkflowSubject](reason string) TransitionOption[T] {
	return func(opts *transitionOptions[T]) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata[T WorkflowSubject](metadata map[string]any) TransitionOption[T] {
	return func(opts *transitionOptions[T]) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses validation rules (use sparingly).
func WithForceTransition[T WorkflowSubject]() TransitionOption[T] {
	return func(opts *transitionOptions[T]) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the state update.
func WithBeforeTransitionHook[T WorkflowSubject](h TransitionHook[T]) TransitionOption[T] {
	return func(opts *transitionOptions[T]) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the state update succeeds.
func WithAfterTransitionHook[T WorkflowSubject](h TransitionHook[T]) TransitionOption[T] {
	return func(opts *transitionOptions[T]) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// WithStateUpdates forwards record mutations to the store alongside the state change.
func WithStateUpdates[T WorkflowSubject](updates ...StateUpdateOption[T]) TransitionOption[T] {
	return func(opts *transitionOptions[T]) {
		opts.updates = append(opts.updates, updates...)
	}
}

// NewWorkflow returns a workflow over the given transition graph. States in
// terminal admit no outgoing transitions except forced ones.
func NewWorkflow[T WorkflowSubject](
	store WorkflowStore[T],
	transitions map[WorkflowState]map[WorkflowState]struct{},
	terminal map[WorkflowState]struct{},
	opts ...WorkflowOption[T],
) Workflow[T] {
	w := &workflow[T]{
		store:        store,
		transitions:  transitions,
		terminal:     terminal,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext[T]) error {
			return defaultHookErrorHandler(ctx, phase, err, tc)
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	return w
}

// NewRequestWorkflow builds the proposal workflow for category and tag requests.
// Pending moves to approved or rejected, both terminal.
func NewRequestWorkflow(store WorkflowStore[*ModerationRequest], opts ...WorkflowOption[*ModerationRequest]) Workflow[*ModerationRequest] {
	return NewWorkflow(store,
		map[WorkflowState]map[WorkflowState]struct{}{
			RequestPending: {
				RequestApproved: {},
				RequestRejected: {},
			},
		},
		map[WorkflowState]struct{}{
			RequestApproved: {},
			RequestRejected: {},
		},
		opts...,
	)
}

// NewContentWorkflow builds the in-place content workflow: draft moves to
// pending approval, which resolves to published or rejected, both terminal.
func NewContentWorkflow(store WorkflowStore[*Content], opts ...WorkflowOption[*Content]) Workflow[*Content] {
	return NewWorkflow(store,
		map[WorkflowState]map[WorkflowState]struct{}{
			ContentDraft: {
				ContentPendingApproval: {},
			},
			ContentPendingApproval: {
				ContentPublished: {},
				ContentRejected:  {},
			},
		},
		map[WorkflowState]struct{}{
			ContentPublished: {},
			ContentRejected:  {},
		},
		opts...,
	)
}

type workflow[T WorkflowSubject] struct {
	store            WorkflowStore[T]
	transitions      map[WorkflowState]map[WorkflowState]struct{}
	terminal         map[WorkflowState]struct{}
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler[T]
}

type transitionOptions[T WorkflowSubject] struct {
	metadata    TransitionMetadata
	force       bool
	beforeHooks []TransitionHook[T]
	afterHooks  []TransitionHook[T]
	updates     []StateUpdateOption[T]
}

func (o *transitionOptions[T]) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (w *workflow[T]) Transition(ctx context.Context, actor ActorRef, subject T, target WorkflowState, opts ...TransitionOption[T]) (T, error) {
	var zero T

	if isNilSubject(subject) {
		return zero, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "subject is nil",
		})
	}

	from := subject.CurrentState()
	if target == "" {
		return zero, ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "target state is empty",
		})
	}

	if from == target {
		return subject, nil
	}

	options := w.buildTransitionOptions(opts...)

	if _, isTerminal := w.terminal[from]; isTerminal && !options.force {
		return zero, ErrTerminalState.WithMetadata(map[string]any{
			"kind": subject.SubjectKind(),
			"from": from,
			"to":   target,
		})
	}

	if !options.force && !w.canTransition(from, target) {
		return zero, ErrInvalidTransition.WithMetadata(map[string]any{
			"kind": subject.SubjectKind(),
			"from": from,
			"to":   target,
		})
	}

	ctxData := TransitionContext[T]{
		Actor:   actor,
		Subject: subject,
		From:    from,
		To:      target,
		Meta:    options.cloneMetadata(),
	}

	if err := w.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return zero, err
	}

	updated, err := w.store.UpdateState(ctx, subject.SubjectID(), target, options.updates...)
	if err != nil {
		return zero, err
	}

	subject.SetState(target)
	result := subject
	if !isNilSubject(updated) {
		result = updated
	}

	if err := w.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return zero, err
	}

	w.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventStateChanged,
		Actor:     actor,
		SubjectID: subject.SubjectID().String(),
		Kind:      subject.SubjectKind(),
		FromState: from,
		ToState:   target,
		Metadata:  w.transitionMetadata(ctxData.Meta),
	})

	return result, nil
}

func (w *workflow[T]) CurrentState(subject T) WorkflowState {
	if isNilSubject(subject) {
		return ""
	}
	return subject.CurrentState()
}

func (w *workflow[T]) runHooks(ctx context.Context, hooks []TransitionHook[T], data TransitionContext[T], phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if w.hookErrorHandler == nil {
				return err
			}
			return w.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (w *workflow[T]) canTransition(from, to WorkflowState) bool {
	if allowed, ok := w.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (w *workflow[T]) buildTransitionOptions(opts ...TransitionOption[T]) *transitionOptions[T] {
	options := &transitionOptions[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func defaultHookErrorHandler[T WorkflowSubject](_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext[T]) error {
	panic(fmt.Sprintf(
		"go-moderation: %s transition hook failed: %v\nSubjectID: %s kind=%s from=%s to=%s reason=%s\nProvide moderation.WithWorkflowHookErrorHandler to customize error handling in production.",
		phase,
		err,
		tc.Subject.SubjectID(),
		tc.Subject.SubjectKind(),
		tc.From,
		tc.To,
		tc.Meta.Reason,
	))
}

func (w *workflow[T]) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = w.now()
	}

	sink := normalizeActivitySink(w.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		w.logger.Warn("workflow activity sink error: %v", err)
	}
}

func (w *workflow[T]) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}

func isNilSubject(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
