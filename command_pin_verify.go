package moderation

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type VerifyPinMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Pin        int    `json:"pin" example:"4821" doc:"Verification code from the reset email."`
	OnResponse func(resp *VerifyPinResponse)
}

func (p VerifyPinMessage) Type() string { return "auth.pin.verify" }

type VerifyPinResponse struct {
	Success bool
}

// VerifyPinHandler checks a submitted pin and consumes it on success. Every
// failure mode returns the same ErrInvalidPin: a wrong pin, a wrong email, an
// expired pin, and a pin that was never issued are indistinguishable to the
// caller.
type VerifyPinHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewVerifyPinHandler creates a handler with sane defaults.
func NewVerifyPinHandler(repo RepositoryManager) *VerifyPinHandler {
	return &VerifyPinHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit pin events.
func (h *VerifyPinHandler) WithActivitySink(sink ActivitySink) *VerifyPinHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyPinHandler) WithLogger(logger Logger) *VerifyPinHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *VerifyPinHandler) WithClock(clock func() time.Time) *VerifyPinHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *VerifyPinHandler) Execute(ctx context.Context, event VerifyPinMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during pin verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyPinHandler) execute(ctx context.Context, event VerifyPinMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := validation.Validate(event.Email, validation.Required, is.Email); err != nil {
		return ErrInvalidPin
	}

	pin := &PasswordPin{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.repo.PasswordPins().FindByEmailAndPin(ctx, event.Email, event.Pin)
		if err != nil {
			return err
		}

		if found.Expired(h.now()) {
			return ErrInvalidPin
		}

		// single use: the row must still be there for this caller to claim
		consumed, err := h.repo.PasswordPins().ConsumeTx(ctx, tx, found.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume pin")
		}

		if !consumed {
			return ErrInvalidPin
		}

		pin = found
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify pin")
	}

	h.recordActivity(ctx, pin)

	if event.OnResponse != nil {
		event.OnResponse(&VerifyPinResponse{Success: true})
	}

	return nil
}

func (h *VerifyPinHandler) recordActivity(ctx context.Context, pin *PasswordPin) {
	event := ActivityEvent{
		EventType:  ActivityEventPinVerified,
		Actor:      ActorRef{Type: "system"},
		Metadata:   map[string]any{"pin_id": pin.ID.String()},
		OccurredAt: h.now(),
	}

	if pin.UserID != nil {
		event.UserID = pin.UserID.String()
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during pin verification: %v", err)
	}
}
