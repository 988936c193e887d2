package moderation

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// PinTTL is how long a generated pin stays valid.
const PinTTL = 15 * time.Minute

const (
	pinMin  = 1000
	pinSpan = 9000
)

type GeneratePinMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *GeneratePinResponse)
}

func (p GeneratePinMessage) Type() string { return "auth.pin.generate" }

type GeneratePinResponse struct {
	Success bool
}

// GeneratePinHandler issues a fresh 4 digit pin for the email and mails it.
// The delete and insert run in one transaction so concurrent requests for the
// same email converge on a single live pin. An email with no account gets the
// same success response as a real one so the endpoint cannot be used to probe
// which addresses are registered.
type GeneratePinHandler struct {
	repo     RepositoryManager
	mailer   Mailer
	activity ActivitySink
	logger   Logger
	now      func() time.Time
	pinFn    func() (int, error)
}

// NewGeneratePinHandler creates a handler with sane defaults.
func NewGeneratePinHandler(repo RepositoryManager, mailer Mailer) *GeneratePinHandler {
	return &GeneratePinHandler{
		repo:     repo,
		mailer:   mailer,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
		pinFn:    randomPin,
	}
}

// WithActivitySink sets the sink used to emit pin events.
func (h *GeneratePinHandler) WithActivitySink(sink ActivitySink) *GeneratePinHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *GeneratePinHandler) WithLogger(logger Logger) *GeneratePinHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *GeneratePinHandler) WithClock(clock func() time.Time) *GeneratePinHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

// WithPinSource overrides pin generation (useful for tests).
func (h *GeneratePinHandler) WithPinSource(fn func() (int, error)) *GeneratePinHandler {
	if fn != nil {
		h.pinFn = fn
	}
	return h
}

func (h *GeneratePinHandler) Execute(ctx context.Context, event GeneratePinMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during pin generation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *GeneratePinHandler) execute(ctx context.Context, event GeneratePinMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := validation.Validate(event.Email, validation.Required, is.Email); err != nil {
		return goerrors.New("a valid email is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	pin := &PasswordPin{}
	sent := false

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// unknown emails succeed silently
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for pin generation")
		}

		code, err := h.pinFn()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate pin")
		}

		pin.UserID = &user.ID
		pin.Email = user.Email
		pin.Pin = code
		pin.ExpiresAt = h.now().Add(PinTTL)

		if _, err := h.repo.PasswordPins().ReplaceTx(ctx, tx, pin); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store pin")
		}

		sent = true
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate pin")
	}

	if sent {
		h.deliver(ctx, pin)
	}

	if event.OnResponse != nil {
		event.OnResponse(&GeneratePinResponse{Success: true})
	}

	return nil
}

func (h *GeneratePinHandler) deliver(ctx context.Context, pin *PasswordPin) {
	msg := MailMessage{
		To:      pin.Email,
		Subject: "Your password reset code",
		Body:    fmt.Sprintf("Your verification code is %d. It expires in 15 minutes.", pin.Pin),
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("pin email delivery failed: %v", err)
	}

	h.recordActivity(ctx, pin)
}

func (h *GeneratePinHandler) recordActivity(ctx context.Context, pin *PasswordPin) {
	event := ActivityEvent{
		EventType:  ActivityEventPinIssued,
		Actor:      ActorRef{Type: "system"},
		Metadata:   map[string]any{"pin_id": pin.ID.String()},
		OccurredAt: h.now(),
	}

	if pin.UserID != nil {
		event.UserID = pin.UserID.String()
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during pin generation: %v", err)
	}
}

// randomPin draws a uniform 4 digit code from [1000, 10000).
func randomPin() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(pinSpan))
	if err != nil {
		return 0, err
	}
	return pinMin + int(n.Int64()), nil
}
