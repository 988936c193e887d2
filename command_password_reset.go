package moderation

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ResetPasswordMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Password   string `json:"password" example:"some_secret_word" doc:"New password."`
	OnResponse func(resp *ResetPasswordResponse)
}

func (p ResetPasswordMessage) Type() string { return "auth.password_reset" }

type ResetPasswordResponse struct {
	Success bool
}

// ResetPasswordHandler replaces the account password. Sequencing with pin
// verification is the caller's job: this handler does not require a pin on
// its own, it only enforces the password policy and rehashes.
type ResetPasswordHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewResetPasswordHandler creates a handler with sane defaults.
func NewResetPasswordHandler(repo RepositoryManager) *ResetPasswordHandler {
	return &ResetPasswordHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *ResetPasswordHandler) WithActivitySink(sink ActivitySink) *ResetPasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ResetPasswordHandler) WithLogger(logger Logger) *ResetPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *ResetPasswordHandler) WithClock(clock func() time.Time) *ResetPasswordHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ResetPasswordHandler) Execute(ctx context.Context, event ResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResetPasswordHandler) execute(ctx context.Context, event ResetPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := validation.Validate(event.Email, validation.Required, is.Email); err != nil {
		return goerrors.New("a valid email is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if err := validation.Validate(event.Password, validation.Required, validation.Length(6, 0)); err != nil {
		return goerrors.New("password must be at least 6 characters", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	user := &User{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByIdentifier(ctx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return goerrors.New("no account for that email", goerrors.CategoryNotFound).
					WithCode(goerrors.CodeNotFound)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if _, err := h.repo.Users().RawTx(ctx, tx, ResetUserPasswordSQL, passwordHash, user.ID.String()); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reset password")
	}

	h.recordActivity(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(&ResetPasswordResponse{Success: true})
	}

	return nil
}

func (h *ResetPasswordHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset: %v", err)
	}
}
