package moderation

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User *User
}

// RegisterUserHandler creates an account. Unknown roles are rejected rather
// than defaulted so a typo cannot silently grant the wrong capability set.
type RegisterUserHandler struct {
	repo RepositoryManager
}

// NewRegisterUserHandler creates a handler.
func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{repo: repo}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
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

	role := RoleConsumer
	if event.Role != "" {
		parsed, ok := ParseRole(event.Role)
		if !ok {
			return goerrors.New("unknown role", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest).
				WithMetadata(map[string]any{"role": event.Role})
		}
		role = parsed
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Role = role
		user.Status = UserStatusActive
		user.Username = getUsername(event.Username, event.Email)
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{User: user})
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
