package moderation

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Middleware is the subset of the HTTP authenticator used to protect routes.
type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error, allowed ...UserRole) router.MiddlewareFunc
}

// GetRouterSession rebuilds the session object from the claims the JWT
// middleware stored in router locals.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	cookie := c.Locals(key)
	if cookie == nil {
		return nil, ErrUnableToFindSession
	}

	claims, ok := cookie.(AuthClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	return sessionFromAuthClaims(claims)
}

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")
	app.Post(controller.Routes.Logout, controller.LogOut).
		SetName("auth.logout")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("auth.register")

	app.Post(controller.Routes.PasswordPin, controller.PasswordPinRequest).
		SetName("auth.password.pin")
	app.Post(controller.Routes.PasswordVerify, controller.PasswordPinVerify).
		SetName("auth.password.verify")
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetExecute).
		SetName("auth.password.reset")
}

type AuthControllerRoutes struct {
	Login          string
	Logout         string
	Register       string
	PasswordPin    string
	PasswordVerify string
	PasswordReset  string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Mailer       Mailer
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: WriteErrorResponse,
		Routes: &AuthControllerRoutes{
			Login:          "/auth/login",
			Logout:         "/auth/logout",
			Register:       "/auth/register",
			PasswordPin:    "/auth/password/pin",
			PasswordVerify: "/auth/password/verify",
			PasswordReset:  "/auth/password/reset",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	return c
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports whether the session should outlive the default
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, wrapBindError(err))
	}

	if err := payload.Validate(); err != nil {
		return writeValidationResponse(ctx, err)
	}

	if a.Debug {
		a.Logger.Debug("auth login payload: %s", print.MaybePrettyJSON(payload))
	}

	token, err := a.Auther.Login(ctx, payload)
	if err != nil {
		return a.ErrorHandler(ctx, ErrMismatchedHashAndPassword)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"token": token,
	})
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Role     string `form:"role" json:"role"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: ", "error", err)
		return a.ErrorHandler(ctx, wrapBindError(err))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: ", "error", err)
		return writeValidationResponse(ctx, err)
	}

	var created *User
	req := RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Role:     payload.Role,
		Password: payload.Password,
		OnResponse: func(resp *RegisterUserResponse) {
			created = resp.User
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo)
	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register user error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"user": created,
	})
}

// PasswordPinPayload requests a reset PIN for an account email.
type PasswordPinPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordPinPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) PasswordPinRequest(ctx router.Context) error {
	payload := new(PasswordPinPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, wrapBindError(err))
	}

	if err := payload.Validate(); err != nil {
		return writeValidationResponse(ctx, err)
	}

	handler := NewGeneratePinHandler(a.Repo, a.Mailer).WithLogger(a.Logger)
	if err := handler.Execute(ctx.Context(), GeneratePinMessage{Email: payload.Email}); err != nil {
		a.Logger.Error("password pin error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	// unknown emails get the same response as known ones
	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

// PasswordVerifyPayload carries the emailed PIN back for verification.
type PasswordVerifyPayload struct {
	Email string `form:"email" json:"email"`
	Pin   int    `form:"pin" json:"pin"`
}

// Validate will validate the payload
func (r PasswordVerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Pin, validation.Required),
	)
}

func (a *AuthController) PasswordPinVerify(ctx router.Context) error {
	payload := new(PasswordVerifyPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, wrapBindError(err))
	}

	if err := payload.Validate(); err != nil {
		return writeValidationResponse(ctx, err)
	}

	handler := NewVerifyPinHandler(a.Repo).WithLogger(a.Logger)
	msg := VerifyPinMessage{Email: payload.Email, Pin: payload.Pin}
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("password pin verify error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

// PasswordResetPayload sets a new password for a verified account.
type PasswordResetPayload struct {
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) PasswordResetExecute(ctx router.Context) error {
	payload := new(PasswordResetPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, wrapBindError(err))
	}

	if err := payload.Validate(); err != nil {
		return writeValidationResponse(ctx, err)
	}

	handler := NewResetPasswordHandler(a.Repo)
	msg := ResetPasswordMessage{Email: payload.Email, Password: payload.Password}
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("password reset error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return validation.NewError("validation_match", "values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo field errors into a string map.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}
	out["payload"] = err.Error()
	return out
}

func writeValidationResponse(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"message":    "validation failed",
			"text_code":  "VALIDATION_ERROR",
			"validation": FormatValidationErrorToMap(err),
		},
	})
}

func wrapBindError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse request body").
		WithTextCode("BAD_REQUEST_BODY").
		WithCode(goerrors.CodeBadRequest)
}
