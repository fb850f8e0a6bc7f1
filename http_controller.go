package userauth

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
)

type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

// RegisterAuthRoutes mounts the authentication API on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login.post")

	app.
		Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("auth.register.post")

	app.
		Get(controller.Routes.Exist, controller.ExistGet).
		SetName("users.exist.get")

	app.
		Get(controller.Routes.TokenValidate, controller.TokenValidateGet).
		SetName("token.validate.get")

	app.
		Get(controller.Routes.Health, controller.HealthGet).
		SetName("health.get")
}

type AuthControllerRoutes struct {
	Login         string
	Register      string
	Exist         string
	TokenValidate string
	Health        string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AuthControllerRoutes
	Auther       Authenticator
	Tokens       TokenService
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Login:         "/login",
			Register:      "/register",
			Exist:         "/exist",
			TokenValidate: "/token/validate",
			Health:        "/health",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in auth controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithRepositoryManager(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithTokenService(tokens TokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Tokens = tokens
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Username
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession is kept for payload compatibility, logins are
// always issued with the configured expiration.
func (r LoginRequest) GetExtendedSession() bool {
	return false
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Username,
			validation.Required,
			validation.Length(1, 200),
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
		a.Logger.Error("login parse payload", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error": "Failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("login payload", "payload", print.MaybePrettyJSON(payload))
	}

	token, err := a.Auther.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Info("login rejected", "username", payload.Username)
		return ctx.JSON(http.StatusUnauthorized, map[string]any{
			"error": "Invalid username or password",
		})
	}

	return ctx.JSON(http.StatusOK, map[string]string{
		"token": token,
	})
}

// RegistrationCreatePayload is the registration body
type RegistrationCreatePayload struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error": "Failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := RegisterUserMessage{
		Username:  payload.Username,
		Email:     payload.Email,
		Password:  payload.Password,
		UseHashid: true,
	}

	registerUser := NewRegisterUserHandler(a.Repo)
	user, err := registerUser.Execute(ctx.Context(), req)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryConflict {
			return ctx.JSON(http.StatusConflict, map[string]any{
				"error": "Username or email already exists",
			})
		}

		a.Logger.Error("register user execute", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"message":  "Registration successful",
		"id":       user.ID.String(),
		"username": user.Username,
	})
}

// ExistGet reports whether the given username or email are taken.
func (a *AuthController) ExistGet(ctx router.Context) error {
	username := ctx.Query("username", "")
	email := ctx.Query("email", "")

	usernameExists, err := a.recordExists(ctx, func() (*User, error) {
		return a.Repo.Users().FindByUsername(ctx.Context(), username)
	}, username)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	emailExists, err := a.recordExists(ctx, func() (*User, error) {
		return a.Repo.Users().FindByEmail(ctx.Context(), email)
	}, email)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]bool{
		"usernameExists": usernameExists,
		"emailExists":    emailExists,
	})
}

func (a *AuthController) recordExists(ctx router.Context, find func() (*User, error), identifier string) (bool, error) {
	if identifier == "" {
		return false, nil
	}

	record, err := find()
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	return record != nil, nil
}

// TokenValidateGet verifies a bearer token end to end: signature, expiry,
// and that the subject still resolves to a registered user.
func (a *AuthController) TokenValidateGet(ctx router.Context) error {
	header := ctx.GetString("Authorization", "")
	if !strings.HasPrefix(header, "Bearer ") {
		return ctx.Status(http.StatusBadRequest).SendString("Invalid Authorization header")
	}

	token := header[len("Bearer "):]

	subject, err := a.Tokens.PeekSubject(token)
	if err != nil {
		return ctx.Status(http.StatusBadRequest).SendString("Invalid token")
	}

	if _, err := a.Repo.Users().FindByUsername(ctx.Context(), subject); err != nil {
		return ctx.Status(http.StatusBadRequest).SendString("Invalid token")
	}

	if err := a.Tokens.VerifySubject(token, subject); err != nil {
		return ctx.Status(http.StatusBadRequest).SendString("Invalid token")
	}

	return ctx.Status(http.StatusOK).SendString("Token is valid")
}

func (a *AuthController) HealthGet(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"status": "UP",
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map suitable for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if goerrors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	if err != nil {
		out["payload"] = err.Error()
	}

	return out
}

func defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	return c.JSON(code, map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	})
}
