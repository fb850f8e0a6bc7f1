package userauth

import (
	"context"
	"net/http"
	"time"

	"github.com/clipnest/user-service/middleware/jwtware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator wires the token middleware and the error surface of
// the HTTP API. Responses are JSON, there is no session state beyond the
// bearer token itself.
type RouteAuthenticator struct {
	auth             Authenticator
	cfg              Config
	policy           *AccessPolicy
	subjectVerifier  func(ctx context.Context, subject string) error
	cookieDuration   time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:            cfg,
		auth:           auther,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

// WithAccessPolicy installs the route access policy consulted by
// ProtectedRoute. Paths the policy marks public bypass token checks.
func (a *RouteAuthenticator) WithAccessPolicy(policy *AccessPolicy) *RouteAuthenticator {
	a.policy = policy
	return a
}

// WithSubjectVerifier installs the check that confirms a token subject
// still resolves to a live identity before the request is let through.
func (a *RouteAuthenticator) WithSubjectVerifier(verifier func(ctx context.Context, subject string) error) *RouteAuthenticator {
	a.subjectVerifier = verifier
	return a
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	var filter func(router.Context) bool
	if a.policy != nil {
		filter = a.policy.Filter()
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			Filter:       filter,
			ErrorHandler: errorHandler,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:      cfg.GetAuthScheme(),
			ContextKey:      cfg.GetContextKey(),
			TokenLookup:     cfg.GetTokenLookup(),
			Issuer:          cfg.GetIssuer(),
			Audience:        cfg.GetAudience(),
			SubjectVerifier: a.subjectVerifier,
			ContextEnricher: ContextEnricherAdapter,
		})
	}
}

// Login verifies the payload credentials and returns a signed token.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (string, error) {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return "", err
	}

	return token, nil
}

// SetTokenCookie stores a signed token in an HTTP only cookie. Used by
// the social login flow where the token travels by redirect.
func (a *RouteAuthenticator) SetTokenCookie(c router.Context, token string) {
	setCookieToken(c, a.cfg.GetContextKey(), token, a.cookieDuration)
}

// Logout expires the token cookie.
func (a *RouteAuthenticator) Logout(ctx router.Context) {
	cookieDel(ctx, a.cfg.GetContextKey())
}

func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		richErr := CollapseTokenError(err)

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.AuthErrorHandler(ctx, richErr)
	}
}

func setCookieToken(c router.Context, name, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	return c.JSON(http.StatusUnauthorized, map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
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
}
