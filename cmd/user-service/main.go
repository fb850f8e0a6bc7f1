package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	userauth "github.com/clipnest/user-service"
	"github.com/clipnest/user-service/activitymap"
	"github.com/clipnest/user-service/social"
	"github.com/clipnest/user-service/social/providers/github"
	"github.com/clipnest/user-service/social/providers/google"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/joeshaw/envdecode"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"
)

// AppConfig is populated from the environment via envdecode.
type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8572"`
	DSN      string `env:"DATABASE_DSN,default=file:user_service.db?cache=shared&mode=rwc"`
	Debug    bool   `env:"DEBUG,default=false"`

	SigningKey      string `env:"JWT_SIGNING_KEY,required"`
	SigningMethod   string `env:"JWT_SIGNING_METHOD,default=HS256"`
	ContextKey      string `env:"JWT_CONTEXT_KEY,default=user"`
	TokenExpiration int    `env:"JWT_TOKEN_EXPIRATION_HOURS,default=24"`
	TokenLookup     string `env:"JWT_TOKEN_LOOKUP,default=header:Authorization"`
	AuthScheme      string `env:"JWT_AUTH_SCHEME,default=Bearer"`
	Issuer          string `env:"JWT_ISSUER,default=user-service"`
	Audience        string `env:"JWT_AUDIENCE,default=user-service-clients"`

	FrontendURL string `env:"FRONTEND_URL,default=http://localhost:3000"`

	GoogleClientID     string `env:"OAUTH_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OAUTH_GOOGLE_CLIENT_SECRET"`
	GithubClientID     string `env:"OAUTH_GITHUB_CLIENT_ID"`
	GithubClientSecret string `env:"OAUTH_GITHUB_CLIENT_SECRET"`
	OAuthCallbackBase  string `env:"OAUTH_CALLBACK_BASE,default=http://localhost:8572"`

	CookieSecure bool `env:"COOKIE_SECURE,default=false"`
}

// GetSigningKey implements userauth.Config
func (c AppConfig) GetSigningKey() string { return c.SigningKey }

// GetSigningMethod implements userauth.Config
func (c AppConfig) GetSigningMethod() string { return c.SigningMethod }

// GetContextKey implements userauth.Config
func (c AppConfig) GetContextKey() string { return c.ContextKey }

// GetTokenExpiration implements userauth.Config
func (c AppConfig) GetTokenExpiration() int { return c.TokenExpiration }

// GetTokenLookup implements userauth.Config
func (c AppConfig) GetTokenLookup() string { return c.TokenLookup }

// GetAuthScheme implements userauth.Config
func (c AppConfig) GetAuthScheme() string { return c.AuthScheme }

// GetIssuer implements userauth.Config
func (c AppConfig) GetIssuer() string { return c.Issuer }

// GetAudience implements userauth.Config
func (c AppConfig) GetAudience() string { return c.Audience }

func main() {
	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	var cfg AppConfig
	if err := envdecode.Decode(&cfg); err != nil {
		zlog.Fatal("config", zap.Error(err))
	}

	if cfg.Debug {
		if dev, err := zap.NewDevelopment(); err == nil {
			zlog = dev
		}
	}

	logger := newZapLogger(zlog)

	ctx := context.Background()

	bunDB, err := openDatabase(ctx, cfg.DSN)
	if err != nil {
		zlog.Fatal("database", zap.Error(err))
	}
	defer bunDB.Close()

	repo := userauth.NewRepositoryManager(bunDB)
	repo.MustValidate()

	provider := userauth.NewUserProvider(repo.Users()).WithLogger(logger)

	sink := userauth.ActivitySinkFunc(func(ctx context.Context, event userauth.ActivityEvent) error {
		record := activitymap.Normalize(event)
		zlog.Info("activity",
			zap.String("verb", record.Verb),
			zap.String("actor_id", record.ActorID),
			zap.String("object_type", record.ObjectType),
			zap.String("object_id", record.ObjectID),
			zap.String("channel", record.Channel),
			zap.Any("metadata", record.Metadata),
			zap.Time("occurred_at", record.OccurredAt),
		)
		return nil
	})

	auther := userauth.NewAuthenticator(provider, cfg).
		WithLogger(logger).
		WithActivitySink(sink)

	policy := userauth.NewAccessPolicy().
		Public(
			"/login",
			"/register",
			"/token/validate",
			"/oauth2/*",
			"/health",
		)

	httpAuth, err := userauth.NewHTTPAuthenticator(auther, cfg)
	if err != nil {
		zlog.Fatal("http auth", zap.Error(err))
	}
	httpAuth.Logger = logger
	httpAuth.WithAccessPolicy(policy)
	httpAuth.WithSubjectVerifier(func(ctx context.Context, subject string) error {
		_, err := provider.FindIdentityByIdentifier(ctx, subject)
		return err
	})

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
			AppName:       "user-service",
		}))
	})

	srv.Router().Use(httpAuth.ProtectedRoute(cfg, httpAuth.MakeClientRouteAuthErrorHandler(false)))

	userauth.RegisterAuthRoutes(srv.Router().Group("/"),
		userauth.WithControllerLogger(logger),
		userauth.WithRepositoryManager(repo),
		userauth.WithAuthenticator(auther),
		userauth.WithTokenService(auther.TokenService()),
	)

	registerSocialRoutes(srv, cfg, repo, auther, sink, logger)

	zlog.Info("listening", zap.String("addr", cfg.HTTPAddr))
	srv.Serve(cfg.HTTPAddr)

	WaitExitSignal()
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}

func openDatabase(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.NewCreateTable().
		Model((*userauth.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

func registerSocialRoutes(
	srv router.Server[*fiber.App],
	cfg AppConfig,
	repo userauth.RepositoryManager,
	auther *userauth.Auther,
	sink userauth.ActivitySink,
	logger userauth.Logger,
) {
	// State secrets derive from the signing key so operators only manage
	// one secret.
	encKey := sha256.Sum256([]byte(cfg.SigningKey))
	macKey := sha256.Sum256([]byte(cfg.SigningKey + ":state-hmac"))

	stateManager := social.NewEncryptedStateManager(encKey[:], macKey[:], 10*time.Minute)
	reconciler := social.NewReconciler(repo.Users()).WithLogger(logger)

	opts := []social.SocialAuthOption{
		social.WithStateManager(stateManager),
		social.WithActivitySink(sink),
		social.WithLogger(logger),
	}

	if cfg.GoogleClientID != "" {
		opts = append(opts, social.WithProvider(google.New(google.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			CallbackURL:  cfg.OAuthCallbackBase + "/oauth2/google/callback",
		})))
	}

	if cfg.GithubClientID != "" {
		opts = append(opts, social.WithProvider(github.New(github.Config{
			ClientID:     cfg.GithubClientID,
			ClientSecret: cfg.GithubClientSecret,
			CallbackURL:  cfg.OAuthCallbackBase + "/oauth2/github/callback",
		})))
	}

	socialAuth := social.NewSocialAuthenticator(
		reconciler,
		auther.TokenService(),
		social.SocialAuthConfig{DefaultRedirectURL: cfg.FrontendURL},
		opts...,
	)

	controller := social.NewHTTPController(socialAuth, social.HTTPConfig{
		CookieName:      cfg.ContextKey,
		CookieSecure:    cfg.CookieSecure,
		CookieHTTPOnly:  true,
		SuccessRedirect: cfg.FrontendURL,
		ErrorRedirect:   cfg.FrontendURL + "/login?error=auth_failed",
	})

	controller.RegisterRoutes(srv.Router().Group("/oauth2"))
}

// zapLogger adapts zap to the key-value logging surface the auth
// components expect.
type zapLogger struct {
	s *zap.SugaredLogger
}

func newZapLogger(l *zap.Logger) zapLogger {
	return zapLogger{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }

var _ userauth.Logger = zapLogger{}
