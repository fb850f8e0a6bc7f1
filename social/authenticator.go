package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	userauth "github.com/clipnest/user-service"
)

// TokenIssuer mints the signed token handed back after a completed flow.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

// SocialAuthenticator orchestrates the OAuth2 login flow: state issuance,
// code exchange, profile fetch, and account reconciliation.
type SocialAuthenticator struct {
	providers    map[string]SocialProvider
	stateManager StateManager
	reconciler   *Reconciler
	tokens       TokenIssuer
	activitySink userauth.ActivitySink
	logger       userauth.Logger
	config       SocialAuthConfig
}

// SocialAuthConfig configures the authenticator.
type SocialAuthConfig struct {
	// DefaultRedirectURL is where users land after login when the flow
	// did not carry its own redirect.
	DefaultRedirectURL string

	// StateTTL bounds how long an issued state token is accepted.
	StateTTL time.Duration
}

type SocialAuthOption func(*SocialAuthenticator)

func NewSocialAuthenticator(
	reconciler *Reconciler,
	tokens TokenIssuer,
	cfg SocialAuthConfig,
	opts ...SocialAuthOption,
) *SocialAuthenticator {
	if cfg.StateTTL == 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	if cfg.DefaultRedirectURL == "" {
		cfg.DefaultRedirectURL = "/"
	}

	sa := &SocialAuthenticator{
		providers:  map[string]SocialProvider{},
		reconciler: reconciler,
		tokens:     tokens,
		logger:     userauth.DefaultLogger(),
		config:     cfg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	return sa
}

func WithProvider(provider SocialProvider) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if provider != nil {
			sa.providers[provider.Name()] = provider
		}
	}
}

func WithStateManager(sm StateManager) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.stateManager = sm
	}
}

func WithActivitySink(sink userauth.ActivitySink) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.activitySink = sink
	}
}

func WithLogger(logger userauth.Logger) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if logger != nil {
			sa.logger = logger
		}
	}
}

// BeginAuth starts the OAuth flow for the named provider.
func (sa *SocialAuthenticator) BeginAuth(
	ctx context.Context,
	providerName string,
	opts ...BeginAuthOption,
) (*AuthRedirect, error) {
	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	if sa.stateManager == nil {
		return nil, ErrInvalidState
	}

	cfg := &beginAuthConfig{
		redirectURL: sa.config.DefaultRedirectURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	codeChallenge := computeCodeChallenge(codeVerifier)

	state := &OAuthState{
		Nonce:        generateNonce(),
		Provider:     providerName,
		CodeVerifier: codeVerifier,
		RedirectURL:  cfg.redirectURL,
		IssuedAt:     time.Now().Unix(),
		ExpiresAt:    time.Now().Add(sa.config.StateTTL).Unix(),
	}

	stateToken, err := sa.stateManager.Encode(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	authURL := provider.AuthCodeURL(stateToken, WithPKCE(codeChallenge, "S256"))

	return &AuthRedirect{
		URL:      authURL,
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// CompleteAuth finishes the OAuth flow after callback.
func (sa *SocialAuthenticator) CompleteAuth(
	ctx context.Context,
	providerName string,
	code string,
	stateToken string,
) (*AuthResult, error) {
	if sa.stateManager == nil {
		return nil, ErrInvalidState
	}

	state, err := sa.stateManager.Decode(stateToken)
	if err != nil {
		if errors.Is(err, ErrStateExpired) {
			return nil, ErrStateExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if state.Provider != providerName {
		return nil, fmt.Errorf("%w: provider mismatch", ErrInvalidState)
	}

	if time.Now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}

	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, "exchange", err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, providerName, "user_info", err)
	}

	user, isNewUser, err := sa.reconciler.Reconcile(ctx, profile)
	if err != nil {
		return nil, err
	}

	jwtToken, err := sa.tokens.Issue(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if sa.activitySink != nil {
		_ = sa.activitySink.Record(ctx, userauth.ActivityEvent{
			EventType:  userauth.ActivityEventSocialLogin,
			UserID:     user.ID.String(),
			Actor:      userauth.ActorRef{Type: "social", ID: providerName},
			OccurredAt: time.Now(),
			Metadata: map[string]any{
				"provider":         providerName,
				"provider_user_id": profile.ProviderUserID,
				"is_new_user":      isNewUser,
			},
		})
	}

	return &AuthResult{
		User:        user,
		Token:       jwtToken,
		IsNewUser:   isNewUser,
		Provider:    providerName,
		Profile:     profile,
		RedirectURL: state.RedirectURL,
	}, nil
}

// ListProviders returns all registered providers.
func (sa *SocialAuthenticator) ListProviders() []ProviderInfo {
	var providers []ProviderInfo
	for name := range sa.providers {
		providers = append(providers, ProviderInfo{
			Name: name,
		})
	}
	return providers
}

// ProviderInfo describes a registered provider.
type ProviderInfo struct {
	Name string `json:"name"`
}

// AuthRedirect is the result of BeginAuth.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// AuthResult is the result of CompleteAuth.
type AuthResult struct {
	User        *userauth.User
	Token       string
	IsNewUser   bool
	Provider    string
	Profile     *SocialProfile
	RedirectURL string
}

// BeginAuthOption configures BeginAuth.
type BeginAuthOption func(*beginAuthConfig)

type beginAuthConfig struct {
	redirectURL string
}

// WithRedirectURL sets where the user lands after the flow completes.
func WithRedirectURL(url string) BeginAuthOption {
	return func(c *beginAuthConfig) {
		if url != "" {
			c.redirectURL = url
		}
	}
}
