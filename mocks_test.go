package userauth_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"

	userauth "github.com/clipnest/user-service"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAuthenticator implements userauth.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, username, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthenticator) SessionFromToken(token string) (userauth.Session, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(userauth.Session), args.Error(1)
}

func (m *MockAuthenticator) IdentityFromSession(ctx context.Context, session userauth.Session) (userauth.Identity, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(userauth.Identity), args.Error(1)
}

// MockLoginPayload implements userauth.LoginPayload
type MockLoginPayload struct {
	Identifier string
	Password   string
}

func (m MockLoginPayload) GetIdentifier() string {
	return m.Identifier
}

func (m MockLoginPayload) GetPassword() string {
	return m.Password
}

// testConfig implements userauth.Config with sensible test values.
type testConfig struct {
	signingKey string
	expiration int
	issuer     string
	audience   string
}

func newTestConfig() testConfig {
	return testConfig{
		signingKey: "test-signing-key",
		expiration: 1,
		issuer:     "user-service",
		audience:   "user-service-clients",
	}
}

func (c testConfig) GetSigningKey() string    { return c.signingKey }
func (c testConfig) GetSigningMethod() string { return "HS256" }
func (c testConfig) GetContextKey() string    { return "user" }
func (c testConfig) GetTokenExpiration() int  { return c.expiration }
func (c testConfig) GetTokenLookup() string   { return "header:Authorization" }
func (c testConfig) GetAuthScheme() string    { return "Bearer" }
func (c testConfig) GetIssuer() string        { return c.issuer }
func (c testConfig) GetAudience() string      { return c.audience }

// memoryDirectory is an in-memory userauth.UserDirectory.
type memoryDirectory struct {
	mu    sync.Mutex
	users []*userauth.User
}

func (d *memoryDirectory) FindByUsername(ctx context.Context, username string) (*userauth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (d *memoryDirectory) FindByEmail(ctx context.Context, email string) (*userauth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (d *memoryDirectory) Save(ctx context.Context, user *userauth.User) (*userauth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, userauth.ErrDuplicateUser
		}
	}
	d.users = append(d.users, user)
	return user, nil
}

// stubUsers backs the Users interface with a memoryDirectory. Methods not
// overridden panic on use, which is what we want in tests.
type stubUsers struct {
	userauth.Users
	dir *memoryDirectory
}

func (s *stubUsers) FindByUsername(ctx context.Context, username string) (*userauth.User, error) {
	return s.dir.FindByUsername(ctx, username)
}

func (s *stubUsers) FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*userauth.User, error) {
	return s.dir.FindByUsername(ctx, username)
}

func (s *stubUsers) FindByEmail(ctx context.Context, email string) (*userauth.User, error) {
	return s.dir.FindByEmail(ctx, email)
}

func (s *stubUsers) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*userauth.User, error) {
	return s.dir.FindByEmail(ctx, email)
}

func (s *stubUsers) Save(ctx context.Context, record *userauth.User) (*userauth.User, error) {
	return s.dir.Save(ctx, record)
}

func (s *stubUsers) SaveTx(ctx context.Context, tx bun.IDB, record *userauth.User) (*userauth.User, error) {
	return s.dir.Save(ctx, record)
}

func (s *stubUsers) Create(ctx context.Context, record *userauth.User, criteria ...repository.InsertCriteria) (*userauth.User, error) {
	return s.dir.Save(ctx, record)
}

func (s *stubUsers) CreateTx(ctx context.Context, tx bun.IDB, record *userauth.User, criteria ...repository.InsertCriteria) (*userauth.User, error) {
	return s.dir.Save(ctx, record)
}

// stubRepoManager satisfies RepositoryManager without a database. RunInTx
// calls the function with a zero transaction, the stubUsers never touch it.
type stubRepoManager struct {
	users *stubUsers
}

func newStubRepoManager(dir *memoryDirectory) *stubRepoManager {
	return &stubRepoManager{users: &stubUsers{dir: dir}}
}

func (m *stubRepoManager) Users() userauth.Users { return m.users }

func (m *stubRepoManager) Validate() error { return nil }

func (m *stubRepoManager) MustValidate() {}

func (m *stubRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

// recordingContext embeds the router mock and captures the response surface
// the handlers use, so assertions read plain fields instead of expectations.
type recordingContext struct {
	*router.MockContext
	bindPayload any
	bindErr     error

	status    int
	sentBody  string
	jsonBody  any
	cookies   []*router.Cookie
	redirects []string
}

func newRecordingContext() *recordingContext {
	return &recordingContext{MockContext: router.NewMockContext()}
}

func (c *recordingContext) Context() context.Context {
	return context.Background()
}

func (c *recordingContext) Bind(i any) error {
	if c.bindErr != nil {
		return c.bindErr
	}
	if c.bindPayload == nil {
		return nil
	}
	raw, err := json.Marshal(c.bindPayload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, i)
}

func (c *recordingContext) Status(code int) router.Context {
	c.status = code
	return c
}

func (c *recordingContext) SendString(s string) error {
	c.sentBody = s
	return nil
}

func (c *recordingContext) JSON(code int, val any) error {
	c.status = code
	c.jsonBody = val
	return nil
}

func (c *recordingContext) Cookie(cookie *router.Cookie) {
	c.cookies = append(c.cookies, cookie)
}

func (c *recordingContext) Redirect(path string, status ...int) error {
	c.redirects = append(c.redirects, path)
	if len(status) > 0 {
		c.status = status[0]
	}
	return nil
}

func (c *recordingContext) GetString(key string, def string) string {
	if v, ok := c.HeadersM[key]; ok {
		return v
	}
	return def
}

func (c *recordingContext) jsonMap() map[string]any {
	switch body := c.jsonBody.(type) {
	case map[string]any:
		return body
	case map[string]string:
		out := make(map[string]any, len(body))
		for k, v := range body {
			out[k] = v
		}
		return out
	case map[string]bool:
		out := make(map[string]any, len(body))
		for k, v := range body {
			out[k] = v
		}
		return out
	}
	return nil
}
