package userauth_test

import (
	"net/http"
	"testing"

	userauth "github.com/clipnest/user-service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, dir *memoryDirectory, opts ...userauth.AuthControllerOption) (*userauth.AuthController, *MockAuthenticator) {
	t.Helper()

	auther := new(MockAuthenticator)

	base := []userauth.AuthControllerOption{
		userauth.WithRepositoryManager(newStubRepoManager(dir)),
		userauth.WithAuthenticator(auther),
		userauth.WithTokenService(newTokenService()),
	}

	return userauth.NewAuthController(append(base, opts...)...), auther
}

func TestLoginPost(t *testing.T) {
	controller, auther := newTestController(t, &memoryDirectory{})
	auther.On("Login", mock.Anything, "alice", "secret").Return("signed.token", nil)

	ctx := newRecordingContext()
	ctx.bindPayload = map[string]string{"username": "alice", "password": "secret"}

	require.NoError(t, controller.LoginPost(ctx))

	assert.Equal(t, http.StatusOK, ctx.status)
	assert.Equal(t, "signed.token", ctx.jsonMap()["token"])
	auther.AssertExpectations(t)
}

func TestLoginPostInvalidCredentials(t *testing.T) {
	controller, auther := newTestController(t, &memoryDirectory{})
	auther.On("Login", mock.Anything, "alice", "wrong").
		Return("", userauth.ErrMismatchedHashAndPassword)

	ctx := newRecordingContext()
	ctx.bindPayload = map[string]string{"username": "alice", "password": "wrong"}

	require.NoError(t, controller.LoginPost(ctx))

	assert.Equal(t, http.StatusUnauthorized, ctx.status)
	assert.Equal(t, "Invalid username or password", ctx.jsonMap()["error"])
}

func TestLoginPostBindError(t *testing.T) {
	controller, _ := newTestController(t, &memoryDirectory{})

	ctx := newRecordingContext()
	ctx.bindErr = assert.AnError

	require.NoError(t, controller.LoginPost(ctx))
	assert.Equal(t, http.StatusBadRequest, ctx.status)
}

func TestLoginPostValidation(t *testing.T) {
	controller, auther := newTestController(t, &memoryDirectory{})

	ctx := newRecordingContext()
	ctx.bindPayload = map[string]string{"username": "alice"}

	require.NoError(t, controller.LoginPost(ctx))

	assert.Equal(t, http.StatusBadRequest, ctx.status)
	body := ctx.jsonMap()
	assert.Equal(t, "Validation failed", body["error"])
	validation, ok := body["validation"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, validation, "password")
	auther.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistrationCreate(t *testing.T) {
	dir := &memoryDirectory{}
	controller, _ := newTestController(t, dir)

	ctx := newRecordingContext()
	ctx.bindPayload = map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "a long enough password",
	}

	require.NoError(t, controller.RegistrationCreate(ctx))

	assert.Equal(t, http.StatusCreated, ctx.status)
	body := ctx.jsonMap()
	assert.Equal(t, "Registration successful", body["message"])
	assert.Equal(t, "alice", body["username"])
	assert.NotEmpty(t, body["id"])

	stored, err := dir.FindByUsername(ctx.Context(), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)
}

func TestRegistrationCreateConflict(t *testing.T) {
	dir := &memoryDirectory{}
	_, err := dir.Save(nil, &userauth.User{
		ID:       uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)

	controller, _ := newTestController(t, dir)

	ctx := newRecordingContext()
	ctx.bindPayload = map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "a long enough password",
	}

	require.NoError(t, controller.RegistrationCreate(ctx))

	assert.Equal(t, http.StatusConflict, ctx.status)
	assert.Equal(t, "Username or email already exists", ctx.jsonMap()["error"])
}

func TestRegistrationCreateValidation(t *testing.T) {
	controller, _ := newTestController(t, &memoryDirectory{})

	ctx := newRecordingContext()
	ctx.bindPayload = map[string]string{
		"username": "alice",
		"email":    "not-an-email",
		"password": "short",
	}

	require.NoError(t, controller.RegistrationCreate(ctx))

	assert.Equal(t, http.StatusBadRequest, ctx.status)
	body := ctx.jsonMap()
	validation, ok := body["validation"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, validation, "email")
	assert.Contains(t, validation, "password")
}

func TestExistGet(t *testing.T) {
	dir := &memoryDirectory{}
	_, err := dir.Save(nil, &userauth.User{
		ID:       uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)

	controller, _ := newTestController(t, dir)

	tests := []struct {
		name           string
		queries        map[string]string
		usernameExists bool
		emailExists    bool
	}{
		{
			name:           "both taken",
			queries:        map[string]string{"username": "alice", "email": "alice@example.com"},
			usernameExists: true,
			emailExists:    true,
		},
		{
			name:           "username free",
			queries:        map[string]string{"username": "bob", "email": "alice@example.com"},
			usernameExists: false,
			emailExists:    true,
		},
		{
			name:    "no params",
			queries: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newRecordingContext()
			ctx.QueriesM = tt.queries

			require.NoError(t, controller.ExistGet(ctx))

			assert.Equal(t, http.StatusOK, ctx.status)
			body := ctx.jsonMap()
			assert.Equal(t, tt.usernameExists, body["usernameExists"])
			assert.Equal(t, tt.emailExists, body["emailExists"])
		})
	}
}

func TestTokenValidateGet(t *testing.T) {
	dir := &memoryDirectory{}
	_, err := dir.Save(nil, &userauth.User{
		ID:       uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)

	tokens := newTokenService()
	controller, _ := newTestController(t, dir, userauth.WithTokenService(tokens))

	valid, err := tokens.Issue("alice")
	require.NoError(t, err)

	unknown, err := tokens.Issue("mallory")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "Token is valid"},
		{"no header", "", http.StatusBadRequest, "Invalid Authorization header"},
		{"wrong scheme", "Basic " + valid, http.StatusBadRequest, "Invalid Authorization header"},
		{"lowercase scheme", "bearer " + valid, http.StatusBadRequest, "Invalid Authorization header"},
		{"garbage token", "Bearer not-a-jwt", http.StatusBadRequest, "Invalid token"},
		{"unknown subject", "Bearer " + unknown, http.StatusBadRequest, "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newRecordingContext()
			if tt.header != "" {
				ctx.HeadersM["Authorization"] = tt.header
			}

			require.NoError(t, controller.TokenValidateGet(ctx))

			assert.Equal(t, tt.status, ctx.status)
			assert.Equal(t, tt.body, ctx.sentBody)
		})
	}
}

func TestTokenValidateGetExpired(t *testing.T) {
	dir := &memoryDirectory{}
	_, err := dir.Save(nil, &userauth.User{
		ID:       uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)

	tokens := newTokenService(func(c *testConfig) { c.expiration = -1 })
	controller, _ := newTestController(t, dir, userauth.WithTokenService(tokens))

	expired, err := tokens.Issue("alice")
	require.NoError(t, err)

	ctx := newRecordingContext()
	ctx.HeadersM["Authorization"] = "Bearer " + expired

	require.NoError(t, controller.TokenValidateGet(ctx))

	assert.Equal(t, http.StatusBadRequest, ctx.status)
	assert.Equal(t, "Invalid token", ctx.sentBody)
}

func TestHealthGet(t *testing.T) {
	controller, _ := newTestController(t, &memoryDirectory{})

	ctx := newRecordingContext()
	require.NoError(t, controller.HealthGet(ctx))

	assert.Equal(t, http.StatusOK, ctx.status)
	assert.Equal(t, "UP", ctx.jsonMap()["status"])
}

func TestFormatValidationErrorToMap(t *testing.T) {
	payload := userauth.RegistrationCreatePayload{Username: "alice"}
	out := userauth.FormatValidationErrorToMap(payload.Validate())
	assert.Contains(t, out, "email")
	assert.Contains(t, out, "password")
	assert.NotContains(t, out, "username")

	out = userauth.FormatValidationErrorToMap(assert.AnError)
	assert.Contains(t, out, "payload")
}
