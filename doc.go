// Package userauth implements the authentication core of the user service:
// JWT issuance and validation, credential verification against the user
// directory, and the access policy consulted by the request authentication
// middleware.
//
// Tokens are stateless: every request is authenticated from the bearer token
// it carries, and no session state is kept server side. The middleware in
// middleware/jwtware runs once per request, resolves the token subject
// against the directory, and attaches the resulting session to the request
// context.
//
// OAuth2 federation lives in the social package: provider profiles are
// reconciled onto local user records keyed by email, creating
// password-less accounts on first login.
package userauth
