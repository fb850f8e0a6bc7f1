package userauth

import (
	"context"

	"github.com/clipnest/user-service/middleware/jwtware"
)

// ContextEnricherAdapter stores the verified claims in the standard context
// so handlers working off context.Context can read them via GetClaims.
func ContextEnricherAdapter(c context.Context, claims *jwtware.Claims) context.Context {
	if claims == nil {
		return c
	}
	return WithClaimsContext(c, claims)
}
