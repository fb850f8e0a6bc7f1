package userauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService issues and validates the service's bearer tokens.
type TokenService interface {
	Issue(subject string) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
	VerifySubject(tokenString, expectedSubject string) error
	PeekSubject(tokenString string) (string, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        string
	logger          Logger
}

// NewTokenService creates a new TokenService instance. tokenExpiration is
// the token TTL in hours.
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, audience string, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		audience:        audience,
		logger:          logger,
	}
}

// Issue creates a signed JWT for the given subject with the configured TTL
func (ts *TokenServiceImpl) Issue(subject string) (string, error) {
	now := time.Now()

	var audience jwt.ClaimStrings
	if ts.audience != "" {
		audience = jwt.ClaimStrings{ts.audience}
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.tokenExpiration) * time.Hour)),
		},
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if ts.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrUnableToDecodeSession
}

// VerifySubject validates the token and checks it was issued for the
// expected subject. The signature check runs first so forged input never
// reaches the subject comparison.
func (ts *TokenServiceImpl) VerifySubject(tokenString, expectedSubject string) error {
	claims, err := ts.Validate(tokenString)
	if err != nil {
		return err
	}

	if claims.Subject() != expectedSubject {
		ts.logger.Warn("TokenService subject mismatch", "expected", expectedSubject)
		return ErrTokenSubjectMismatch
	}

	return nil
}

// PeekSubject decodes the subject claim without verifying the signature.
// Only for internal use, e.g. resolving the directory record ahead of a
// full verification; never a trust decision on its own.
func (ts *TokenServiceImpl) PeekSubject(tokenString string) (string, error) {
	parser := jwt.NewParser()

	claims := &JWTClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return "", errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	return claims.Subject(), nil
}
