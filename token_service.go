package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenService signs and validates the session cookie. The cookie never
// carries identity data, only the server-side session ID wrapped in a
// signed token so a tampered cookie is rejected before any store lookup.
type TokenService struct {
	signingKey []byte
	duration   time.Duration
	issuer     string
	logger     Logger
}

func NewTokenService(signingKey []byte, durationHours int, issuer string, logger Logger) *TokenService {
	if durationHours <= 0 {
		durationHours = 24
	}
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenService{
		signingKey: signingKey,
		duration:   time.Duration(durationHours) * time.Hour,
		issuer:     issuer,
		logger:     logger,
	}
}

// Duration returns the lifetime of issued session tokens.
func (ts *TokenService) Duration() time.Duration {
	return ts.duration
}

// SignSessionID wraps a session ID in a signed token.
func (ts *TokenService) SignSessionID(sessionID string) (string, error) {
	if sessionID == "" {
		return "", goerrors.New("session id is required", goerrors.CategoryBadInput)
	}

	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Issuer:    ts.issuer,
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ts.duration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// SessionIDFromToken validates a session token and extracts the session ID.
func (ts *TokenService) SessionIDFromToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return ts.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		ts.logger.Debug("session token rejected: %v", err)
		return "", ErrUnableToDecodeSession
	}

	if claims.Subject == "" {
		return "", ErrUnableToDecodeSession
	}

	if ts.issuer != "" && claims.Issuer != ts.issuer {
		return "", ErrUnableToDecodeSession
	}

	return claims.Subject, nil
}
