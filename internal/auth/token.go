package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"ms-events/internal/models"
)

var (
	ErrMissingToken = errors.New("access token is missing")
	ErrInvalidToken = errors.New("access token is invalid")
)

// Verifier turns a raw access token into the caller's principal.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*models.Principal, error)
}

// ExtractTokenFromRequest reads the access token from the Authorization
// header, falling back to the session cookie set by the auth provider.
func ExtractTokenFromRequest(r *http.Request, cookieName string) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// Bearer token format: "Bearer {token}"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", errors.New("authorization header format must be 'Bearer {token}'")
		}
		return parts[1], nil
	}

	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", ErrMissingToken
}

// UserClaims is the payload of tokens issued by the hosted auth provider.
type UserClaims struct {
	Email        string `json:"email,omitempty"`
	UserMetadata struct {
		FullName string `json:"full_name,omitempty"`
	} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// HS256Verifier checks tokens signed with the provider's shared secret.
type HS256Verifier struct {
	Secret []byte
	// Audience is optional; when set the aud claim must contain it.
	Audience string
}

func NewHS256Verifier(secret, audience string) *HS256Verifier {
	return &HS256Verifier{Secret: []byte(secret), Audience: audience}
}

func (v *HS256Verifier) Verify(_ context.Context, rawToken string) (*models.Principal, error) {
	if rawToken == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}

	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject claim not found in token", ErrInvalidToken)
	}

	return &models.Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.UserMetadata.FullName,
	}, nil
}
