package auth

import (
	"context"
	"net/http"
	"net/url"

	"ms-events/internal/logger"
	"ms-events/internal/models"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal stores the caller on the context.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller, or nil for anonymous requests.
func PrincipalFrom(ctx context.Context) *models.Principal {
	if p, ok := ctx.Value(principalKey).(*models.Principal); ok {
		return p
	}
	return nil
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if p := PrincipalFrom(ctx); p != nil {
		return p.UserID
	}
	return ""
}

// Middleware resolves the principal when a token is present. Anonymous
// requests pass through; pages decide for themselves whether to require a user.
func Middleware(v Verifier, cookieName string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r, cookieName)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				// stale cookies are common; treat the caller as anonymous
				log.LogSecurity("INVALID_TOKEN", r.URL.Path+" - "+err.Error())
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireUser redirects anonymous page requests to the login URL, keeping
// the current path in ?next= so the user comes back after signing in.
func RequireUser(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserID(r.Context()) == "" {
				http.Redirect(w, r, LoginRedirect(loginURL, r.URL.RequestURI()), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginRedirect builds the login URL carrying the page to return to.
func LoginRedirect(loginURL, next string) string {
	u, err := url.Parse(loginURL)
	if err != nil {
		return loginURL
	}
	q := u.Query()
	q.Set("next", next)
	u.RawQuery = q.Encode()
	return u.String()
}
