package web

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/csrf"

	"ms-events/internal/auth"
	"ms-events/internal/i18n"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying connection.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijack not supported")
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.Logger.LogAPI(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start).String())
	})
}

// localize picks the language from Accept-Language and stores a Localizer
// bound to the application timezone.
func (s *Server) localize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := s.Translator.Match(r.Header.Get("Accept-Language"))
		l := s.Translator.For(lang, s.Location)
		w.Header().Set("Content-Language", lang)
		next.ServeHTTP(w, r.WithContext(i18n.WithLocalizer(r.Context(), l)))
	})
}

// csrfProtect guards cookie-authenticated writes. Requests carrying an
// Authorization header cannot be forged cross-site and skip the check.
func (s *Server) csrfProtect() func(http.Handler) http.Handler {
	protect := csrf.Protect(s.CSRFKey,
		csrf.Secure(s.App.SecureCookies),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailed)),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.App.SecureCookies {
				r = csrf.PlaintextHTTPRequest(r)
			}
			if r.Header.Get("Authorization") != "" {
				r = csrf.UnsafeSkipCheck(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func (s *Server) csrfFailed(w http.ResponseWriter, r *http.Request) {
	s.Logger.LogSecurity("CSRF_REJECTED", fmt.Sprintf("%s %s user=%s - %v", r.Method, r.URL.Path, auth.UserID(r.Context()), csrf.FailureReason(r)))
	if isAPI(r) {
		s.writeError(w, http.StatusForbidden, "csrf", "invalid CSRF token", "error.generic", r)
		return
	}
	http.Error(w, "Forbidden - invalid CSRF token", http.StatusForbidden)
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
