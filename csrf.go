package keycloakauth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/dunv/uhttp"
	"github.com/dunv/ulog"
)

var ErrInvalidCsrfToken = errors.New("invalid csrf token")

// CsrfProtect requires the session's csrf token on state changing requests.
// It has to run after RequireAuth or AuthHybrid. Requests authenticated by bearer
// token carry no session and pass, as do the ignored paths.
func CsrfProtect(u *uhttp.UHTTP, ignoredPaths ...string) uhttp.Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				next.ServeHTTP(w, r)
				return
			}
			for _, path := range ignoredPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			session := sessionFromContext(r.Context())
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-XSRF-TOKEN")
			if token == "" {
				token = r.Header.Get("X-CSRF-TOKEN")
			}
			if token == "" && strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
				token = r.PostFormValue("_csrf")
			}

			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(session.CsrfToken)) != 1 {
				ulog.Tracef("Forbidden: invalid csrf token for %s %s", r.Method, r.URL.Path)
				u.RenderError(w, r, ErrInvalidCsrfToken, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}
	}
}
