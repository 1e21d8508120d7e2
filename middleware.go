package keycloakauth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dunv/uhelpers"
	"github.com/dunv/uhttp"
	"github.com/dunv/ulog"
)

var (
	ErrUnauthorized = errors.New("Unauthorized")
	ErrForbidden    = errors.New("Forbidden")
)

// Require an authenticated session for this handler.
// If a hasAccessFn is passed it will also perform authorization
func (k *KeycloakAuth) RequireAuth(u *uhttp.UHTTP, hasAccessFns ...HasAccessFn) uhttp.Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			session := k.sessions.Get(r)
			if session == nil {
				ulog.Tracef("no session for %s", r.URL.Path)
				k.commence(u, w, r)
				return
			}
			k.authorize(u, w, r, "session", session, session.Principal, hasAccessFns, next)
		}
	}
}

// Protect guards handler the way every application path is guarded: bearer token
// or session, then hasAccessFns, then the csrf check for session requests.
// CsrfProtect only sees a session once AuthHybrid has run, so the order is fixed.
func (k *KeycloakAuth) Protect(u *uhttp.UHTTP, handler http.HandlerFunc, hasAccessFns ...HasAccessFn) http.HandlerFunc {
	return Chain(handler,
		k.AuthHybrid(u, hasAccessFns...),
		CsrfProtect(u, PathLogout),
	)
}

// authorize checks the principal against hasAccessFns and continues with the
// principal (and its session, if any) in the request context.
func (k *KeycloakAuth) authorize(
	u *uhttp.UHTTP,
	w http.ResponseWriter,
	r *http.Request,
	authMethod string,
	session *Session,
	principal *Principal,
	hasAccessFns []HasAccessFn,
	next http.HandlerFunc,
) {
	// go through all accessFns and check if any one of them grants access.
	// If no function is defined: no further authorization is needed
	accessGranted := len(hasAccessFns) == 0
	for _, hasAccessFn := range hasAccessFns {
		if hasAccessFn(*principal) {
			accessGranted = true
			break
		}
	}

	if !accessGranted {
		ulog.Tracef("Forbidden: %s does not have access to %s", principal.Name(), r.URL.Path)
		u.RenderError(w, r, ErrForbidden, http.StatusForbidden)
		return
	}

	// add user to context
	ctx := context.WithValue(r.Context(), CtxKeyPrincipal, principal)
	if session != nil {
		ctx = context.WithValue(ctx, CtxKeySession, session)
	}
	ulog.LogIfError(uhttp.AddLogOutput(w, "authMethod", authMethod))
	ulog.LogIfError(uhttp.AddLogOutput(w, "user", principal.Name()))
	next.ServeHTTP(w, r.WithContext(ctx))
}

// commence starts the login: browsers are redirected to the login entry point,
// script clients get a 401.
func (k *KeycloakAuth) commence(u *uhttp.UHTTP, w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		(strings.Contains(r.Header.Get("Accept"), "application/json") && !strings.Contains(r.Header.Get("Accept"), "text/html")) {
		u.RenderError(w, r, ErrUnauthorized, http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, PathLogin, http.StatusFound)
}

// PrincipalFromContext returns the principal stored by the auth middlewares.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(CtxKeyPrincipal).(*Principal)
	return principal, ok && principal != nil
}

func sessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(CtxKeySession).(*Session)
	return session
}

type HasAccessFn func(Principal) bool

// HasAuthority grants access when the principal holds any of the authorities.
func HasAuthority(authorities ...Authority) HasAccessFn {
	return func(p Principal) bool {
		for _, authority := range authorities {
			if p.Authorities.Contains(authority) {
				return true
			}
		}
		return false
	}
}

// LimitAccessToOr grants access when the principal holds any of the client roles
// of resource.
func LimitAccessToOr(resource string, roles ...string) HasAccessFn {
	return func(p Principal) bool {
		if resource, ok := p.Token.ResourceAccess[resource]; ok {
			for _, role := range resource.Roles {
				if uhelpers.SliceContainsItem(roles, role) {
					return true
				}
			}
		}
		return false
	}
}
