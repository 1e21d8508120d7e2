package keycloakauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/dunv/uhttp"
	"github.com/dunv/ulog"
)

const HeaderForwardedUser = "X-Forwarded-User"

var ErrNoPrincipal = errors.New("no authenticated principal")

// NewUpstreamHandler forwards requests to the admin upstream. The authenticated
// principal, if any, is passed on in X-Forwarded-User. Without an upstream the
// principal of the request is rendered instead.
func NewUpstreamHandler(u *uhttp.UHTTP, upstream *url.URL) http.HandlerFunc {
	if upstream == nil {
		return principalHandler(u)
	}

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Header.Del(HeaderForwardedUser)
		if principal, ok := PrincipalFromContext(r.Context()); ok {
			r.Header.Set(HeaderForwardedUser, principal.Name())
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		u.RenderError(w, r, fmt.Errorf("upstream %s unavailable (%w)", upstream.Host, err), http.StatusBadGateway)
	}
	return proxy.ServeHTTP
}

type principalModel struct {
	Name        string   `json:"name"`
	Authorities []string `json:"authorities"`
}

// principalHandler renders the principal of the request.
func principalHandler(u *uhttp.UHTTP) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			u.RenderError(w, r, ErrNoPrincipal, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		ulog.LogIfError(json.NewEncoder(w).Encode(principalModel{
			Name:        principal.Name(),
			Authorities: principal.Authorities.Strings(),
		}))
	}
}

// Chain wraps handler in middlewares, the first one ends up outermost.
func Chain(handler http.HandlerFunc, middlewares ...uhttp.Middleware) http.HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// Mount registers a plain handler behind middlewares for the methods the admin
// UI uses.
func Mount(u *uhttp.UHTTP, pattern string, handler http.HandlerFunc, middlewares ...uhttp.Middleware) {
	handler = Chain(handler, middlewares...)
	handle := func(r *http.Request, returnCode *int) interface{} {
		w := r.Context().Value(uhttp.CtxKeyResponseWriter).(http.ResponseWriter)
		handler(w, r)
		return nil
	}
	u.Handle(pattern, uhttp.NewHandler(
		uhttp.WithGet(handle),
		uhttp.WithPost(handle),
		uhttp.WithDelete(handle),
	))
}
