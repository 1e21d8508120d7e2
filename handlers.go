package keycloakauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/dunv/uhttp"
	"github.com/dunv/ulog"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	ErrInvalidState    = errors.New("state-cookie and state from redirect do not match")
	ErrNonceMismatch   = errors.New("nonce-cookie and id_token.nonce do not match")
	ErrMissingIDToken  = errors.New("token response carries no id_token")
	ErrSubjectMismatch = errors.New("user-info subject does not match id_token subject")
)

// SetupHandlers registers the login entry point, the redirect callback and logout.
func (k *KeycloakAuth) SetupHandlers(u *uhttp.UHTTP) {
	u.Handle(PathLogin, uhttp.NewHandler(uhttp.WithGet(k.handleLogin)))
	u.Handle(PathCallback, uhttp.NewHandler(uhttp.WithGet(k.handleCallback)))
	u.Handle(PathLogout, uhttp.NewHandler(
		uhttp.WithGet(k.handleLogout),
		uhttp.WithPost(k.handleLogout),
	))
}

func (k *KeycloakAuth) handleLogin(r *http.Request, returnCode *int) interface{} {
	w := r.Context().Value(uhttp.CtxKeyResponseWriter).(http.ResponseWriter)

	// create and set state in client
	state := uuid.New().String()
	http.SetCookie(w, shortLivedCookie(r, stateCookieName, state))

	// create and set nonce in client
	nonce := uuid.New().String()
	http.SetCookie(w, shortLivedCookie(r, nonceCookieName, nonce))

	// redirect user
	url := k.oauth2Config.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("redirect_uri", k.redirectURI(r)),
	)
	http.Redirect(w, r, url, http.StatusFound)
	return nil
}

func (k *KeycloakAuth) handleCallback(r *http.Request, returnCode *int) interface{} {
	w := r.Context().Value(uhttp.CtxKeyResponseWriter).(http.ResponseWriter)

	principal, err := k.completeLogin(r)
	if err != nil {
		ulog.Warnf("login failed (%s)", err)
		*returnCode = http.StatusUnauthorized
		return err
	}

	clearCookie(w, stateCookieName)
	clearCookie(w, nonceCookieName)
	k.sessions.Create(w, r, principal)
	ulog.Infof("user %s logged in with %v", principal.Name(), principal.Authorities.Strings())

	http.Redirect(w, r, "/", http.StatusFound)
	return nil
}

// completeLogin runs the authorization code exchange and resolves the principal.
func (k *KeycloakAuth) completeLogin(r *http.Request) (*Principal, error) {
	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		return nil, &OAuth2Error{Code: providerErr, Description: query.Get("error_description")}
	}

	// compare value in get-request (from redirect) to value saved in cookie
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		return nil, errors.New("stateCookie not found")
	}
	if query.Get("state") != stateCookie.Value {
		return nil, ErrInvalidState
	}

	// Exchange code with token (talking to oAuth server)
	ctx := k.clientContext(r.Context())
	token, err := k.oauth2Config.Exchange(ctx, query.Get("code"),
		oauth2.SetAuthURLParam("redirect_uri", k.redirectURI(r)),
	)
	if err != nil {
		return nil, fmt.Errorf("could not exchange code (%w)", err)
	}

	// Extract, parse and validate id_token
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, ErrMissingIDToken
	}
	idToken, err := k.idTokenVerifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("could not verify id_token (%w)", err)
	}

	// compare value saved in cookie with value encoded in id_token
	nonceCookie, err := r.Cookie(nonceCookieName)
	if err != nil {
		return nil, errors.New("nonceCookie not found")
	}
	if idToken.Nonce != nonceCookie.Value {
		return nil, ErrNonceMismatch
	}

	claims := Claims{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("could not extract claims from id_token (%w)", err)
	}

	var userInfo Claims
	if k.userInfo != nil {
		userInfo, err = k.userInfo.Fetch(r.Context(), token.AccessToken)
		if err != nil {
			return nil, err
		}
		if sub := userInfo.String("sub"); sub != idToken.Subject {
			return nil, ErrSubjectMismatch
		}
	}

	return newPrincipal(k.grantedScopes(token), claims, userInfo, rawIDToken, k.userNameAttribute), nil
}

// grantedScopes are the scopes of the token response, or the requested ones when
// the provider did not echo them.
func (k *KeycloakAuth) grantedScopes(token *oauth2.Token) []string {
	if scope, ok := token.Extra("scope").(string); ok && strings.TrimSpace(scope) != "" {
		return strings.Fields(scope)
	}
	return k.oauth2Config.Scopes
}

func (k *KeycloakAuth) redirectURI(r *http.Request) string {
	return k.requestBaseURL(r) + PathCallback
}

// requestBaseURL is the configured base url or scheme://host of the request.
// Forwarded headers only count when they are trusted.
func (k *KeycloakAuth) requestBaseURL(r *http.Request) string {
	if k.baseURL != "" {
		return strings.TrimSuffix(k.baseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if k.trustForwarded {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		if forwardedHost := r.Header.Get("X-Forwarded-Host"); forwardedHost != "" {
			host = forwardedHost
		}
	}
	return scheme + "://" + host
}

func shortLivedCookie(r *http.Request, name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(time.Hour.Seconds()),
		Secure:   r.TLS != nil,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
}
