package keycloakauth

import "github.com/dunv/uhttp"

const (
	CtxKeyPrincipal uhttp.ContextKey = "principal"
	CtxKeySession   uhttp.ContextKey = "session"
)

const (
	// RegistrationID names the single client registration, it is part of the login paths.
	RegistrationID = "keycloak"

	PathLogin    = "/oauth2/authorization/" + RegistrationID
	PathCallback = "/login/oauth2/code/" + RegistrationID
	PathLogout   = "/logout"

	SessionCookieName = "JSESSIONID"
	CsrfCookieName    = "XSRF-TOKEN"
	stateCookieName   = "state"
	nonceCookieName   = "nonce"
)
