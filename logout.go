package keycloakauth

import (
	"net/http"
	"net/url"

	"github.com/dunv/uhttp"
	"github.com/dunv/ulog"
)

// handleLogout ends the local session and sends the browser through the end
// session endpoint of the provider, which redirects back to the application root.
func (k *KeycloakAuth) handleLogout(r *http.Request, returnCode *int) interface{} {
	w := r.Context().Value(uhttp.CtxKeyResponseWriter).(http.ResponseWriter)

	session := k.sessions.Invalidate(w, r)
	if session == nil || session.Principal == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil
	}

	ulog.Infof("user %s logged out", session.Principal.Name())
	http.Redirect(w, r, k.endSessionURL(r, session.Principal), http.StatusFound)
	return nil
}

// endSessionURL builds the RP-initiated logout url. Without a configured end
// session endpoint the application root is used.
func (k *KeycloakAuth) endSessionURL(r *http.Request, principal *Principal) string {
	postLogoutRedirectURI := k.requestBaseURL(r) + "/"
	if k.logoutURI == "" {
		return postLogoutRedirectURI
	}

	endSession, err := url.Parse(k.logoutURI)
	if err != nil {
		ulog.Errorf("could not parse logout uri %s (%s)", k.logoutURI, err)
		return postLogoutRedirectURI
	}

	query := endSession.Query()
	if principal.IDToken != "" {
		query.Set("id_token_hint", principal.IDToken)
	}
	query.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	endSession.RawQuery = query.Encode()
	return endSession.String()
}
