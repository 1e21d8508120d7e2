package keycloakauth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dunv/uhttp"
	"github.com/dunv/ulog"
	jwt "gopkg.in/square/go-jose.v2/jwt"
)

// AuthHybrid accepts either a bearer access token or a login session. A request
// which presents a bearer token is judged on the token alone.
func (k *KeycloakAuth) AuthHybrid(u *uhttp.UHTTP, hasAccessFns ...HasAccessFn) uhttp.Middleware {
	requireSession := k.RequireAuth(u, hasAccessFns...)
	return func(next http.HandlerFunc) http.HandlerFunc {
		withSession := requireSession(next)
		return func(w http.ResponseWriter, r *http.Request) {
			if !hasBearer(r) {
				withSession(w, r)
				return
			}

			principal, err := k.PrincipalFromBearer(r)
			if err != nil {
				ulog.Tracef("Could not get PrincipalFromBearer (%s)", err)
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				u.RenderError(w, r, ErrUnauthorized, http.StatusUnauthorized)
				return
			}
			k.authorize(u, w, r, "jwt", nil, principal, hasAccessFns, next)
		}
	}
}

// PrincipalFromBearer verifies the access token of the Authorization header and
// resolves its principal. The scope claim provides the scopes.
func (k *KeycloakAuth) PrincipalFromBearer(r *http.Request) (*Principal, error) {
	if !hasBearer(r) {
		return nil, fmt.Errorf("Unauthorized: no bearer token")
	}
	accessToken := strings.TrimSpace(r.Header.Get("Authorization")[len("Bearer "):])

	// Verify that the token is signed by someone we trust
	if _, err := k.remoteKeySet.VerifySignature(r.Context(), accessToken); err != nil {
		return nil, fmt.Errorf("Unauthorized: could not verify signature (%s)", err)
	}

	// Deserialize contents
	token, err := jwt.ParseSigned(accessToken)
	if err != nil {
		return nil, fmt.Errorf("Unauthorized: could not parse token (%s)", err)
	}

	// extract claims without verification: verification has been done before
	registered := jwt.Claims{}
	claims := Claims{}
	if err := token.UnsafeClaimsWithoutVerification(&registered, &claims); err != nil {
		return nil, fmt.Errorf("Unauthorized: could not extract claims from token (%s)", err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{Issuer: k.issuer, Time: k.now()}, jwt.DefaultLeeway); err != nil {
		return nil, fmt.Errorf("Unauthorized: %s", err)
	}

	return newPrincipal(claims.Strings("scope"), claims, nil, "", k.userNameAttribute), nil
}

func hasBearer(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	return len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ")
}
