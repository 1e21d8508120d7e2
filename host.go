package keycloakauth

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// DeriveHost returns the host[:port] the browser uses to reach the identity
// provider, taken from its authorization endpoint.
func DeriveHost(authorizationURI string) (string, error) {
	u, err := url.Parse(authorizationURI)
	if err != nil {
		return "", fmt.Errorf("could not parse authorization uri (%w)", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("authorization uri %q has no host", authorizationURI)
	}
	if port := u.Port(); port != "" {
		return net.JoinHostPort(u.Hostname(), port), nil
	}
	// IPv6 literals keep their brackets
	if strings.Contains(u.Hostname(), ":") {
		return "[" + u.Hostname() + "]", nil
	}
	return u.Hostname(), nil
}

// hostRewriter presents the externally visible Host to the identity provider even
// when it is reached through another network path. Access tokens carry the issuer
// the browser saw, Keycloak rejects them when the Host differs.
type hostRewriter struct {
	host string
	next http.RoundTripper
}

// NewHostRewriter wraps next so that every request is sent with Host set to host.
func NewHostRewriter(host string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &hostRewriter{host: host, next: next}
}

func (h *hostRewriter) RoundTrip(r *http.Request) (*http.Response, error) {
	rewritten := r.Clone(r.Context())
	rewritten.Host = h.host
	return h.next.RoundTrip(rewritten)
}
