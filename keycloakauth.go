package keycloakauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/dunv/ulog"
	"golang.org/x/oauth2"
)

// Options configure the client registration against a Keycloak realm.
// Endpoints left empty are taken from the discovery document of IssuerURI.
type Options struct {
	// URL under which we can perform a GET request to `.well-known/openid-configuration`
	// e.g. https://<DOMAIN>:<PORT>/realms/<REALM>
	IssuerURI string

	AuthorizationURI string
	TokenURI         string
	UserInfoURI      string
	JWKSetURI        string
	// end_session_endpoint used for RP-initiated logout
	LogoutURI string

	ClientID     string
	ClientSecret string
	Scopes       []string

	// claim which holds the principal name, "sub" when empty
	UserNameAttribute string

	// BaseURL is the externally visible root of this application. When empty it
	// is derived from each request.
	BaseURL string

	// TrustForwardedHeaders lets X-Forwarded-Proto and X-Forwarded-Host of the
	// request decide the derived base url. Only enable it behind a proxy which
	// overwrites both.
	TrustForwardedHeaders bool

	SessionTTL time.Duration

	// HTTPClient is used for discovery, token exchange and key fetching.
	HTTPClient *http.Client
}

type KeycloakAuth struct {
	issuer            string
	userNameAttribute string
	baseURL           string
	trustForwarded    bool
	logoutURI         string

	// host[:port] of the authorization endpoint as seen by the browser
	endpointHost string

	oauth2Config    *oauth2.Config
	httpClient      *http.Client
	idTokenVerifier *oidc.IDTokenVerifier
	remoteKeySet    *oidc.RemoteKeySet
	userInfo        *UserInfoClient
	sessions        *SessionStore

	now func() time.Time
}

// NewKeycloakAuth discovers the realm and prepares everything needed for the
// login flow. ctx must outlive the instance, key sets are fetched with it.
func NewKeycloakAuth(ctx context.Context, opts Options) (*KeycloakAuth, error) {
	if opts.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, opts.HTTPClient)
	}

	provider, err := oidc.NewProvider(ctx, opts.IssuerURI)
	if err != nil {
		return nil, fmt.Errorf("could not discover %s (%w)", opts.IssuerURI, err)
	}

	keycloakWellKnown := KeycloakWellKnown{}
	if err := provider.Claims(&keycloakWellKnown); err != nil {
		return nil, fmt.Errorf("could not read discovery document (%w)", err)
	}

	authorizationURI := firstNonEmpty(opts.AuthorizationURI, keycloakWellKnown.AuthorizationEndpoint)
	endpointHost, err := DeriveHost(authorizationURI)
	if err != nil {
		return nil, err
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	remoteKeySet := oidc.NewRemoteKeySet(ctx, firstNonEmpty(opts.JWKSetURI, keycloakWellKnown.JWKSURI))

	k := &KeycloakAuth{
		issuer:            opts.IssuerURI,
		userNameAttribute: firstNonEmpty(opts.UserNameAttribute, DefaultUserNameAttribute),
		baseURL:           opts.BaseURL,
		trustForwarded:    opts.TrustForwardedHeaders,
		logoutURI:         firstNonEmpty(opts.LogoutURI, keycloakWellKnown.EndSessionEndpoint),
		endpointHost:      endpointHost,
		oauth2Config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authorizationURI,
				TokenURL: firstNonEmpty(opts.TokenURI, keycloakWellKnown.TokenEndpoint),
			},
		},
		httpClient:      opts.HTTPClient,
		idTokenVerifier: oidc.NewVerifier(opts.IssuerURI, remoteKeySet, &oidc.Config{ClientID: opts.ClientID}),
		remoteKeySet:    remoteKeySet,
		sessions:        NewSessionStore(opts.SessionTTL),
		now:             time.Now,
	}

	if userInfoURI := firstNonEmpty(opts.UserInfoURI, keycloakWellKnown.UserinfoEndpoint); userInfoURI != "" {
		var transport http.RoundTripper
		if opts.HTTPClient != nil {
			transport = opts.HTTPClient.Transport
		}
		k.userInfo = NewUserInfoClient(userInfoURI, endpointHost, transport)
	}

	ulog.Infof("keycloak: issuer=%s endpointHost=%s scopes=%v", k.issuer, k.endpointHost, scopes)
	return k, nil
}

// EndpointHost is the Host presented to the user-info endpoint.
func (k *KeycloakAuth) EndpointHost() string {
	return k.endpointHost
}

func (k *KeycloakAuth) Sessions() *SessionStore {
	return k.sessions
}

// clientContext makes oauth2 use the configured client for the token exchange.
func (k *KeycloakAuth) clientContext(ctx context.Context) context.Context {
	if k.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, k.httpClient)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
