package main

import (
	"context"
	"time"

	keycloakauth "github.com/prokval/spring-boot-admin-docker"
	"github.com/prokval/spring-boot-admin-docker/config"

	"github.com/dunv/uhttp"
	"github.com/dunv/ulog"
)

func main() {
	cfg, err := config.New()
	ulog.FatalIfError(err)

	upstream, err := cfg.Upstream()
	ulog.FatalIfError(err)

	u := uhttp.NewUHTTP(
		uhttp.WithAddress(cfg.ListenAddress),
		uhttp.WithSendPanicInfoToClient(false),
	)
	proxy := keycloakauth.NewUpstreamHandler(u, upstream)

	if !cfg.KeycloakEnabled() {
		ulog.Warnf("profile %q is not active, running without security", config.ProfileKeycloak)
		keycloakauth.Mount(u, "/", proxy)
		ulog.FatalIfError(u.ListenAndServe())
		return
	}

	ctx := context.Background()
	k, err := keycloakauth.NewKeycloakAuth(ctx, keycloakauth.Options{
		IssuerURI:         cfg.Keycloak.IssuerURI,
		AuthorizationURI:  cfg.Keycloak.AuthorizationURI,
		TokenURI:          cfg.Keycloak.TokenURI,
		UserInfoURI:       cfg.Keycloak.UserInfoURI,
		JWKSetURI:         cfg.Keycloak.JWKSetURI,
		LogoutURI:         cfg.Keycloak.LogoutURI,
		ClientID:          cfg.Keycloak.ClientID,
		ClientSecret:      cfg.Keycloak.ClientSecret,
		Scopes:            cfg.Keycloak.Scopes,
		UserNameAttribute: cfg.Keycloak.UserNameAttribute,
		BaseURL:           cfg.Keycloak.BaseURL,
		SessionTTL:        cfg.Keycloak.SessionTTL,

		TrustForwardedHeaders: cfg.Keycloak.TrustForwardedHeaders,
	})
	ulog.FatalIfError(err)
	go k.Sessions().RunJanitor(ctx, time.Minute)

	k.SetupHandlers(u)
	keycloakauth.Mount(u, "/", k.Protect(u, proxy, keycloakauth.HasAuthority(keycloakauth.RoleAdmin)))

	ulog.FatalIfError(u.ListenAndServe())
}
