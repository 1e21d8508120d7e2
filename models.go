package keycloakauth

// KeycloakWellKnown is the part of the discovery document which is used.
type KeycloakWellKnown struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	IntrospectionEndpoint string `json:"introspection_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
	RevocationEndpoint    string `json:"revocation_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// KeycloakToken is a typed view on the claims Keycloak puts into its tokens.
type KeycloakToken struct {
	Subject           string                 `json:"sub"`
	Email             string                 `json:"email"`
	EmailVerified     bool                   `json:"email_verified"`
	PreferredUsername string                 `json:"preferred_username"`
	RealmAccess       KeycloakAccess         `json:"realm_access"`
	ResourceAccess    KeycloakResourceAccess `json:"resource_access"`
	Scope             string                 `json:"scope"`
}

type KeycloakAccess struct {
	Roles []string `json:"roles"`
}

type KeycloakResourceAccess map[string]KeycloakAccess
