package keycloakauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dunv/uhttp"
	"github.com/stretchr/testify/require"
	jose "gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

const (
	testClientID         = "spring-boot-admin"
	testKeyID            = "test-key"
	testAuthorizationURI = "https://sso.example.com:8443/realms/test/protocol/openid-connect/auth"
	testBaseURL          = "http://admin.example.com"
)

// fakeKeycloak serves discovery, keys, token and user-info endpoints of a realm.
type fakeKeycloak struct {
	*httptest.Server
	signer jose.Signer
	key    *rsa.PrivateKey

	mu             sync.Mutex
	nonce          string
	realmRoles     []interface{}
	scope          string
	userInfoSub    string
	userInfoStatus int
	userInfoHosts  []string
}

func newFakeKeycloak(t *testing.T) *fakeKeycloak {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", testKeyID),
	)
	require.NoError(t, err)

	kc := &fakeKeycloak{
		signer:         signer,
		key:            key,
		realmRoles:     []interface{}{"admin", "user"},
		scope:          "openid profile email",
		userInfoSub:    "user-1",
		userInfoStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"issuer":                                kc.URL,
			"authorization_endpoint":                kc.URL + "/auth",
			"token_endpoint":                        kc.URL + "/token",
			"userinfo_endpoint":                     kc.URL + "/userinfo",
			"end_session_endpoint":                  kc.URL + "/logout",
			"jwks_uri":                              kc.URL + "/certs",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/certs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     testKeyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		kc.mu.Lock()
		defer kc.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": kc.sign(t, kc.accessTokenClaims(time.Now())),
			"token_type":   "Bearer",
			"expires_in":   300,
			"scope":        kc.scope,
			"id_token": kc.sign(t, map[string]interface{}{
				"iss":                kc.URL,
				"aud":                testClientID,
				"sub":                "user-1",
				"iat":                time.Now().Unix(),
				"exp":                time.Now().Add(5 * time.Minute).Unix(),
				"nonce":              kc.nonce,
				"preferred_username": "jdoe",
				"realm_access":       map[string]interface{}{"roles": kc.realmRoles},
			}),
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		kc.mu.Lock()
		defer kc.mu.Unlock()
		kc.userInfoHosts = append(kc.userInfoHosts, r.Host)
		if kc.userInfoStatus != http.StatusOK {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="Token verification failed"`)
			w.WriteHeader(kc.userInfoStatus)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sub":                kc.userInfoSub,
			"preferred_username": "jdoe",
			"email":              "jdoe@example.com",
		})
	})

	kc.Server = httptest.NewServer(mux)
	t.Cleanup(kc.Close)
	return kc
}

func (kc *fakeKeycloak) accessTokenClaims(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"iss":                kc.URL,
		"sub":                "user-1",
		"iat":                now.Unix(),
		"exp":                now.Add(5 * time.Minute).Unix(),
		"scope":              kc.scope,
		"preferred_username": "jdoe",
		"realm_access":       map[string]interface{}{"roles": kc.realmRoles},
	}
}

func (kc *fakeKeycloak) sign(t *testing.T, claims map[string]interface{}) string {
	raw, err := jwt.Signed(kc.signer).Claims(claims).CompactSerialize()
	require.NoError(t, err)
	return raw
}

func (kc *fakeKeycloak) setNonce(nonce string) {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	kc.nonce = nonce
}

func (kc *fakeKeycloak) hosts() []string {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	return append([]string{}, kc.userInfoHosts...)
}

func newTestKeycloakAuth(t *testing.T, kc *fakeKeycloak) *KeycloakAuth {
	k, err := NewKeycloakAuth(context.Background(), Options{
		IssuerURI:        kc.URL,
		AuthorizationURI: testAuthorizationURI,
		ClientID:         testClientID,
		ClientSecret:     "secret",
		BaseURL:          testBaseURL,
	})
	require.NoError(t, err)
	return k
}

// testUHTTP renders errors the way the gateway does.
func testUHTTP() *uhttp.UHTTP {
	return uhttp.NewUHTTP(uhttp.WithSendPanicInfoToClient(false))
}

// serveUHTTP calls a uhttp handler function the way uhttp does.
func serveUHTTP(h func(*http.Request, *int) interface{}, r *http.Request) (*httptest.ResponseRecorder, int, interface{}) {
	rec := httptest.NewRecorder()
	r = r.WithContext(context.WithValue(r.Context(), uhttp.CtxKeyResponseWriter, http.ResponseWriter(rec)))
	returnCode := http.StatusOK
	result := h(r, &returnCode)
	return rec, returnCode, result
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
