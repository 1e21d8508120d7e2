package keycloakauth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveHost(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{uri: "https://idp.example.com:8443/auth", want: "idp.example.com:8443"},
		{uri: "https://idp.example.com/auth", want: "idp.example.com"},
		{uri: "http://keycloak:8080/realms/master/protocol/openid-connect/auth", want: "keycloak:8080"},
		{uri: "https://[::1]:8443/auth", want: "[::1]:8443"},
		{uri: "https://[::1]/auth", want: "[::1]"},
		{uri: "https://idp.example.com:/auth", want: "idp.example.com"},
		{uri: "/realms/master/protocol/openid-connect/auth", wantErr: true},
		{uri: "", wantErr: true},
		{uri: "http://%zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			host, err := DeriveHost(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, host)
		})
	}
}

func TestHostRewriter(t *testing.T) {
	var seenHost string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHost = r.Host
	}))
	defer server.Close()

	client := &http.Client{Transport: NewHostRewriter("idp.example.com:8443", nil)}
	req, err := http.NewRequest(http.MethodGet, server.URL+"/userinfo", nil)
	require.NoError(t, err)

	res, err := client.Do(req)
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, "idp.example.com:8443", seenHost)
	// the caller's request is left alone
	assert.NotEqual(t, "idp.example.com:8443", req.Host)
}
