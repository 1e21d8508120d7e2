package keycloakauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamHandler(t *testing.T) {
	var seenUser, seenPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = r.Header.Get(HeaderForwardedUser)
		seenPath = r.URL.Path
		w.WriteHeader(http.StatusTeapot)
	}))
	defer upstream.Close()

	upstreamURL, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	handler := NewUpstreamHandler(testUHTTP(), upstreamURL)

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/applications", nil)
		req.Header.Set(HeaderForwardedUser, "spoofed")
		req = req.WithContext(context.WithValue(req.Context(), CtxKeyPrincipal, testPrincipal("admin")))
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "/applications", seenPath)
		assert.Equal(t, "user-1", seenUser)
	})

	t.Run("anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/applications", nil)
		req.Header.Set(HeaderForwardedUser, "spoofed")
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "", seenUser)
	})
}

func TestUpstreamHandlerUnavailable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	upstreamURL, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	upstream.Close()

	rec := httptest.NewRecorder()
	NewUpstreamHandler(testUHTTP(), upstreamURL)(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestUpstreamHandlerWithoutUpstream(t *testing.T) {
	handler := NewUpstreamHandler(testUHTTP(), nil)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), CtxKeyPrincipal, testPrincipal("admin")))
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"user-1","authorities":["OIDC_USER","SCOPE_openid","ROLE_ADMIN"]}`, rec.Body.String())
}
