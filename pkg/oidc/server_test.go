package oidc

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terravista/authkit/pkg/oidc/api"
)

// fakeAuthServer serves a discovery document plus scriptable token and
// device authorization endpoints, all rooted at its own URL.
type fakeAuthServer struct {
	*httptest.Server

	mu            sync.Mutex
	tokenForms    []url.Values
	tokenHandler  func(form url.Values) (int, string)
	deviceHandler func(form url.Values) (int, string)

	// omitDeviceEndpoint drops the device authorization endpoint from the
	// discovery document.
	omitDeviceEndpoint bool
	// omitIssuer drops the issuer from the discovery document.
	omitIssuer bool
}

func okTokenResponse(url.Values) (int, string) {
	return http.StatusOK, `{"access_token":"at-fresh","refresh_token":"rt-fresh","token_type":"Bearer"}`
}

func newFakeAuthServer(t *testing.T) *fakeAuthServer {
	t.Helper()
	f := &fakeAuthServer{tokenHandler: okTokenResponse}

	mux := http.NewServeMux()
	mux.HandleFunc(api.WellKnownOIDCPath, func(w http.ResponseWriter, _ *http.Request) {
		issuer := fmt.Sprintf(`"issuer": %q,`, f.URL)
		if f.omitIssuer {
			issuer = ""
		}
		device := fmt.Sprintf(`"device_authorization_endpoint": %q,`, f.URL+"/oauth/device")
		if f.omitDeviceEndpoint {
			device = ""
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			%s
			%s
			"authorization_endpoint": %q,
			"token_endpoint": %q,
			"introspection_endpoint": %q,
			"revocation_endpoint": %q,
			"userinfo_endpoint": %q,
			"jwks_uri": %q,
			"scopes_supported": ["openid", "offline_access"]
		}`, issuer, device,
			f.URL+"/oauth/authorize", f.URL+"/oauth/token", f.URL+"/oauth/introspect",
			f.URL+"/oauth/revoke", f.URL+"/oauth/userinfo", f.URL+"/oauth/jwks")
	})

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.tokenForms = append(f.tokenForms, r.PostForm)
		handler := f.tokenHandler
		f.mu.Unlock()

		status, body := handler(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})

	mux.HandleFunc("/oauth/device", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		handler := f.deviceHandler
		f.mu.Unlock()
		require.NotNil(t, handler, "unexpected device authorization request")

		status, body := handler(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeAuthServer) sentForms() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.tokenForms...)
}

func (f *fakeAuthServer) setTokenHandler(h func(form url.Values) (int, string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenHandler = h
}

func (f *fakeAuthServer) config(clientType ClientType) *Config {
	cfg := validConfig(clientType)
	cfg.AuthServer = f.URL
	return cfg
}
