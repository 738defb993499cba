package api

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	autherrors "github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/logger"
)

// defaultCallbackAcknowledgement is served to the browser once the
// authorization callback has been received. Clients may override it with
// their own branding.
const defaultCallbackAcknowledgement = `<!DOCTYPE html>
<html>
<head><title>Authentication Complete</title><meta charset="utf-8"></head>
<body>
<h1>Authentication complete</h1>
<p>You may close this window and return to the application.</p>
</body>
</html>`

// AuthorizationClient builds authorization requests against the
// authorization endpoint and receives the redirect callback on a local
// loopback listener.
type AuthorizationClient struct {
	endpoint string
	ackBody  string
}

// NewAuthorizationClient creates an authorization client for the given
// authorization endpoint. ackBody overrides the HTML acknowledgement page
// served on a successful callback; empty selects the default page.
func NewAuthorizationClient(endpoint, ackBody string) *AuthorizationClient {
	if ackBody == "" {
		ackBody = defaultCallbackAcknowledgement
	}
	return &AuthorizationClient{
		endpoint: endpoint,
		ackBody:  ackBody,
	}
}

// Endpoint returns the authorization endpoint URI.
func (c *AuthorizationClient) Endpoint() string {
	return c.endpoint
}

// AuthCodeURL builds the authorization request URL with PKCE (S256) and the
// given state parameter.
func (c *AuthorizationClient) AuthCodeURL(
	clientID, redirectURI string,
	requestedScopes, requestedAudiences []string,
	state, codeVerifier string,
	extra url.Values,
) string {
	cfg := &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      requestedScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL: c.endpoint,
		},
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(codeVerifier),
	}
	for _, aud := range requestedAudiences {
		opts = append(opts, oauth2.SetAuthURLParam("audience", aud))
	}
	for key, values := range extra {
		for _, v := range values {
			opts = append(opts, oauth2.SetAuthURLParam(key, v))
		}
	}

	return cfg.AuthCodeURL(state, opts...)
}

// CallbackListener is a loopback HTTP listener awaiting one authorization
// redirect callback.
type CallbackListener struct {
	listener net.Listener
	server   *http.Server
	state    string
	ackBody  string
	codeChan chan string
	errChan  chan error
}

// NewCallbackListener opens a loopback listener on the given port (0 picks
// an ephemeral port) that accepts a single authorization callback carrying
// the expected state.
func (c *AuthorizationClient) NewCallbackListener(port int, state string) (*CallbackListener, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, autherrors.NewTransportError("failed to open authorization callback listener", err)
	}

	l := &CallbackListener{
		listener: listener,
		state:    state,
		ackBody:  c.ackBody,
		codeChan: make(chan string, 1),
		errChan:  make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", l.handleCallback)
	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := l.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.errChan <- autherrors.NewTransportError("authorization callback listener failed", err)
		}
	}()

	return l, nil
}

// RedirectURI returns the redirect URI the authorization request must carry
// for the callback to arrive at this listener.
func (l *CallbackListener) RedirectURI() string {
	return fmt.Sprintf("http://%s/callback", l.listener.Addr().String())
}

// Await blocks until the callback delivers an authorization code, the
// context is cancelled, or the callback reports an error.
func (l *CallbackListener) Await(ctx context.Context) (string, error) {
	select {
	case code := <-l.codeChan:
		return code, nil
	case err := <-l.errChan:
		return "", err
	case <-ctx.Done():
		return "", autherrors.NewTransportError("authorization callback was not received", ctx.Err())
	}
}

// Close shuts the listener down.
func (l *CallbackListener) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.server.Shutdown(ctx); err != nil {
		logger.Warnf("Failed to shut down authorization callback listener: %v", err)
	}
}

func (l *CallbackListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		err := autherrors.NewProtocolError(errParam, query.Get("error_description"))
		l.writeErrorPage(w, err)
		l.errChan <- err
		return
	}

	// A state mismatch is fatal: the callback does not belong to the
	// authorization request we issued.
	if state := query.Get("state"); state != l.state {
		err := autherrors.NewProtocolError("invalid_state",
			"authorization callback state does not match the pending request")
		l.writeErrorPage(w, err)
		l.errChan <- err
		return
	}

	code := query.Get("code")
	if code == "" {
		err := autherrors.NewProtocolError("invalid_response",
			"authorization callback is missing the authorization code")
		l.writeErrorPage(w, err)
		l.errChan <- err
		return
	}

	setSecurityHeaders(w)
	if _, err := w.Write([]byte(l.ackBody)); err != nil {
		logger.Warnf("Failed to write callback acknowledgement: %v", err)
	}
	l.codeChan <- code
}

func (l *CallbackListener) writeErrorPage(w http.ResponseWriter, err error) {
	setSecurityHeaders(w)
	w.WriteHeader(http.StatusBadRequest)
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Authentication Failed</title><meta charset="utf-8"></head>
<body>
<h1>Authentication failed</h1>
<p>%s</p>
</body>
</html>`, html.EscapeString(err.Error()))
	if _, werr := w.Write([]byte(page)); werr != nil {
		logger.Warnf("Failed to write callback error page: %v", werr)
	}
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'none'; object-src 'none';")
}
