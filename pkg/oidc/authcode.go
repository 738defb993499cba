package oidc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/terravista/authkit/pkg/credential"
	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/logger"
)

// oobRedirectURI is the out-of-band redirect used when no loopback listener
// is possible and the user relays the authorization code by hand.
const oobRedirectURI = "urn:ietf:wg:oauth:2.0:oob"

// AuthCodeClient runs the authorization code grant with PKCE. The user
// authorizes in a browser; the code arrives on a loopback callback listener,
// or is pasted at a terminal prompt when no browser may be opened.
type AuthCodeClient struct {
	*AuthClient
}

// Login obtains a credential via the authorization code grant.
func (c *AuthCodeClient) Login(ctx context.Context, opts *LoginOptions) (*credential.OIDC, error) {
	authz, err := c.getAuthorizationClient(ctx)
	if err != nil {
		return nil, err
	}
	tokenClient, err := c.getTokenClient(ctx)
	if err != nil {
		return nil, err
	}
	enricher, err := c.enricher(ctx)
	if err != nil {
		return nil, err
	}

	codeVerifier := oauth2.GenerateVerifier()
	state := uuid.NewString()
	out := loginOut(opts)

	var (
		code        string
		redirectURI string
	)

	switch {
	case c.allowOpenBrowser(opts):
		listener, err := authz.NewCallbackListener(c.cfg.CallbackPort, state)
		if err != nil {
			return nil, err
		}
		defer listener.Close()

		redirectURI = c.cfg.RedirectURI
		if redirectURI == "" {
			redirectURI = listener.RedirectURI()
		}

		authURL := authz.AuthCodeURL(c.cfg.ClientID, redirectURI,
			c.loginScopes(opts), c.loginAudiences(opts), state, codeVerifier, c.loginExtra(opts))

		fmt.Fprintf(out, "Opening your browser to complete authentication.\nIf it does not open, visit:\n\n  %s\n\n", authURL)
		if err := browser.OpenURL(authURL); err != nil {
			logger.Warnf("Failed to open browser: %v", err)
		}

		code, err = listener.Await(ctx)
		if err != nil {
			return nil, err
		}

	case c.allowTTYPrompt(opts):
		redirectURI = oobRedirectURI
		authURL := authz.AuthCodeURL(c.cfg.ClientID, redirectURI,
			c.loginScopes(opts), c.loginAudiences(opts), state, codeVerifier, c.loginExtra(opts))

		fmt.Fprintf(out, "Visit the following URL to authorize this client:\n\n  %s\n\n", authURL)
		code, err = promptLine(loginIn(opts), out, "Enter the authorization code: ")
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.NewConfigError(
			"authorization code login needs a browser or a terminal, and both are disallowed", nil)
	}

	token, err := tokenClient.GetTokenFromCode(ctx, c.cfg.ClientID, redirectURI, code, codeVerifier, enricher, nil)
	if err != nil {
		return nil, err
	}
	return credentialFromToken(token)
}

func loginIn(opts *LoginOptions) io.Reader {
	if opts != nil && opts.In != nil {
		return opts.In
	}
	return os.Stdin
}

func loginOut(opts *LoginOptions) io.Writer {
	if opts != nil && opts.Out != nil {
		return opts.Out
	}
	return os.Stdout
}

// promptLine prints a prompt and reads one trimmed line of input.
func promptLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.NewConfigError("failed to read input from terminal", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.NewConfigError("no input provided", nil)
	}
	return line, nil
}
