// Package api implements narrow clients for the individual OAuth/OIDC
// protocol endpoints: discovery, authorization, device authorization, token,
// introspection, revocation, userinfo and JWKS. Each client builds requests
// against one fixed URI and classifies responses before returning.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/networking"
)

// maxResponseSize caps endpoint response bodies to prevent DoS.
const maxResponseSize = 1024 * 1024 // 1MB

// RequestAuth mutates an outgoing request to carry client authentication,
// for example an HTTP Basic header.
type RequestAuth func(req *http.Request)

// Enricher enriches a request payload with client authentication before it
// is sent to a token, introspection or revocation endpoint. It returns the
// possibly modified payload and an optional RequestAuth. How a client
// authenticates varies with the client type; see the enrichers in the parent
// package.
type Enricher func(payload url.Values, audience string) (url.Values, RequestAuth, error)

// BearerAuth returns a RequestAuth that presents the given token as a
// bearer Authorization header.
func BearerAuth(token string) RequestAuth {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// BasicAuth returns a RequestAuth that presents the given client
// credentials with HTTP Basic authentication.
func BasicAuth(clientID, clientSecret string) RequestAuth {
	return func(req *http.Request) {
		req.SetBasicAuth(url.QueryEscape(clientID), url.QueryEscape(clientSecret))
	}
}

// baseClient provides the checked request helpers shared by all endpoint
// clients.
type baseClient struct {
	endpoint string
	client   networking.HTTPClient
}

func newBaseClient(endpoint string, client networking.HTTPClient) baseClient {
	if client == nil {
		client = networking.NewRetryingClient(nil)
	}
	return baseClient{
		endpoint: endpoint,
		client:   client,
	}
}

// Endpoint returns the fixed URI this client talks to.
func (c *baseClient) Endpoint() string {
	return c.endpoint
}

// classify inspects a response and returns the most specific error it can.
// OAuth error payloads beat bare HTTP status codes: a 400 carrying
// {"error": "invalid_grant"} is a protocol error, not a transport error.
func (c *baseClient) classify(resp *http.Response, body []byte) error {
	if len(body) > 0 && networking.ParseContentType(resp.Header.Get("Content-Type")) == "application/json" {
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err == nil {
			// Most servers adhere to RFC 6749 error shapes, but some emit
			// errorCode/errorSummary instead.
			if code, _ := payload["error"].(string); code != "" {
				desc, _ := payload["error_description"].(string)
				return errors.NewProtocolError(code, desc)
			}
			if code, _ := payload["errorCode"].(string); code != "" {
				desc, _ := payload["errorSummary"].(string)
				return errors.NewProtocolError(code, desc)
			}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewTransportError(
			fmt.Sprintf("HTTP error from OIDC endpoint at %s: %d %s",
				c.endpoint, resp.StatusCode, http.StatusText(resp.StatusCode)), nil)
	}

	return nil
}

// do sends the request and returns the classified response body.
func (c *baseClient) do(req *http.Request, auth RequestAuth) ([]byte, *http.Response, error) {
	networking.SetDefaultHeaders(req)
	if auth != nil {
		auth(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, errors.NewTransportError(
			fmt.Sprintf("request to OIDC endpoint at %s failed", c.endpoint), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, errors.NewTransportError(
			fmt.Sprintf("failed to read response from OIDC endpoint at %s", c.endpoint), err)
	}

	if err := c.classify(resp, body); err != nil {
		return nil, nil, err
	}
	return body, resp, nil
}

// checkedGet performs a GET with query parameters and returns the classified
// body.
func (c *baseClient) checkedGet(ctx context.Context, params url.Values, auth RequestAuth) ([]byte, *http.Response, error) {
	u := c.endpoint
	if len(params) > 0 {
		u = u + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, errors.NewTransportError("failed to build request", err)
	}
	return c.do(req, auth)
}

// checkedPostForm performs a form-encoded POST and returns the classified
// body. The response is not required to be JSON; revocation endpoints in
// particular may answer with an empty body.
func (c *baseClient) checkedPostForm(ctx context.Context, payload url.Values, auth RequestAuth) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		bytes.NewReader([]byte(payload.Encode())))
	if err != nil {
		return nil, nil, errors.NewTransportError("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, auth)
}

// decodeJSONObject enforces the JSON payload shape contract: a response that
// was expected to carry a JSON object but is absent or non-JSON is a
// protocol error.
func (c *baseClient) decodeJSONObject(resp *http.Response, body []byte, out any) error {
	if len(body) == 0 {
		return errors.NewProtocolError("invalid_response",
			fmt.Sprintf("expected a JSON response from OIDC endpoint at %s, but none was found", c.endpoint))
	}
	if ct := networking.ParseContentType(resp.Header.Get("Content-Type")); ct != "application/json" {
		return errors.NewProtocolError("invalid_response",
			fmt.Sprintf("expected JSON content-type from OIDC endpoint at %s, but got %q", c.endpoint, ct))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewProtocolError("invalid_response",
			fmt.Sprintf("malformed JSON response from OIDC endpoint at %s: %v", c.endpoint, err))
	}
	return nil
}

// checkedGetJSON performs a GET and decodes the JSON object response.
func (c *baseClient) checkedGetJSON(ctx context.Context, params url.Values, auth RequestAuth, out any) error {
	body, resp, err := c.checkedGet(ctx, params, auth)
	if err != nil {
		return err
	}
	return c.decodeJSONObject(resp, body, out)
}

// checkedPostFormJSON performs a form POST and decodes the JSON object
// response.
func (c *baseClient) checkedPostFormJSON(ctx context.Context, payload url.Values, auth RequestAuth, out any) error {
	body, resp, err := c.checkedPostForm(ctx, payload, auth)
	if err != nil {
		return err
	}
	return c.decodeJSONObject(resp, body, out)
}

// enrich applies the client auth enricher, if any, to a request payload.
func enrich(enricher Enricher, payload url.Values, audience string) (url.Values, RequestAuth, error) {
	if enricher == nil {
		return payload, nil, nil
	}
	return enricher(payload, audience)
}

// setSpaceSeparated joins values into a single space-separated parameter,
// the encoding OAuth uses for scope lists.
func setSpaceSeparated(payload url.Values, key string, values []string) {
	if len(values) > 0 {
		payload.Set(key, strings.Join(values, " "))
	}
}
