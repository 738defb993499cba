package api

import (
	"context"
	"net/url"

	"github.com/terravista/authkit/pkg/networking"
)

// DefaultDevicePollInterval is the poll interval, in seconds, used when the
// server does not specify one (RFC 8628 §3.2).
const DefaultDevicePollInterval = 5

// DeviceAuthorization is the device authorization endpoint response: the
// code pair to present to the user and the polling parameters.
type DeviceAuthorization struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval"`
}

// DeviceAuthorizationClient requests device/user code pairs from the device
// authorization endpoint to begin a device code grant.
type DeviceAuthorizationClient struct {
	baseClient
}

// NewDeviceAuthorizationClient creates a client for the given device
// authorization endpoint.
func NewDeviceAuthorizationClient(endpoint string, client networking.HTTPClient) *DeviceAuthorizationClient {
	return &DeviceAuthorizationClient{
		baseClient: newBaseClient(endpoint, client),
	}
}

// RequestDeviceAuthorization obtains a device/user code pair for the client.
func (c *DeviceAuthorizationClient) RequestDeviceAuthorization(
	ctx context.Context,
	clientID string,
	requestedScopes, requestedAudiences []string,
	enricher Enricher,
) (*DeviceAuthorization, error) {
	payload := url.Values{}
	payload.Set("client_id", clientID)
	setSpaceSeparated(payload, "scope", requestedScopes)
	for _, aud := range requestedAudiences {
		payload.Add("audience", aud)
	}

	payload, auth, err := enrich(enricher, payload, firstOrEmpty(requestedAudiences))
	if err != nil {
		return nil, err
	}

	var da DeviceAuthorization
	if err := c.checkedPostFormJSON(ctx, payload, auth, &da); err != nil {
		return nil, err
	}
	if da.Interval == 0 {
		da.Interval = DefaultDevicePollInterval
	}
	return &da, nil
}
