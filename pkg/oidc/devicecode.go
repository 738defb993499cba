package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/mdp/qrterminal/v3"

	"github.com/terravista/authkit/pkg/credential"
	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/logger"
	"github.com/terravista/authkit/pkg/oidc/api"
)

// slowDownBackoff is the amount the poll interval grows by on each slow_down
// answer (RFC 8628 §3.5).
const slowDownBackoff = 5 * time.Second

// DeviceCodeClient runs the device code grant (RFC 8628): suitable for hosts
// without a browser, where the user authorizes on a second device.
type DeviceCodeClient struct {
	*AuthClient

	// sleep waits between polls. Nil means a real wall-clock wait; tests
	// replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

func (c *DeviceCodeClient) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return errors.NewTransportError("device login cancelled", ctx.Err())
	}
}

// DeviceLoginInitiate requests a device/user code pair. The caller displays
// the user code and verification URI, then calls DeviceLoginComplete to poll
// for the credential.
func (c *DeviceCodeClient) DeviceLoginInitiate(ctx context.Context, opts *LoginOptions) (*api.DeviceAuthorization, error) {
	deviceClient, err := c.getDeviceClient(ctx)
	if err != nil {
		return nil, err
	}
	enricher, err := c.enricher(ctx)
	if err != nil {
		return nil, err
	}
	return deviceClient.RequestDeviceAuthorization(ctx,
		c.cfg.ClientID, c.loginScopes(opts), c.loginAudiences(opts), enricher)
}

// DeviceLoginComplete polls the token endpoint until the user has completed
// authorization. authorization_pending keeps polling at the server interval;
// slow_down grows the interval; any other protocol error is terminal. The
// device authorization's expiry bounds the wait.
func (c *DeviceCodeClient) DeviceLoginComplete(ctx context.Context, da *api.DeviceAuthorization) (*credential.OIDC, error) {
	if da == nil || da.DeviceCode == "" {
		return nil, errors.NewConfigError("no device authorization to complete", nil)
	}

	tokenClient, err := c.getTokenClient(ctx)
	if err != nil {
		return nil, err
	}
	enricher, err := c.enricher(ctx)
	if err != nil {
		return nil, err
	}

	interval := time.Duration(da.Interval) * time.Second
	if interval <= 0 {
		interval = api.DefaultDevicePollInterval * time.Second
	}

	var deadline time.Time
	if da.ExpiresIn > 0 {
		deadline = time.Now().Add(time.Duration(da.ExpiresIn) * time.Second)
	}

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, errors.NewProtocolError("expired_token",
				"the device authorization expired before the user completed it")
		}

		token, err := tokenClient.GetTokenFromDeviceCode(ctx, c.cfg.ClientID, da.DeviceCode, enricher)
		if err == nil {
			return credentialFromToken(token)
		}

		switch errors.ProtocolCode(err) {
		case "authorization_pending":
		case "slow_down":
			interval += slowDownBackoff
			logger.Debugf("Auth server asked to slow down, polling every %s", interval)
		default:
			return nil, err
		}

		if err := c.wait(ctx, interval); err != nil {
			return nil, err
		}
	}
}

// Login runs the full device code grant: initiate, display the verification
// instructions (optionally as a QR code), and poll to completion.
func (c *DeviceCodeClient) Login(ctx context.Context, opts *LoginOptions) (*credential.OIDC, error) {
	da, err := c.DeviceLoginInitiate(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := loginOut(opts)
	if da.VerificationURIComplete != "" {
		fmt.Fprintf(out, "Visit the following URL to authorize this device:\n\n  %s\n\n", da.VerificationURIComplete)
	} else {
		fmt.Fprintf(out, "Visit %s and enter the code:\n\n  %s\n\n", da.VerificationURI, da.UserCode)
	}

	if opts != nil && opts.ShowQR {
		target := da.VerificationURIComplete
		if target == "" {
			target = da.VerificationURI
		}
		qrterminal.GenerateWithConfig(target, qrterminal.Config{
			Level:     qrterminal.L,
			Writer:    out,
			BlackChar: qrterminal.BLACK,
			WhiteChar: qrterminal.WHITE,
			QuietZone: 1,
		})
		fmt.Fprintln(out)
	}

	return c.DeviceLoginComplete(ctx, da)
}
