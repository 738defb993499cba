package oidc

import (
	"bytes"
	"context"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/oidc/api"
)

const deviceAuthResponse = `{
	"device_code": "dc-1",
	"user_code": "ABCD-EFGH",
	"verification_uri": "https://auth.example.com/activate",
	"expires_in": 600,
	"interval": 1
}`

// newDeviceClient builds a device code client against the fake server with
// an instant, recording sleep.
func newDeviceClient(t *testing.T, server *fakeAuthServer) (*DeviceCodeClient, *[]time.Duration) {
	t.Helper()
	client, err := New(server.config(ClientTypeDeviceCode))
	require.NoError(t, err)
	device, ok := client.(*DeviceCodeClient)
	require.True(t, ok)

	var waits []time.Duration
	device.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return device, &waits
}

func TestDeviceLoginPollsUntilAuthorized(t *testing.T) {
	t.Parallel()

	server := newFakeAuthServer(t)
	server.deviceHandler = func(form url.Values) (int, string) {
		assert.Equal(t, "cid", form.Get("client_id"))
		return 200, deviceAuthResponse
	}

	var polls atomic.Int32
	server.setTokenHandler(func(form url.Values) (int, string) {
		assert.Equal(t, api.GrantTypeDeviceCode, form.Get("grant_type"))
		assert.Equal(t, "dc-1", form.Get("device_code"))
		if polls.Add(1) <= 2 {
			return 400, `{"error":"authorization_pending"}`
		}
		return 200, `{"access_token":"at-fresh","token_type":"Bearer"}`
	})

	device, waits := newDeviceClient(t, server)
	var out bytes.Buffer
	cred, err := device.Login(context.Background(), &LoginOptions{Out: &out})
	require.NoError(t, err)
	assert.Equal(t, "at-fresh", cred.AccessToken())

	assert.Equal(t, int32(3), polls.Load())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *waits)
	assert.Contains(t, out.String(), "https://auth.example.com/activate")
	assert.Contains(t, out.String(), "ABCD-EFGH")
}

func TestDeviceLoginSlowDownGrowsTheInterval(t *testing.T) {
	t.Parallel()

	server := newFakeAuthServer(t)
	server.deviceHandler = func(url.Values) (int, string) { return 200, deviceAuthResponse }

	var polls atomic.Int32
	server.setTokenHandler(func(url.Values) (int, string) {
		if polls.Add(1) <= 2 {
			return 400, `{"error":"slow_down"}`
		}
		return 200, `{"access_token":"at-fresh","token_type":"Bearer"}`
	})

	device, waits := newDeviceClient(t, server)
	_, err := device.Login(context.Background(), &LoginOptions{Out: &bytes.Buffer{}})
	require.NoError(t, err)

	// Each slow_down adds five seconds on top of the server interval.
	assert.Equal(t, []time.Duration{6 * time.Second, 11 * time.Second}, *waits)
}

func TestDeviceLoginTerminalError(t *testing.T) {
	t.Parallel()

	server := newFakeAuthServer(t)
	server.deviceHandler = func(url.Values) (int, string) { return 200, deviceAuthResponse }
	server.setTokenHandler(func(url.Values) (int, string) {
		return 403, `{"error":"access_denied","error_description":"the user declined"}`
	})

	device, _ := newDeviceClient(t, server)
	_, err := device.Login(context.Background(), &LoginOptions{Out: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Equal(t, "access_denied", errors.ProtocolCode(err))
}

func TestDeviceLoginCompleteExpires(t *testing.T) {
	t.Parallel()

	server := newFakeAuthServer(t)
	server.setTokenHandler(func(url.Values) (int, string) {
		return 400, `{"error":"authorization_pending"}`
	})

	device, _ := newDeviceClient(t, server)
	device.sleep = func(context.Context, time.Duration) error {
		time.Sleep(400 * time.Millisecond)
		return nil
	}

	_, err := device.DeviceLoginComplete(context.Background(), &api.DeviceAuthorization{
		DeviceCode: "dc-1",
		ExpiresIn:  1,
		Interval:   1,
	})
	require.Error(t, err)
	assert.Equal(t, "expired_token", errors.ProtocolCode(err))
}

func TestDeviceLoginCompleteCancellation(t *testing.T) {
	t.Parallel()

	server := newFakeAuthServer(t)
	server.setTokenHandler(func(url.Values) (int, string) {
		return 400, `{"error":"authorization_pending"}`
	})

	client, err := New(server.config(ClientTypeDeviceCode))
	require.NoError(t, err)
	device := client.(*DeviceCodeClient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = device.DeviceLoginComplete(ctx, &api.DeviceAuthorization{
		DeviceCode: "dc-1",
		ExpiresIn:  600,
		Interval:   1,
	})
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}

func TestDeviceLoginCompleteRequiresAuthorization(t *testing.T) {
	t.Parallel()

	server := newFakeAuthServer(t)
	device, _ := newDeviceClient(t, server)

	_, err := device.DeviceLoginComplete(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))

	_, err = device.DeviceLoginComplete(context.Background(), &api.DeviceAuthorization{})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestDeviceLoginPrefersCompleteVerificationURI(t *testing.T) {
	t.Parallel()

	server := newFakeAuthServer(t)
	server.deviceHandler = func(url.Values) (int, string) {
		return 200, `{
			"device_code": "dc-1",
			"user_code": "ABCD-EFGH",
			"verification_uri": "https://auth.example.com/activate",
			"verification_uri_complete": "https://auth.example.com/activate?user_code=ABCD-EFGH",
			"expires_in": 600,
			"interval": 1
		}`
	}
	server.setTokenHandler(func(url.Values) (int, string) {
		return 200, `{"access_token":"at-fresh","token_type":"Bearer"}`
	})

	device, _ := newDeviceClient(t, server)
	var out bytes.Buffer
	_, err := device.Login(context.Background(), &LoginOptions{Out: &out})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "activate?user_code=ABCD-EFGH")
	assert.NotContains(t, out.String(), "enter the code")
}

func TestDeviceLoginRendersQRCode(t *testing.T) {
	t.Parallel()

	server := newFakeAuthServer(t)
	server.deviceHandler = func(url.Values) (int, string) { return 200, deviceAuthResponse }
	server.setTokenHandler(func(url.Values) (int, string) {
		return 200, `{"access_token":"at-fresh","token_type":"Bearer"}`
	})

	device, _ := newDeviceClient(t, server)
	var out bytes.Buffer
	_, err := device.Login(context.Background(), &LoginOptions{Out: &out, ShowQR: true})
	require.NoError(t, err)
	assert.Contains(t, out.String(), qrterminal.BLACK)
}
