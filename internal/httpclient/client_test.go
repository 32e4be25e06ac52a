package httpclient

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c := New(Options{Timeout: 30 * time.Second})

	assert.Equal(t, 30*time.Second, c.Client.Timeout)
	assert.Equal(t, defaultMaxRedirects, c.maxRedirects)
	assert.False(t, c.blockPrivate)
	assert.Nil(t, c.Transport)
}

func TestDoRefusesNonHTTPSchemes(t *testing.T) {
	c := New(Options{Timeout: time.Second})
	req, err := http.NewRequest(http.MethodGet, "ftp://example.com/doc", nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported scheme "ftp"`)
}

func TestDoRefusesUserinfo(t *testing.T) {
	c := New(Options{Timeout: time.Second})
	req, err := http.NewRequest(http.MethodGet, "http://admin:pw@example.com/", nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "userinfo")
}

func TestGuardRefusesPrivateEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server")
	}))
	t.Cleanup(srv.Close)

	c := New(Options{Timeout: time.Second, BlockPrivateNetworks: true})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private networks are blocked")
}

func TestGuardRefusesLocalNames(t *testing.T) {
	c := New(Options{Timeout: time.Second, BlockPrivateNetworks: true})
	for _, endpoint := range []string{
		"http://localhost:1234/value",
		"http://device.localhost/value",
		"http://pump-7.local/value",
	} {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		require.NoError(t, err)
		_, err = c.Do(req)
		assert.Error(t, err, endpoint)
	}
}

func TestGuardOffAllowsLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c := New(Options{Timeout: time.Second})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRedirectChainCapped(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/again", http.StatusFound)
	}))
	t.Cleanup(srv.Close)

	c := New(Options{Timeout: 5 * time.Second, MaxRedirects: 3})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 3 redirects")
}

func TestPrivateAddressClassification(t *testing.T) {
	private := []string{
		"10.1.2.3", "172.16.0.9", "192.168.1.1", "127.0.0.1",
		"169.254.10.1", "224.0.0.1", "0.0.0.0",
		"::1", "fe80::1", "fc00::1", "ff02::1", "::",
	}
	for _, s := range private {
		assert.True(t, isPrivate(net.ParseIP(s)), s)
	}

	public := []string{"8.8.8.8", "93.184.216.34", "2001:4860:4860::8888"}
	for _, s := range public {
		assert.False(t, isPrivate(net.ParseIP(s)), s)
	}
}
