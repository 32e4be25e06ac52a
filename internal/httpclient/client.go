// Package httpclient provides the HTTP client shared by the protocol
// backends. Endpoint addresses originate in asset descriptions rather than
// in code, so the client checks every request and redirect hop and can
// refuse endpoints on private networks.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/twinforge/aaskit/errors"
)

const (
	defaultMaxRedirects = 5
	dialTimeout         = 10 * time.Second
)

// Options configures a Client.
type Options struct {
	// Timeout bounds each request end to end.
	Timeout time.Duration

	// BlockPrivateNetworks refuses endpoints that resolve to loopback,
	// RFC 1918/ULA, link-local, multicast, or unspecified addresses. Off
	// by default: field devices usually live on private networks.
	BlockPrivateNetworks bool

	// MaxRedirects caps redirect chains. Zero means 5.
	MaxRedirects int
}

// Client wraps http.Client with scheme and address checks on every request
// and every redirect hop.
type Client struct {
	*http.Client
	blockPrivate bool
	maxRedirects int
}

// New creates a Client. With BlockPrivateNetworks set the address check also
// runs against resolved IPs at dial time, so a DNS name cannot smuggle a
// request onto the local network.
func New(opts Options) *Client {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = defaultMaxRedirects
	}
	c := &Client{
		Client:       &http.Client{Timeout: opts.Timeout},
		blockPrivate: opts.BlockPrivateNetworks,
		maxRedirects: maxRedirects,
	}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.checkURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect refused")
		}
		return nil
	}
	if opts.BlockPrivateNetworks {
		dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
		c.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, _, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid address %q", addr)
				}
				ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
				if err != nil {
					return nil, errors.Wrapf(err, "resolving %q", host)
				}
				for _, ip := range ips {
					if isPrivate(ip) {
						return nil, errors.Newf("endpoint %q resolves to private address %s", host, ip)
					}
				}
				return dialer.DialContext(ctx, network, addr)
			},
			MaxIdleConns:        32,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	return c
}

// Do executes req after checking its URL.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.checkURL(req.URL); err != nil {
		return nil, err
	}
	return c.Client.Do(req)
}

func (c *Client) checkURL(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return errors.Newf("unsupported scheme %q", u.Scheme)
	}
	// Userinfo in an endpoint is either credential leakage or host
	// confusion (http://device@internal/); sources carry credentials in
	// their own keys.
	if u.User != nil {
		return errors.New("endpoint URL must not carry userinfo")
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("endpoint URL has no host")
	}
	if c.blockPrivate {
		if isLocalName(host) {
			return errors.Newf("endpoint %q refused: private networks are blocked", host)
		}
		if ip := net.ParseIP(host); ip != nil && isPrivate(ip) {
			return errors.Newf("endpoint %s refused: private networks are blocked", ip)
		}
	}
	return nil
}

// isPrivate reports whether ip is anything but a global unicast address:
// RFC 1918 and ULA ranges, loopback, link-local, multicast, or unspecified.
func isPrivate(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}

func isLocalName(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local")
}
