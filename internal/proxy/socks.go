package proxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// Options controls the outbound HTTP client shared by the fetcher, the
// search providers and the completion backends.
type Options struct {
	SOCKS5             string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewClient returns an http.Client honoring the SOCKS5 address (when set)
// and the TLS verification policy.
func NewClient(opts Options) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		// Certificate verification is disabled for page fetches so that
		// misconfigured sites still yield text. This trades authenticity
		// of fetched content for recall.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if opts.SOCKS5 != "" {
		dialer, err := proxy.SOCKS5("tcp", opts.SOCKS5, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}, nil
}
