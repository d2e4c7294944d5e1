package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// ContextDialer is satisfied by net.Dialer and the x/net/proxy dialers
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// fingerprintTransport dials TLS with a browser ClientHello so the mirrors see
// a browser-shaped handshake. HTTPS goes over HTTP/2, plain HTTP over HTTP/1.1.
type fingerprintTransport struct {
	hello  utls.ClientHelloID
	dialer ContextDialer
	h2     *http2.Transport
	h1     *http.Transport
}

// ClientHelloFor maps a fingerprint name to a uTLS ClientHello. ok is false
// for "" and "none", which mean the standard crypto/tls stack.
func ClientHelloFor(name string) (hello utls.ClientHelloID, ok bool, err error) {
	switch strings.ToLower(name) {
	case "", "none":
		return utls.ClientHelloID{}, false, nil
	case "chrome":
		return utls.HelloChrome_Auto, true, nil
	case "firefox":
		return utls.HelloFirefox_Auto, true, nil
	default:
		return utls.ClientHelloID{}, false, fmt.Errorf("unknown fingerprint %q", name)
	}
}

// newFingerprintTransport builds the uTLS round tripper; dialer may be a
// SOCKS5 dialer from x/net/proxy.
func newFingerprintTransport(hello utls.ClientHelloID, dialer ContextDialer, timeout time.Duration) *fingerprintTransport {
	if dialer == nil {
		dialer = &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	}
	rt := &fingerprintTransport{hello: hello, dialer: dialer}

	rt.h2 = &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return rt.dialTLS(ctx, network, addr)
		},
		ReadIdleTimeout: 30 * time.Second,
	}

	rt.h1 = &http.Transport{
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return rt.dialTLS(ctx, network, addr)
		},
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}

	return rt
}

func (rt *fingerprintTransport) dialTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	tcpConn, err := rt.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	tlsConn := utls.UClient(tcpConn, &utls.Config{
		ServerName: host,
		NextProtos: []string{"h2", "http/1.1"},
	}, rt.hello)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		tcpConn.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	return tlsConn, nil
}

// RoundTrip implements http.RoundTripper
func (rt *fingerprintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return rt.h1.RoundTrip(req)
	}
	return rt.h2.RoundTrip(req)
}

// CloseIdleConnections releases pooled connections on both transports
func (rt *fingerprintTransport) CloseIdleConnections() {
	rt.h1.CloseIdleConnections()
	rt.h2.CloseIdleConnections()
}

// proxyDialer returns a context dialer for socks5 proxy URLs
func proxyDialer(host string, timeout time.Duration) (ContextDialer, error) {
	base := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	d, err := proxy.SOCKS5("tcp", host, nil, base)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 proxy: %w", err)
	}
	cd, ok := d.(ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
	}
	return cd, nil
}
