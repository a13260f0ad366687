// Package server opens the TCP listener the HTTP app is served on.
package server

import (
	"net"
	"time"

	"github.com/pires/go-proxyproto"
)

const headerTimeout = 5 * time.Second

// Listen opens addr. With proxyProtocol set, connections are expected to
// start with a PROXY header from the load balancer and RemoteAddr reports
// the original client.
func Listen(addr string, proxyProtocol bool) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if !proxyProtocol {
		return ln, nil
	}
	return &proxyproto.Listener{
		Listener:          ln,
		ReadHeaderTimeout: headerTimeout,
	}, nil
}
