package jarm

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ProxyAuth carries the value of a Proxy-Authorization header, either a
// raw pre-built token or a basic-auth pair already base64-encoded by the
// caller before reaching this function (cmd/jarmscan's proxy flag
// handling builds it; the Runner passes it through unchanged).
type ProxyAuth struct {
	HeaderValue string // empty means no Proxy-Authorization header at all
}

// ConnectTunnel performs an HTTP/HTTPS CONNECT handshake over an
// already-open stream, the manual way: write the CONNECT request line
// and headers, read the status line, require an exact "HTTP/1.1 200"
// prefix, then drain response headers to the blank line.
func ConnectTunnel(rw io.ReadWriter, host string, port int, auth ProxyAuth) error {
	target := fmt.Sprintf("%s:%d", host, port)

	var req strings.Builder
	req.WriteString("CONNECT ")
	req.WriteString(target)
	req.WriteString(" HTTP/1.1\r\n")
	if auth.HeaderValue != "" {
		req.WriteString("Proxy-Authorization: ")
		req.WriteString(auth.HeaderValue)
		req.WriteString("\r\n")
	}
	req.WriteString("Host: ")
	req.WriteString(target)
	req.WriteString("\r\n\r\n")

	if _, err := io.WriteString(rw, req.String()); err != nil {
		return newErr(KindIO, "ConnectTunnel.write", err)
	}

	br := bufio.NewReader(rw)
	status, err := br.ReadString('\n')
	if err != nil {
		return newErr(KindIO, "ConnectTunnel.readStatus", err)
	}
	if !strings.HasPrefix(status, "HTTP/1.1 200") {
		return newErr(KindProxyHandshake, "ConnectTunnel.status", fmt.Errorf("unexpected status line %q", strings.TrimSpace(status)))
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return newErr(KindIO, "ConnectTunnel.readHeaders", err)
		}
		if line == "\r\n" || line == "\n" {
			return nil
		}
	}
}
