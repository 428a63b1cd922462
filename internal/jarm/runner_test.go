package jarm

import (
	"context"
	"net"
	"testing"
	"time"
)

type staticResolver struct{ ip net.IP }

func (s staticResolver) Resolve(_ context.Context, _ string, _ AddressFamily) ([]net.IP, error) {
	return []net.IP{s.ip}, nil
}

// pipeDialer hands back one end of an in-memory net.Pipe per dial and
// runs serverFn on the other end in its own goroutine, standing in for
// the injected byte-stream transport (§1 marks raw TCP/TLS I/O as an
// external collaborator).
type pipeDialer struct {
	serverFn func(net.Conn)
}

func (d pipeDialer) DialContext(_ context.Context, _, _ string) (net.Conn, error) {
	client, server := net.Pipe()
	go d.serverFn(server)
	return client, nil
}

func echoServerHello(buf []byte) func(net.Conn) {
	return func(c net.Conn) {
		defer c.Close()
		in := make([]byte, 4096)
		_, err := c.Read(in)
		if err != nil {
			return
		}
		_, _ = c.Write(buf)
	}
}

func hangingServer() func(net.Conn) {
	return func(c net.Conn) {
		defer c.Close()
		in := make([]byte, 4096)
		// never respond; the runner's per-probe timeout must kick in.
		// Keep reading until the runner closes its end after the timeout.
		for {
			if _, err := c.Read(in); err != nil {
				return
			}
		}
	}
}

func TestRunnerScanAllSucceed(t *testing.T) {
	buf := buildFakeServerHello(t, 0x002f, 0x0303, []uint16{0x0010}, "h2")
	r := &Runner{
		Resolver: staticResolver{ip: net.ParseIP("127.0.0.1")},
		Dialer:   pipeDialer{serverFn: echoServerHello(buf)},
		Random:   fixedRandom(),
		Grease:   fixedGrease(),
	}
	res := r.Scan(context.Background(), "example.com", 443, ScanOptions{Timeout: 2 * time.Second, Concurrency: 3})
	if !hexRE.MatchString(res.JARM) {
		t.Fatalf("scan JARM %q does not match expected hex shape", res.JARM)
	}
	if res.JARM == zeroJARM {
		t.Fatalf("expected a non-sentinel JARM when every probe succeeds")
	}
	for i, p := range res.Probes {
		if !p.Outcome.OK {
			t.Fatalf("probe %d (%s) unexpectedly failed", i, p.Profile.Name)
		}
	}
}

func TestRunnerScanAllTimeOut(t *testing.T) {
	r := &Runner{
		Resolver: staticResolver{ip: net.ParseIP("127.0.0.1")},
		Dialer:   pipeDialer{serverFn: hangingServer()},
		Random:   fixedRandom(),
		Grease:   fixedGrease(),
	}
	res := r.Scan(context.Background(), "example.com", 443, ScanOptions{Timeout: 50 * time.Millisecond, Concurrency: 4})
	if res.JARM != zeroJARM {
		t.Fatalf("scan JARM = %q, want all-zero sentinel when every probe times out", res.JARM)
	}
}

func TestRunnerScanResolveFailureDegradesToFailedProbes(t *testing.T) {
	r := &Runner{
		Resolver: failingResolver{},
		Dialer:   pipeDialer{serverFn: echoServerHello(nil)},
		Random:   fixedRandom(),
		Grease:   fixedGrease(),
	}
	res := r.Scan(context.Background(), "example.com", 443, ScanOptions{Timeout: time.Second, Concurrency: 2})
	if res.JARM != zeroJARM {
		t.Fatalf("scan JARM = %q, want all-zero sentinel when resolution fails for every probe", res.JARM)
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(_ context.Context, _ string, _ AddressFamily) ([]net.IP, error) {
	return nil, newErr(KindInvalidTarget, "test", nil)
}
