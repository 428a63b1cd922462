package jarm

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"
)

// AddressFamily restricts which resolved addresses a scan is allowed to
// connect over.
type AddressFamily int

const (
	AddressAny AddressFamily = iota
	AddressV4
	AddressV6
)

// HostResolver is the injected hostname-to-address seam; §1 marks DNS
// resolution as an external collaborator, interface-only from the core
// algorithm's point of view. internal/resolver supplies the production
// and static test implementations.
type HostResolver interface {
	Resolve(ctx context.Context, host string, family AddressFamily) ([]net.IP, error)
}

// Dialer is the injected byte-stream transport seam; §1 marks raw
// TCP/TLS socket I/O the same way. Production wiring is a plain
// *net.Dialer; tests substitute an in-memory or loopback implementation.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ProxySpec describes an optional HTTP/HTTPS CONNECT proxy the Runner
// should tunnel every probe through.
type ProxySpec struct {
	Scheme   string // "http", "https", or "" for no proxy
	Host     string
	Port     int
	Auth     ProxyAuth
	Insecure bool
}

func (p ProxySpec) enabled() bool { return p.Scheme != "" }

// ScanOptions mirrors the CLI-level knobs §6 describes, minus anything
// that is purely an output-formatting concern (CSV, debug printing).
type ScanOptions struct {
	Timeout     time.Duration
	Family      AddressFamily
	Concurrency int
	Proxy       ProxySpec
}

// ProbeRendering pairs one profile's outcome with its canonical position,
// so callers that want to inspect individual probes (tests, the fixture
// harness) don't have to re-derive the profile table.
type ProbeRendering struct {
	Profile Profile
	Outcome ParseOutcome
}

// ScanResult is the Runner's full output: the JARM string plus the ten
// renderings that produced it, in canonical order.
type ScanResult struct {
	Host       string
	Port       int
	JARM       string
	StartedAt  time.Time
	FinishedAt time.Time
	Probes     [10]ProbeRendering
}

// Runner executes the ten probes that make up one JARM scan.
type Runner struct {
	Resolver HostResolver
	Dialer   Dialer
	Random   RandomnessSource
	Grease   GreaseChooser
}

func defaultOptions(o ScanOptions) ScanOptions {
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 2
	}
	return o
}

// Scan opens one transport per probe (through the optional proxy tunnel),
// writes the built ClientHello, reads one chunk, and parses it — with
// bounded concurrency and a per-probe deadline — then reassembles the ten
// outcomes in canonical profile order before folding them into a JARM.
// A bulk-orchestration fault (never an individual probe fault) degrades
// to the all-zero sentinel, matching §4.4's error table.
func (r *Runner) Scan(ctx context.Context, host string, port int, opts ScanOptions) ScanResult {
	opts = defaultOptions(opts)
	result := ScanResult{Host: host, Port: port, StartedAt: time.Now()}

	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := [10]ParseOutcome{}

	for i, profile := range Profiles {
		wg.Add(1)
		go func(i int, profile Profile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := r.runOneProbe(ctx, host, port, profile, opts)

			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
		}(i, profile)
	}
	wg.Wait()

	var renderings [10]string
	for i, profile := range Profiles {
		result.Probes[i] = ProbeRendering{Profile: profile, Outcome: outcomes[i]}
		renderings[i] = outcomes[i].Render()
	}
	result.JARM = Assemble(renderings)
	result.FinishedAt = time.Now()
	return result
}

func (r *Runner) runOneProbe(ctx context.Context, host string, port int, profile Profile, opts ScanOptions) ParseOutcome {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	conn, err := r.dial(ctx, host, port, opts)
	if err != nil {
		return failed()
	}
	defer conn.Close()

	if opts.Proxy.enabled() {
		if err := ConnectTunnel(conn, host, port, opts.Proxy.Auth); err != nil {
			return failed()
		}
	}

	payload := Build(profile, host, r.Random, r.Grease)

	type ioResult struct {
		buf []byte
		err error
	}
	done := make(chan ioResult, 1)
	go func() {
		if _, err := conn.Write(payload); err != nil {
			done <- ioResult{nil, err}
			return
		}
		buf := make([]byte, 1484)
		n, err := conn.Read(buf)
		if err != nil && n == 0 {
			done <- ioResult{nil, err}
			return
		}
		done <- ioResult{buf[:n], nil}
	}()

	select {
	case <-ctx.Done():
		return failed()
	case res := <-done:
		if res.err != nil {
			return failed()
		}
		return Parse(res.buf)
	}
}

func (r *Runner) dial(ctx context.Context, host string, port int, opts ScanOptions) (net.Conn, error) {
	connectHost, connectPort := host, port
	if opts.Proxy.enabled() {
		connectHost, connectPort = opts.Proxy.Host, opts.Proxy.Port
	}

	addrs, err := r.Resolver.Resolve(ctx, connectHost, opts.Family)
	if err != nil || len(addrs) == 0 {
		return nil, newErr(KindInvalidTarget, "dial.resolve", err)
	}
	addr := net.JoinHostPort(addrs[0].String(), fmt.Sprintf("%d", connectPort))

	network := "tcp"
	switch opts.Family {
	case AddressV4:
		network = "tcp4"
	case AddressV6:
		network = "tcp6"
	}

	conn, err := r.Dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, newErr(KindIO, "dial.connect", err)
	}

	if opts.Proxy.enabled() && opts.Proxy.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName:         opts.Proxy.Host,
			InsecureSkipVerify: opts.Proxy.Insecure,
		})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, newErr(KindIO, "dial.proxyTLS", err)
		}
		return tlsConn, nil
	}
	return conn, nil
}
