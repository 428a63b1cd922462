// Package resolver implements the HostResolver seam jarm.Runner depends
// on. The production resolver talks to system/recursive nameservers
// directly with github.com/miekg/dns rather than going through
// net.Resolver, falling back to well-known public nameservers when
// resolv.conf can't be read; StdlibResolver is a separate net.Resolver-
// backed implementation that nothing selects automatically, and a static
// resolver backs tests.
package resolver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"jarmscan/internal/jarm"
)

// DNSResolver queries nameservers from /etc/resolv.conf directly via
// github.com/miekg/dns, trying each configured upstream in turn via
// dns.Client.Exchange until one answers A/AAAA records for the host.
type DNSResolver struct {
	Upstreams []string // host:port; falls back to resolv.conf servers when empty
	Timeout   time.Duration
}

// NewDNSResolver reads /etc/resolv.conf the way dns.ClientConfigFromFile
// is meant to be used, and falls back to a well-known public resolver if
// the file can't be read (containers and minimal hosts often lack one).
func NewDNSResolver() *DNSResolver {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || cfg == nil || len(cfg.Servers) == 0 {
		return &DNSResolver{Upstreams: []string{"1.1.1.1:53", "8.8.8.8:53"}, Timeout: 2 * time.Second}
	}
	port := cfg.Port
	if port == "" {
		port = "53"
	}
	ups := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		ups = append(ups, net.JoinHostPort(s, port))
	}
	return &DNSResolver{Upstreams: ups, Timeout: 2 * time.Second}
}

func (r *DNSResolver) Resolve(ctx context.Context, host string, family jarm.AddressFamily) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	var out []net.IP
	if family != jarm.AddressV6 {
		if ips, err := r.exchange(ctx, host, dns.TypeA); err == nil {
			out = append(out, ips...)
		}
	}
	if family != jarm.AddressV4 {
		if ips, err := r.exchange(ctx, host, dns.TypeAAAA); err == nil {
			out = append(out, ips...)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("resolver: no addresses found for %q", host)
	}
	return out, nil
}

func (r *DNSResolver) exchange(ctx context.Context, host string, qtype uint16) ([]net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	client := new(dns.Client)
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	client.Timeout = timeout

	upstreams := r.Upstreams
	if len(upstreams) == 0 {
		upstreams = NewDNSResolver().Upstreams
	}

	var lastErr error
	for _, addr := range upstreams {
		resp, _, err := client.Exchange(msg, addr)
		if err != nil {
			lastErr = err
			continue
		}
		var ips []net.IP
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				ips = append(ips, rec.A)
			case *dns.AAAA:
				ips = append(ips, rec.AAAA)
			}
		}
		if len(ips) > 0 {
			return ips, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("resolver: empty answer for %q", host)
}

// StdlibResolver falls back to the standard library's net.Resolver,
// kept as a portability fallback for hosts where a raw DNS client can't
// reach any nameserver (e.g. NXDOMAIN-rewriting captive networks that
// only honor the system stub resolver).
type StdlibResolver struct {
	Resolver *net.Resolver
}

func (r *StdlibResolver) Resolve(ctx context.Context, host string, family jarm.AddressFamily) ([]net.IP, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	ips, err := res.LookupIP(ctx, networkFor(family), host)
	if err != nil {
		return nil, err
	}
	return ips, nil
}

func networkFor(family jarm.AddressFamily) string {
	switch family {
	case jarm.AddressV4:
		return "ip4"
	case jarm.AddressV6:
		return "ip6"
	default:
		return "ip"
	}
}

// Static resolves a fixed set of hostnames to canned addresses; used by
// tests and by internal/fixture's harness to avoid a real DNS round trip.
type Static struct {
	Addrs map[string][]net.IP
}

func (s Static) Resolve(_ context.Context, host string, _ jarm.AddressFamily) ([]net.IP, error) {
	if ips, ok := s.Addrs[host]; ok && len(ips) > 0 {
		return ips, nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	return nil, fmt.Errorf("resolver: no static address for %q", host)
}
