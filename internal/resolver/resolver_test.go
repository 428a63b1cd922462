package resolver

import (
	"context"
	"net"
	"testing"

	"jarmscan/internal/jarm"
)

func TestStaticResolverReturnsConfiguredAddress(t *testing.T) {
	s := Static{Addrs: map[string][]net.IP{
		"example.com": {net.ParseIP("203.0.113.7")},
	}}
	ips, err := s.Resolve(context.Background(), "example.com", jarm.AddressAny)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ips) != 1 || !ips[0].Equal(net.ParseIP("203.0.113.7")) {
		t.Fatalf("got %v, want [203.0.113.7]", ips)
	}
}

func TestStaticResolverPassesThroughLiteralIPs(t *testing.T) {
	s := Static{}
	ips, err := s.Resolve(context.Background(), "127.0.0.1", jarm.AddressAny)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ips) != 1 || !ips[0].Equal(net.ParseIP("127.0.0.1")) {
		t.Fatalf("got %v, want [127.0.0.1]", ips)
	}
}

func TestStaticResolverUnknownHostErrors(t *testing.T) {
	s := Static{}
	if _, err := s.Resolve(context.Background(), "unknown.invalid", jarm.AddressAny); err == nil {
		t.Fatalf("expected an error for an unconfigured hostname")
	}
}

func TestNetworkForFamily(t *testing.T) {
	cases := map[jarm.AddressFamily]string{
		jarm.AddressAny: "ip",
		jarm.AddressV4:  "ip4",
		jarm.AddressV6:  "ip6",
	}
	for family, want := range cases {
		if got := networkFor(family); got != want {
			t.Fatalf("networkFor(%v) = %q, want %q", family, got, want)
		}
	}
}
