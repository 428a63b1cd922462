// Command jarmscan is the one-shot JARM scanning CLI: it resolves and
// scans one or more targets, printing or writing a CSV row per target.
package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	mrand "math/rand/v2"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"jarmscan/internal/jarm"
	"jarmscan/internal/resolver"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("jarmscan", flag.ContinueOnError)
	var (
		inputFile     = fs.String("i", "", "file of targets, one host[:port] per line")
		outFile       = fs.String("o", "", "CSV output path (default: stdout)")
		v4            = fs.Bool("4", false, "restrict to IPv4")
		v6            = fs.Bool("6", false, "restrict to IPv6")
		concurrency   = fs.Int("c", 2, "probe concurrency per target")
		proxyFlag     = fs.String("proxy", "", "proxy URL, or 'ignore' to disable HTTPS_PROXY")
		proxyAuth     = fs.String("proxy-auth", "", "Proxy-Authorization header value")
		proxyInsecure = fs.Bool("proxy-insecure", false, "skip certificate verification for an https:// proxy")
		debug         = fs.Bool("d", false, "verbose logging")
		timeoutSecs   = fs.Float64("timeout", 20, "per-probe timeout in seconds")
		suppress      = fs.Bool("suppress", false, "suppress per-target progress output")
	)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: jarmscan [flags] <host[:port]> | -i <file>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *v4 && *v6 {
		fmt.Fprintln(os.Stderr, "jarmscan: -4 and -6 are mutually exclusive")
		return 2
	}
	family := jarm.AddressAny
	if *v4 {
		family = jarm.AddressV4
	}
	if *v6 {
		family = jarm.AddressV6
	}

	var targets []string
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jarmscan: %v\n", err)
			return 2
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line != "" {
				targets = append(targets, line)
			}
		}
	} else if fs.NArg() == 1 {
		targets = []string{fs.Arg(0)}
	} else {
		fs.Usage()
		return 2
	}

	proxy, err := resolveProxySpec(*proxyFlag, *proxyAuth, *proxyInsecure)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jarmscan: %v\n", err)
		return 2
	}

	logger := log.New(os.Stderr, "[jarmscan] ", log.LstdFlags)

	out := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jarmscan: %v\n", err)
			return 2
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	defer w.Flush()
	_ = w.Write([]string{"Host", "Port", "JARM", "ScanTime"})

	runner := &jarm.Runner{
		Resolver: resolver.NewDNSResolver(),
		Dialer:   &net.Dialer{},
		Random:   productionRandom,
		Grease:   productionGrease,
	}

	for _, target := range targets {
		host, port, err := splitHostPort(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jarmscan: %v\n", err)
			continue
		}
		if *debug {
			logger.Printf("scanning %s:%d", host, port)
		}

		opts := jarm.ScanOptions{
			Timeout:     time.Duration(*timeoutSecs * float64(time.Second)),
			Family:      family,
			Concurrency: *concurrency,
			Proxy:       proxy,
		}
		res := runner.Scan(ctx, host, port, opts)
		_ = w.Write([]string{host, strconv.Itoa(port), res.JARM, res.FinishedAt.UTC().Format(time.RFC3339)})
		w.Flush()
		if !*suppress {
			fmt.Fprintf(os.Stderr, "%s:%d %s\n", host, port, res.JARM)
		}
	}
	return 0
}

func splitHostPort(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return target, 443, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", target, err)
	}
	return host, port, nil
}

func resolveProxySpec(proxyFlag, authValue string, insecure bool) (jarm.ProxySpec, error) {
	if proxyFlag == "ignore" {
		return jarm.ProxySpec{}, nil
	}
	raw := proxyFlag
	if raw == "" {
		raw = os.Getenv("HTTPS_PROXY")
	}
	if raw == "" {
		return jarm.ProxySpec{}, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return jarm.ProxySpec{}, fmt.Errorf("invalid proxy URL %q", raw)
	}
	scheme := u.Scheme
	if scheme != "http" && scheme != "https" {
		return jarm.ProxySpec{}, fmt.Errorf("unsupported proxy scheme %q", scheme)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		host = u.Host
		if scheme == "https" {
			portStr = "443"
		} else {
			portStr = "80"
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return jarm.ProxySpec{}, fmt.Errorf("invalid proxy port in %q", raw)
	}

	auth := jarm.ProxyAuth{HeaderValue: authValue}
	if auth.HeaderValue == "" && u.User != nil {
		user := u.User.Username()
		pass, _ := u.User.Password()
		auth.HeaderValue = "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
	}

	return jarm.ProxySpec{Scheme: scheme, Host: host, Port: port, Auth: auth, Insecure: insecure}, nil
}

func productionRandom() [32]byte {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return b
}

func productionGrease() uint16 {
	return greaseTable[mrand.N(len(greaseTable))]
}

var greaseTable = [16]uint16{
	0x0a0a, 0x1a1a, 0x2a2a, 0x3a3a, 0x4a4a, 0x5a5a, 0x6a6a, 0x7a7a,
	0x8a8a, 0x9a9a, 0xaaaa, 0xbaba, 0xcaca, 0xdada, 0xeaea, 0xfafa,
}
