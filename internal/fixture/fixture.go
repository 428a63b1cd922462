// Package fixture implements a TLS-probe-responding test listener: a
// Server terminates the connection itself and answers with a canned
// ServerHello-shaped response selected by a per-connection Behavior, so
// jarm.Runner and cmd/jarmscan can be exercised end to end without a
// network round trip to a real server. It also parses the incoming
// ClientHello and uses the extracted SNI to pick a per-hostname response
// override, so a single fixture listener can stand in for several
// virtual hosts at once.
package fixture

import (
	"bufio"
	"log"
	"net"
	"sync"
	"time"

	"jarmscan/internal/tlsinspect"
)

// Behavior selects how a fixture connection answers a ClientHello.
type Behavior string

const (
	// BehaviorEcho writes back a fixed ServerHello-shaped buffer (or a
	// per-SNI override from Config.SNIResponses, if one matches).
	BehaviorEcho Behavior = "ECHO"
	// BehaviorAbortAfterHello closes the connection the instant the
	// ClientHello has been read, never writing a response.
	BehaviorAbortAfterHello Behavior = "ABORT_AFTER_HELLO"
	// BehaviorBlackhole reads the ClientHello and then holds the
	// connection open without responding until HoldFor elapses.
	BehaviorBlackhole Behavior = "BLACKHOLE"
	// BehaviorTruncate writes only the first TruncateBytes of the
	// configured response.
	BehaviorTruncate Behavior = "TRUNCATE"
	// BehaviorAlert writes a single TLS alert record (0x15) instead of a
	// ServerHello, exercising the Parser's buf[0]==0x15 branch.
	BehaviorAlert Behavior = "ALERT"
)

// Config pins one fixture connection's behavior and the bytes it plays
// back for the behaviors that respond at all.
type Config struct {
	Behavior Behavior
	Response []byte // used by BehaviorEcho and BehaviorTruncate

	// SNIResponses overrides Response for BehaviorEcho when the
	// incoming ClientHello's parsed server_name extension matches a key
	// here (lowercased), letting one listener stand in for several
	// virtual hosts with distinct fingerprints.
	SNIResponses map[string][]byte

	TruncateBytes int           // used by BehaviorTruncate; defaults to half of Response
	HoldFor       time.Duration // used by BehaviorBlackhole; defaults to 2s
}

var defaultAlert = []byte{0x15, 0x03, 0x03, 0x00, 0x02, 0x02, 0x28} // fatal, handshake_failure

// state holds the live, hot-swappable Config behind a lock, so an admin
// endpoint can change a fixture's behavior without restarting the
// listener or disturbing connections already in flight.
type state struct {
	mu  sync.RWMutex
	cur Config
}

func (s *state) apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Behavior == "" {
		cfg.Behavior = BehaviorEcho
	}
	if cfg.Behavior == BehaviorBlackhole && cfg.HoldFor <= 0 {
		cfg.HoldFor = 2 * time.Second
	}
	s.cur = cfg
}

func (s *state) get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Server accepts connections and answers each one according to its
// current Config, handling each in its own goroutine off a single
// accept loop.
type Server struct {
	Listener net.Listener
	Logger   *log.Logger

	state    state
	mu       sync.Mutex
	accepted int64

	helloMu   sync.RWMutex
	lastHello tlsinspect.Result
	haveHello bool
}

// NewServer starts listening on addr (":0" picks a free port) and
// returns a Server ready for Serve.
func NewServer(addr string, cfg Config, logger *log.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	srv := &Server{Listener: ln, Logger: logger}
	srv.state.apply(cfg)
	return srv, nil
}

// Addr returns the listener's bound address, useful once NewServer was
// called with ":0".
func (s *Server) Addr() net.Addr { return s.Listener.Addr() }

// SetConfig swaps the behavior every subsequently accepted connection
// sees, without interrupting connections already being handled.
func (s *Server) SetConfig(cfg Config) { s.state.apply(cfg) }

// CurrentConfig returns the Config in effect right now.
func (s *Server) CurrentConfig() Config { return s.state.get() }

// LastHello returns the most recently parsed ClientHello seen by any
// connection, and whether one has been parsed successfully yet.
func (s *Server) LastHello() (tlsinspect.Result, bool) {
	s.helloMu.RLock()
	defer s.helloMu.RUnlock()
	return s.lastHello, s.haveHello
}

// Serve accepts connections until the listener is closed, handling each
// one in its own goroutine.
func (s *Server) Serve() error {
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.accepted++
		id := s.accepted
		s.mu.Unlock()
		go s.handle(conn, id)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error { return s.Listener.Close() }

func (s *Server) handle(conn net.Conn, id int64) {
	defer conn.Close()
	cfg := s.state.get()

	br := bufio.NewReader(conn)
	// Parse the incoming ClientHello so BehaviorEcho can answer with a
	// per-SNI override below, and so operators/tests can inspect the
	// last hello this server saw via LastHello.
	var hello tlsinspect.Result
	var helloOK bool
	if _, res, err := tlsinspect.ParseClientHello(br); err != nil {
		s.Logger.Printf("[fixture %d] clienthello parse error: %v", id, err)
	} else {
		s.Logger.Printf("[fixture %d] clienthello sni=%q alpn=%v ciphers=%d ja3=%s", id, res.SNI, res.ALPN, res.CipherSuites, res.JA3)
		hello, helloOK = res, true
		s.helloMu.Lock()
		s.lastHello, s.haveHello = res, true
		s.helloMu.Unlock()
	}

	switch cfg.Behavior {
	case BehaviorAbortAfterHello:
		s.Logger.Printf("[fixture %d] ABORT_AFTER_HELLO: closing without responding", id)
		return

	case BehaviorBlackhole:
		hold := cfg.HoldFor
		if hold <= 0 {
			hold = 2 * time.Second
		}
		s.Logger.Printf("[fixture %d] BLACKHOLE: holding for %s", id, hold)
		time.Sleep(hold)
		return

	case BehaviorTruncate:
		n := cfg.TruncateBytes
		if n <= 0 || n > len(cfg.Response) {
			n = len(cfg.Response) / 2
		}
		s.Logger.Printf("[fixture %d] TRUNCATE: writing %d of %d response bytes", id, n, len(cfg.Response))
		_, _ = conn.Write(cfg.Response[:n])

	case BehaviorAlert:
		s.Logger.Printf("[fixture %d] ALERT: writing a fatal TLS alert", id)
		_, _ = conn.Write(defaultAlert)

	default: // BehaviorEcho
		response := cfg.Response
		if helloOK && hello.SNI != "" {
			if override, ok := cfg.SNIResponses[hello.SNI]; ok {
				s.Logger.Printf("[fixture %d] ECHO: sni %q matched override, writing %d bytes", id, hello.SNI, len(override))
				response = override
			}
		}
		s.Logger.Printf("[fixture %d] ECHO: writing %d response bytes", id, len(response))
		_, _ = conn.Write(response)
	}
}
