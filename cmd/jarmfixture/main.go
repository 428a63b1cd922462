// Command jarmfixture is a minimal, flag-configured TLS-probe-responding
// test server, answering raw bytes at the TCP level (internal/fixture)
// so cmd/jarmscan can be pointed at a deterministic, scriptable stand-in
// for a real TLS server during manual testing. See cmd/jarmupstream for
// a companion server that answers with a genuine crypto/tls handshake
// instead of scripted bytes.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"jarmscan/internal/fixture"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		addr      = flag.String("listen", getenv("JARMFIXTURE_LISTEN", ":8443"), "TCP listen address")
		adminAddr = flag.String("admin", getenv("JARMFIXTURE_ADMIN", ""), "optional admin HTTP address for live reconfiguration (empty disables it)")
		behavior  = flag.String("behavior", getenv("JARMFIXTURE_BEHAVIOR", "ECHO"), "ECHO | ABORT_AFTER_HELLO | BLACKHOLE | TRUNCATE | ALERT")
		respHex   = flag.String("response-hex", "", "hex-encoded response bytes for ECHO/TRUNCATE (default: a generic ServerHello)")
		truncate  = flag.Int("truncate-bytes", 0, "byte count for TRUNCATE (default: half of response)")
		holdFor   = flag.Duration("hold-for", 2*time.Second, "how long BLACKHOLE holds the connection open")
	)
	flag.Parse()

	response := defaultServerHello
	if *respHex != "" {
		b, err := hex.DecodeString(*respHex)
		if err != nil {
			log.Fatalf("bad -response-hex: %v", err)
		}
		response = b
	}

	cfg := fixture.Config{
		Behavior:      fixture.Behavior(*behavior),
		Response:      response,
		TruncateBytes: *truncate,
		HoldFor:       *holdFor,
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	srv, err := fixture.NewServer(*addr, cfg, logger)
	if err != nil {
		log.Fatalf("listen on %s: %v", *addr, err)
	}
	logger.Printf("[jarmfixture] listening on %s, behavior=%s", *addr, cfg.Behavior)

	if *adminAddr != "" {
		go serveAdmin(*adminAddr, srv, logger)
	}
	log.Fatal(srv.Serve())
}

// serveAdmin exposes GET/POST /control for inspecting and live-swapping
// the fixture's Config without restarting the listener.
func serveAdmin(addr string, srv *fixture.Server, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/control", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(srv.CurrentConfig())
		case http.MethodPost:
			var cfg fixture.Config
			if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
				http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
				return
			}
			srv.SetConfig(cfg)
			logger.Printf("[jarmfixture] admin reconfigured behavior=%s", cfg.Behavior)
			_ = json.NewEncoder(w).Encode(srv.CurrentConfig())
		default:
			http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
		}
	})
	logger.Printf("[jarmfixture] admin API on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatalf("admin server error: %v", err)
	}
}

// defaultServerHello is a plausible-looking ServerHello record (cipher
// 0x002f, TLS 1.2, no extensions) good enough to exercise the Parser's
// success path without any -response-hex argument.
var defaultServerHello = []byte{
	0x16, 0x03, 0x03, 0x00, 0x2c,
	0x02, 0x00, 0x00, 0x28,
	0x03, 0x03,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0x00,
	0x00, 0x2f,
	0x00,
	0x00, 0x00,
}
