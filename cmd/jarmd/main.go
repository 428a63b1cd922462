// Command jarmd is the long-running JARM scanning daemon: an admin HTTP
// API wrapping the same jarm.Runner the jarmscan CLI uses, signing each
// scan into an ed25519 receipt ledger and matching it against a
// hot-swappable, atomic.Value-held rule set, with an NDJSON endpoint for
// streaming new receipts to subscribers.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"flag"
	"log"
	mrand "math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"jarmscan/internal/jarm"
	"jarmscan/internal/receipts"
	"jarmscan/internal/resolver"
	"jarmscan/internal/rulematch"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		adminAddr   = flag.String("admin", getenv("JARMD_ADMIN", ":8090"), "admin HTTP API address")
		keyFile     = flag.String("keyfile", getenv("JARMD_KEYFILE", "jarmd-ed25519.key"), "path to Ed25519 seed file (created if missing)")
		rcptCap     = flag.Int("receipt-capacity", 256, "number of receipts retained in the ledger")
		scanTimeout = flag.Duration("scan-timeout", 20*time.Second, "per-probe timeout for /scan requests")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[jarmd] ", log.LstdFlags)

	seed, err := os.ReadFile(*keyFile)
	if err != nil || len(seed) != ed25519.SeedSize {
		var newSeed [ed25519.SeedSize]byte
		if _, rerr := rand.Read(newSeed[:]); rerr != nil {
			logger.Fatalf("generate ed25519 seed: %v", rerr)
		}
		if werr := os.WriteFile(*keyFile, newSeed[:], 0600); werr != nil {
			logger.Fatalf("write keyfile: %v", werr)
		}
		seed = newSeed[:]
		logger.Printf("generated new ed25519 keyfile %s", *keyFile)
	} else {
		logger.Printf("loaded ed25519 keyfile %s", *keyFile)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	ledger := receipts.NewManager(*rcptCap, priv)

	var ruleSet atomic.Value
	ruleSet.Store(rulematch.Set{})

	runner := &jarm.Runner{
		Resolver: resolver.NewDNSResolver(),
		Dialer:   &net.Dialer{},
		Random:   productionRandom,
		Grease:   productionGrease,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Host   string `json:"host"`
			Port   int    `json:"port"`
			Family string `json:"family"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Host == "" {
			http.Error(w, "host required", http.StatusBadRequest)
			return
		}
		if req.Port == 0 {
			req.Port = 443
		}

		family := jarm.AddressAny
		switch req.Family {
		case "4", "v4", "ipv4":
			family = jarm.AddressV4
		case "6", "v6", "ipv6":
			family = jarm.AddressV6
		}

		ctx, cancel := context.WithTimeout(r.Context(), *scanTimeout*2)
		defer cancel()
		res := runner.Scan(ctx, req.Host, req.Port, jarm.ScanOptions{
			Timeout: *scanTimeout,
			Family:  family,
		})

		label := ""
		if set, ok := ruleSet.Load().(rulematch.Set); ok {
			if l, matched := set.Match(res); matched {
				label = string(l)
			}
		}

		rec := ledger.Add(receipts.NewReceipt(ledger.NextID(), res, label))
		logger.Printf("scan %s:%d -> %s (label=%q)", req.Host, req.Port, res.JARM, label)
		_ = json.NewEncoder(w).Encode(rec)
	})

	mux.HandleFunc("/receipts/pubkey", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"ed25519_pubkey_hex": ledger.PublicKeyHex()})
	})

	mux.HandleFunc("/receipts", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if idStr := q.Get("id"); idStr != "" {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				http.Error(w, "bad id", http.StatusBadRequest)
				return
			}
			rec, err := ledger.Get(id)
			if err != nil {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(rec)
			return
		}
		limit := 0
		if v := q.Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"receipts": ledger.List(limit)})
	})

	mux.HandleFunc("/receipts/verify", func(w http.ResponseWriter, r *http.Request) {
		idStr := r.URL.Query().Get("id")
		if idStr == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		rec, err := ledger.Get(id)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		hashOK, sigOK := ledger.Verify(rec)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "hash_ok": hashOK, "sig_ok": sigOK})
	})

	mux.HandleFunc("/receipts/stream", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "stream unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		ch, cancel := ledger.Subscribe(64)
		defer cancel()
		enc := json.NewEncoder(w)
		done := r.Context().Done()
		for {
			select {
			case <-done:
				return
			case rec := <-ch:
				_ = enc.Encode(rec)
				flusher.Flush()
			}
		}
	})

	mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			curr, _ := ruleSet.Load().(rulematch.Set)
			var out []string
			for _, ru := range curr.Rules {
				out = append(out, ru.Raw)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"rules": out})
		case http.MethodPost:
			set, err := rulematch.Parse(r.Body)
			if err != nil {
				http.Error(w, "parse error: "+err.Error(), http.StatusBadRequest)
				return
			}
			ruleSet.Store(set)
			_ = json.NewEncoder(w).Encode(map[string]any{"loaded": len(set.Rules)})
		case http.MethodDelete:
			ruleSet.Store(rulematch.Set{})
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/rules/test", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var fake jarm.ScanResult
		fake.Host = q.Get("host")
		fake.JARM = q.Get("jarm")
		for i := range fake.Probes {
			fake.Probes[i].Outcome.OK = true
		}
		if v := q.Get("failed_probes"); v != "" {
			n, _ := strconv.Atoi(v)
			for i := 0; i < n && i < len(fake.Probes); i++ {
				fake.Probes[i].Outcome.OK = false
			}
		}
		set, _ := ruleSet.Load().(rulematch.Set)
		if label, ok := set.Match(fake); ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"matched": true, "label": label})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"matched": false})
	})

	srv := &http.Server{
		Addr:         *adminAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: *scanTimeout*10 + 10*time.Second,
	}
	go func() {
		logger.Printf("admin API on %s", *adminAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("admin server error: %v", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Printf("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Printf("bye")
}

func productionRandom() [32]byte {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return b
}

var greaseTable = [16]uint16{
	0x0a0a, 0x1a1a, 0x2a2a, 0x3a3a, 0x4a4a, 0x5a5a, 0x6a6a, 0x7a7a,
	0x8a8a, 0x9a9a, 0xaaaa, 0xbaba, 0xcaca, 0xdada, 0xeaea, 0xfafa,
}

func productionGrease() uint16 {
	return greaseTable[mrand.N(len(greaseTable))]
}
