// Command drill load-tests a running jarmd admin API: it fires
// concurrent /scan requests at a set of targets and reports a latency
// distribution (EWMA-smoothed) plus a success/timeout/error breakdown.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type result struct {
	attempt int
	dur     time.Duration
	err     error
	class   string // success|timeout|refused|other
	jarm    string
}

type ewma struct {
	alpha float64
	value float64
	set   bool
}

func (e *ewma) update(v float64) {
	if !e.set {
		e.value = v
		e.set = true
		return
	}
	e.value = e.alpha*v + (1-e.alpha)*e.value
}

func classify(err error) string {
	if err == nil {
		return "success"
	}
	es := err.Error()
	switch {
	case strings.Contains(es, "Client.Timeout") || strings.Contains(es, "deadline exceeded"):
		return "timeout"
	case strings.Contains(es, "connection refused") || strings.Contains(es, "connect:"):
		return "refused"
	default:
		return "other"
	}
}

func main() {
	var (
		adminURL    = flag.String("admin", "http://127.0.0.1:8090", "jarmd admin API base URL")
		host        = flag.String("host", "example.com", "host to scan on every attempt")
		port        = flag.Int("port", 443, "port to scan on every attempt")
		attempts    = flag.Int("attempts", 50, "total /scan requests to issue")
		concurrency = flag.Int("concurrency", 5, "concurrent workers")
		reqTimeout  = flag.Duration("timeout", 25*time.Second, "per-request HTTP client timeout")
		alpha       = flag.Float64("ewma-alpha", 0.2, "EWMA smoothing factor for latency")
		maxErrRate  = flag.Float64("max-error-rate", 0.1, "fail the run if the error rate exceeds this fraction")
	)
	flag.Parse()

	client := &http.Client{Timeout: *reqTimeout}

	var (
		results   []result
		resultsMu sync.Mutex
		idx       int32
		e         = ewma{alpha: *alpha}
	)

	body, _ := json.Marshal(map[string]any{"host": *host, "port": *port})

	worker := func() {
		for {
			my := int(atomic.AddInt32(&idx, 1))
			if my > *attempts {
				return
			}
			start := time.Now()
			resp, err := client.Post(*adminURL+"/scan", "application/json", bytes.NewReader(body))
			var jarmVal string
			if err == nil {
				var out struct {
					JARM string `json:"jarm"`
				}
				_ = json.NewDecoder(resp.Body).Decode(&out)
				resp.Body.Close()
				jarmVal = out.JARM
			}
			dur := time.Since(start)
			class := classify(err)

			resultsMu.Lock()
			results = append(results, result{attempt: my, dur: dur, err: err, class: class, jarm: jarmVal})
			e.update(float64(dur.Milliseconds()))
			resultsMu.Unlock()
		}
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); worker() }()
	}
	wg.Wait()
	total := time.Since(start)

	resultsMu.Lock()
	sort.Slice(results, func(i, j int) bool { return results[i].attempt < results[j].attempt })
	var success, timeouts, refused, other int
	var durs []time.Duration
	for _, r := range results {
		durs = append(durs, r.dur)
		switch r.class {
		case "success":
			success++
		case "timeout":
			timeouts++
		case "refused":
			refused++
		default:
			other++
		}
	}
	resultsMu.Unlock()

	median := func(d []time.Duration) time.Duration {
		if len(d) == 0 {
			return 0
		}
		sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })
		return d[len(d)/2]
	}

	fmt.Printf("target=%s:%d attempts=%d total_time=%s\n", *host, *port, len(results), total)
	fmt.Printf("success=%d timeout=%d refused=%d other=%d ewma_ms=%.1f median=%s\n",
		success, timeouts, refused, other, e.value, median(durs))

	errRate := float64(len(results)-success) / float64(len(results))
	fmt.Printf("error_rate=%.2f threshold=%.2f\n", errRate, *maxErrRate)
	if errRate > *maxErrRate {
		fmt.Fprintln(os.Stderr, "FAIL: error rate above threshold")
		os.Exit(1)
	}
	fmt.Println("PASS")
}
