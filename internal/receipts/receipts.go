// Package receipts implements a signed, append-only ledger of finished
// scans: a Receipt records that a given host produced a given
// fingerprint at a given time, signed with an ed25519 key so a client
// can verify a receipt independently of the ledger that issued it.
package receipts

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"jarmscan/internal/jarm"
)

// Receipt is the signed record of one completed scan. Hash and
// Signature are populated by Manager.Add and are never set by callers.
// ID is a locally sequential ledger position (used for /receipts
// pagination); TraceID is a globally unique correlation token external
// systems can log alongside their own request IDs without depending on
// the ledger's local, restart-sensitive ID sequence.
type Receipt struct {
	ID           int64     `json:"id"`
	TraceID      string    `json:"trace_id"`
	Timestamp    time.Time `json:"timestamp"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	JARM         string    `json:"jarm"`
	Label        string    `json:"label,omitempty"`
	FailedProbes int       `json:"failed_probes"`
	Hash         string    `json:"hash"`
	Signature    string    `json:"signature"`
}

// canonicalBytes renders the fields that are signed over, deliberately
// excluding Hash and Signature themselves.
func (r Receipt) canonicalBytes() []byte {
	type signed struct {
		ID           int64     `json:"id"`
		TraceID      string    `json:"trace_id"`
		Timestamp    time.Time `json:"timestamp"`
		Host         string    `json:"host"`
		Port         int       `json:"port"`
		JARM         string    `json:"jarm"`
		Label        string    `json:"label,omitempty"`
		FailedProbes int       `json:"failed_probes"`
	}
	b, _ := json.Marshal(signed{r.ID, r.TraceID, r.Timestamp, r.Host, r.Port, r.JARM, r.Label, r.FailedProbes})
	return b
}

// Manager is an append-only, capacity-bounded ledger of signed receipts,
// backed by a ring buffer, with a channel-broadcast fan-out so callers
// can tail new receipts live (see /receipts/stream in cmd/jarmd).
type Manager struct {
	mu      sync.RWMutex
	cap     int
	nextID  int64
	ring    []Receipt
	byID    map[int64]int // id -> index into ring
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	subs    map[int]chan Receipt
	nextSub int
}

// NewManager creates a ledger bounded to capacity entries, signing every
// new receipt with priv.
func NewManager(capacity int, priv ed25519.PrivateKey) *Manager {
	if capacity <= 0 {
		capacity = 256
	}
	return &Manager{
		cap:  capacity,
		byID: make(map[int64]int),
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
		subs: make(map[int]chan Receipt),
	}
}

// PublicKeyHex returns the verifying key as lowercase hex, for clients
// that want to validate signatures independently.
func (m *Manager) PublicKeyHex() string {
	return hex.EncodeToString(m.pub)
}

// NewReceipt builds (but does not store) a Receipt from a finished scan.
func NewReceipt(id int64, res jarm.ScanResult, label string) Receipt {
	failed := 0
	for _, p := range res.Probes {
		if !p.Outcome.OK {
			failed++
		}
	}
	return Receipt{
		ID:           id,
		TraceID:      uuid.NewString(),
		Timestamp:    res.FinishedAt,
		Host:         res.Host,
		Port:         res.Port,
		JARM:         res.JARM,
		Label:        label,
		FailedProbes: failed,
	}
}

// Add computes the receipt's hash and signature, stores it (evicting the
// oldest entry if at capacity), broadcasts it to subscribers, and
// returns the finalized copy.
func (m *Manager) Add(r Receipt) Receipt {
	sum := sha256.Sum256(r.canonicalBytes())
	r.Hash = hex.EncodeToString(sum[:])
	r.Signature = hex.EncodeToString(ed25519.Sign(m.priv, sum[:]))

	m.mu.Lock()
	if len(m.ring) >= m.cap {
		evicted := m.ring[0]
		m.ring = m.ring[1:]
		delete(m.byID, evicted.ID)
	}
	m.ring = append(m.ring, r)
	// rebuild the index cheaply; capacity is small (hundreds), not hot path.
	m.byID = make(map[int64]int, len(m.ring))
	for i, rec := range m.ring {
		m.byID[rec.ID] = i
	}
	subs := make([]chan Receipt, 0, len(m.subs))
	for _, ch := range m.subs {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- r:
		default: // slow subscriber, drop rather than block Add
		}
	}
	return r
}

// NextID returns a fresh monotonically increasing receipt id.
func (m *Manager) NextID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID
}

func (m *Manager) Get(id int64) (Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.byID[id]
	if !ok {
		return Receipt{}, fmt.Errorf("receipts: id %d not found", id)
	}
	return m.ring[idx], nil
}

// List returns up to limit most-recent receipts, newest first. limit<=0
// means unbounded.
func (m *Manager) List(limit int) []Receipt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.ring)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Receipt, n)
	for i := 0; i < n; i++ {
		out[i] = m.ring[len(m.ring)-1-i]
	}
	return out
}

// Verify recomputes the hash and checks the signature independently,
// reporting each result so a caller can tell a tampered hash apart from
// a tampered signature.
func (m *Manager) Verify(r Receipt) (hashOK, sigOK bool) {
	sum := sha256.Sum256(r.canonicalBytes())
	wantHash := hex.EncodeToString(sum[:])
	hashOK = wantHash == r.Hash

	sig, err := hex.DecodeString(r.Signature)
	if err != nil {
		return hashOK, false
	}
	sigOK = ed25519.Verify(m.pub, sum[:], sig)
	return hashOK, sigOK
}

// Subscribe registers a buffered channel that receives every future
// receipt Add produces, returning a cancel func that unregisters it.
func (m *Manager) Subscribe(buffer int) (<-chan Receipt, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Receipt, buffer)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
	return ch, cancel
}
