package receipts

import (
	"crypto/ed25519"
	"testing"
	"time"

	"jarmscan/internal/jarm"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewManager(4, priv)
}

func TestAddThenVerifySucceeds(t *testing.T) {
	m := testManager(t)
	r := NewReceipt(m.NextID(), jarm.ScanResult{Host: "example.com", Port: 443, JARM: "deadbeef", FinishedAt: time.Now()}, "known_good")
	stored := m.Add(r)

	hashOK, sigOK := m.Verify(stored)
	if !hashOK || !sigOK {
		t.Fatalf("verify(stored) = (%v, %v), want (true, true)", hashOK, sigOK)
	}
}

func TestVerifyDetectsTamperedHash(t *testing.T) {
	m := testManager(t)
	r := NewReceipt(m.NextID(), jarm.ScanResult{Host: "example.com", Port: 443, JARM: "deadbeef", FinishedAt: time.Now()}, "")
	stored := m.Add(r)
	stored.Host = "evil.example.com" // mutate a signed field without re-signing

	hashOK, sigOK := m.Verify(stored)
	if hashOK {
		t.Fatalf("expected hash mismatch after tampering with a signed field")
	}
	_ = sigOK
}

func TestListOrdersNewestFirstAndRespectsCapacity(t *testing.T) {
	m := testManager(t) // capacity 4
	for i := 0; i < 6; i++ {
		m.Add(NewReceipt(m.NextID(), jarm.ScanResult{Host: "h", JARM: "x", FinishedAt: time.Now()}, ""))
	}
	all := m.List(0)
	if len(all) != 4 {
		t.Fatalf("expected ring capped at 4, got %d", len(all))
	}
	if all[0].ID != 6 {
		t.Fatalf("expected newest-first ordering, got id %d first", all[0].ID)
	}
}

func TestGetUnknownIDErrors(t *testing.T) {
	m := testManager(t)
	if _, err := m.Get(999); err == nil {
		t.Fatalf("expected an error for an unknown receipt id")
	}
}

func TestSubscribeReceivesNewReceipts(t *testing.T) {
	m := testManager(t)
	ch, cancel := m.Subscribe(2)
	defer cancel()

	m.Add(NewReceipt(m.NextID(), jarm.ScanResult{Host: "h", JARM: "x", FinishedAt: time.Now()}, ""))

	select {
	case r := <-ch:
		if r.Host != "h" {
			t.Fatalf("got host %q, want h", r.Host)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber did not receive the new receipt in time")
	}
}
