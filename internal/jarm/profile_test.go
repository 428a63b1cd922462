package jarm

import "testing"

func TestReorderForwardIsIdentity(t *testing.T) {
	l := []int{1, 2, 3, 4, 5}
	got := reorder(l, OrderForward)
	for i, v := range got {
		if v != l[i] {
			t.Fatalf("forward reorder changed element %d: got %d want %d", i, v, l[i])
		}
	}
}

func TestReorderReverseIsInvolution(t *testing.T) {
	l := []int{1, 2, 3, 4, 5, 6}
	once := reorder(l, OrderReverse)
	twice := reorder(once, OrderReverse)
	for i, v := range twice {
		if v != l[i] {
			t.Fatalf("reverse(reverse(l)) != l at %d: got %d want %d", i, v, l[i])
		}
	}
}

func TestReorderHalvesAreHalfLength(t *testing.T) {
	for _, n := range []int{8, 9} {
		l := make([]int, n)
		for i := range l {
			l[i] = i
		}
		top := reorder(l, OrderTopHalf)
		bottom := reorder(l, OrderBottomHalf)

		wantBottom := n / 2
		if n%2 == 1 {
			wantBottom = n - (n/2 + 1)
		}
		if len(bottom) != wantBottom {
			t.Fatalf("n=%d: bottom half length = %d, want %d", n, len(bottom), wantBottom)
		}

		wantTop := wantBottom
		if n%2 == 1 {
			wantTop = wantBottom + 1 // odd case prepends the middle element
		}
		if len(top) != wantTop {
			t.Fatalf("n=%d: top half length = %d, want %d", n, len(top), wantTop)
		}
	}
}

func TestReorderMiddleOutIsFullLengthPermutation(t *testing.T) {
	for _, n := range []int{8, 9} {
		l := make([]int, n)
		for i := range l {
			l[i] = i
		}
		out := reorder(l, OrderMiddleOut)
		if len(out) != n {
			t.Fatalf("n=%d: middle-out length = %d, want %d", n, len(out), n)
		}
		seen := make(map[int]bool, n)
		for _, v := range out {
			seen[v] = true
		}
		if len(seen) != n {
			t.Fatalf("n=%d: middle-out is not a permutation: %v", n, out)
		}
	}
}

func TestProfilesTableShape(t *testing.T) {
	if len(Profiles) != 10 {
		t.Fatalf("expected 10 profiles, got %d", len(Profiles))
	}
	// Profile #2 is the documented quirk: named for forward ordering but
	// its extension_order is REVERSE. Any "fix" here breaks fingerprint
	// compatibility, so pin it explicitly.
	if Profiles[1].ExtOrder != OrderReverse {
		t.Fatalf("profile #2 extension order = %v, want OrderReverse (documented quirk)", Profiles[1].ExtOrder)
	}
	if Profiles[8].Ciphers != CipherListNo13 {
		t.Fatalf("profile #9 must draw from NO_1_3")
	}
}
