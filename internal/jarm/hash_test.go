package jarm

import (
	"regexp"
	"testing"
)

var hexRE = regexp.MustCompile(`^[0-9a-f]{62}$`)

func TestAssembleLengthAndAlphabet(t *testing.T) {
	var r [10]string
	for i := range r {
		r[i] = "002f|0303|h2|0000-ff01"
	}
	got := Assemble(r)
	if !hexRE.MatchString(got) {
		t.Fatalf("Assemble output %q does not match ^[0-9a-f]{62}$", got)
	}
}

func TestAssembleAllFailureSentinel(t *testing.T) {
	var r [10]string
	for i := range r {
		r[i] = "|||"
	}
	got := Assemble(r)
	want := zeroJARM
	if got != want {
		t.Fatalf("Assemble(all-failure) = %q, want %q", got, want)
	}
}

func TestAssembleSingleFailureDegradesOnlyItsSlot(t *testing.T) {
	var r [10]string
	for i := range r {
		r[i] = "002f|0303|h2|0000-ff01"
	}
	r[3] = "|||"
	got := Assemble(r)
	if !hexRE.MatchString(got) {
		t.Fatalf("Assemble output %q does not match ^[0-9a-f]{62}$", got)
	}
	// The failed probe's cipher slot (2 hex chars at position 3*2=6) must
	// be "00" and its version slot (1 hex char at position 20+3=23) "0".
	cipherSlot := got[6:8]
	versionSlot := got[23:24]
	if cipherSlot != "00" {
		t.Fatalf("failed probe cipher slot = %q, want 00", cipherSlot)
	}
	if versionSlot != "0" {
		t.Fatalf("failed probe version slot = %q, want 0", versionSlot)
	}
}

func TestCipherByteIsInjectiveOverReferenceTable(t *testing.T) {
	seen := make(map[string]uint16, len(cipherReference))
	for _, c := range cipherReference {
		hexStr := cipherHexString(c)
		b := cipherByte(hexStr)
		if prev, ok := seen[b]; ok && prev != c {
			t.Fatalf("cipher index collision: %#04x and %#04x both map to %q", prev, c, b)
		}
		seen[b] = c
	}
}

func cipherHexString(c uint16) string {
	const hexdigits = "0123456789abcdef"
	return string([]byte{
		hexdigits[(c>>12)&0xf], hexdigits[(c>>8)&0xf],
		hexdigits[(c>>4)&0xf], hexdigits[c&0xf],
	})
}

func TestVersionByteMapping(t *testing.T) {
	cases := map[string]string{
		"0300": "a",
		"0301": "b",
		"0302": "c",
		"0303": "d",
		"0304": "e",
	}
	for in, want := range cases {
		if got := versionByte(in); got != want {
			t.Fatalf("versionByte(%q) = %q, want %q", in, got, want)
		}
	}
	if got := versionByte(""); got != "0" {
		t.Fatalf(`versionByte("") = %q, want "0"`, got)
	}
}
