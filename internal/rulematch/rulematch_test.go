package rulematch

import (
	"strings"
	"testing"

	"jarmscan/internal/jarm"
)

func TestParseSimpleRules(t *testing.T) {
	txt := `# sample
when jarm == 27d40d40d29d40d1dc42d43d00041d4689ee210389f4f6b4b5b1b93f92252d then known_good
when host_contains example.com then internal_host
when failed_probes >= 5 then flaky
`
	set, err := Parse(strings.NewReader(txt))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(set.Rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(set.Rules))
	}

	res := jarm.ScanResult{Host: "internal.example.com", JARM: "deadbeef"}
	label, ok := set.Match(res)
	if !ok || label != "internal_host" {
		t.Fatalf("got (%q, %v), want (internal_host, true)", label, ok)
	}
}

func TestJARMPrefixAndFailedProbes(t *testing.T) {
	txt := `when jarm_prefix == 27d40d then looks_like_google
when failed_probes > 3 then many_timeouts
`
	set, err := Parse(strings.NewReader(txt))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	match := jarm.ScanResult{JARM: "27d40d40d29d40d1dc42d43d00041d4689ee210389f4f6b4b5b1b93f92252d"}
	if label, ok := set.Match(match); !ok || label != "looks_like_google" {
		t.Fatalf("prefix match failed: got (%q, %v)", label, ok)
	}

	var flaky jarm.ScanResult
	for i := range flaky.Probes {
		if i < 4 {
			flaky.Probes[i].Outcome.OK = false
		} else {
			flaky.Probes[i].Outcome.OK = true
		}
	}
	if label, ok := set.Match(flaky); !ok || label != "many_timeouts" {
		t.Fatalf("failed_probes match failed: got (%q, %v)", label, ok)
	}
}

func TestNoMatchReturnsFalse(t *testing.T) {
	set, err := Parse(strings.NewReader("when host_contains nowhere then x\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, ok := set.Match(jarm.ScanResult{Host: "example.com"}); ok {
		t.Fatalf("expected no match")
	}
}

func TestUnsupportedFieldRejected(t *testing.T) {
	if _, err := Parse(strings.NewReader("when bogus_field == 1 then x\n")); err == nil {
		t.Fatalf("expected parse error for unsupported field")
	}
}
