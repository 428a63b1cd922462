package jarm

// Order is the reordering rule applied to a sequence before it is placed
// on the wire. cipher_order draws from the full five-value domain;
// extension_order (ALPN and supported-versions reordering) is restricted
// to OrderForward/OrderReverse at profile-construction time.
type Order int

const (
	OrderForward Order = iota
	OrderReverse
	OrderTopHalf
	OrderBottomHalf
	OrderMiddleOut
)

// CipherList selects which catalog sequence a profile draws its cipher
// ids from.
type CipherList int

const (
	CipherListAll CipherList = iota
	CipherListNo13
)

func (c CipherList) sequence() []cipherSuite {
	if c == CipherListNo13 {
		return noTLS13Ciphers
	}
	return allCiphers
}

// SupportMode controls whether (and which) supported_versions extension
// is emitted.
type SupportMode int

const (
	SupportNone SupportMode = iota
	Support12
	Support13
)

// Profile is the immutable tuple described by the data model: a
// TLS-version choice, a cipher list + reorder rule, GREASE/rare-ALPN
// toggles, a supported-versions mode, and an extension reorder rule.
// Profiles are process-wide constants; Builder never sees an invalid
// one because mustProfile validates at construction.
type Profile struct {
	Name        string
	Version     tlsVersion
	Ciphers     CipherList
	CipherOrder Order
	UseGrease   bool
	UseRareALPN bool
	Support     SupportMode
	ExtOrder    Order
}

// mustProfile validates the enum domains UnsupportedProfileValue guards
// against and panics on violation. It is only ever called against the
// ten hardcoded profiles below, at package init, so a panic here would
// mean a defect in this file, not bad caller input — the same contract
// as the spec's "never at build time" rule: invalid values are a
// programmer error caught the moment a profile comes into existence.
func mustProfile(p Profile) Profile {
	switch p.CipherOrder {
	case OrderForward, OrderReverse, OrderTopHalf, OrderBottomHalf, OrderMiddleOut:
	default:
		panic(newErr(KindUnsupportedProfileValue, "mustProfile", nil))
	}
	switch p.ExtOrder {
	case OrderForward, OrderReverse:
	default:
		panic(newErr(KindUnsupportedProfileValue, "mustProfile", nil))
	}
	switch p.Support {
	case SupportNone, Support12, Support13:
	default:
		panic(newErr(KindUnsupportedProfileValue, "mustProfile", nil))
	}
	return p
}

// Profiles holds the ten fixed probe profiles in canonical order; that
// order is itself part of the fingerprint (§3), so callers must iterate
// this slice directly rather than re-deriving an order.
var Profiles = [10]Profile{
	mustProfile(Profile{Name: "tls12_forward", Version: versionTLS12, Ciphers: CipherListAll, CipherOrder: OrderForward, Support: Support12, ExtOrder: OrderReverse}),
	// Profile #2: the reference encodes x-order=REVERSE despite its name
	// implying a forward extension order. Matching that quirk exactly is
	// required for fingerprint compatibility.
	mustProfile(Profile{Name: "tls12_reverse", Version: versionTLS12, Ciphers: CipherListAll, CipherOrder: OrderReverse, Support: Support12, ExtOrder: OrderReverse}),
	mustProfile(Profile{Name: "tls12_top_half", Version: versionTLS12, Ciphers: CipherListAll, CipherOrder: OrderTopHalf, Support: SupportNone, ExtOrder: OrderForward}),
	mustProfile(Profile{Name: "tls12_bottom_half", Version: versionTLS12, Ciphers: CipherListAll, CipherOrder: OrderBottomHalf, UseRareALPN: true, Support: SupportNone, ExtOrder: OrderForward}),
	mustProfile(Profile{Name: "tls12_middle_out_grease", Version: versionTLS12, Ciphers: CipherListAll, CipherOrder: OrderMiddleOut, UseGrease: true, UseRareALPN: true, Support: SupportNone, ExtOrder: OrderReverse}),
	mustProfile(Profile{Name: "tls11_forward", Version: versionTLS11, Ciphers: CipherListAll, CipherOrder: OrderForward, Support: SupportNone, ExtOrder: OrderForward}),
	mustProfile(Profile{Name: "tls13_forward", Version: versionTLS13, Ciphers: CipherListAll, CipherOrder: OrderForward, Support: Support13, ExtOrder: OrderReverse}),
	mustProfile(Profile{Name: "tls13_reverse", Version: versionTLS13, Ciphers: CipherListAll, CipherOrder: OrderReverse, Support: Support13, ExtOrder: OrderForward}),
	mustProfile(Profile{Name: "tls13_no13_forward", Version: versionTLS13, Ciphers: CipherListNo13, CipherOrder: OrderForward, Support: Support13, ExtOrder: OrderForward}),
	mustProfile(Profile{Name: "tls13_middle_out_grease", Version: versionTLS13, Ciphers: CipherListAll, CipherOrder: OrderMiddleOut, UseGrease: true, Support: Support13, ExtOrder: OrderReverse}),
}

// reorder applies the five cipher_order rules (or the two-value
// extension_order subset) to any sequence. It is generic because the
// same permutation rule governs cipher ids, ALPN tokens, and
// supported-version codes alike; only the element type changes.
func reorder[T any](l []T, order Order) []T {
	n := len(l)
	switch order {
	case OrderForward:
		out := make([]T, n)
		copy(out, l)
		return out
	case OrderReverse:
		out := make([]T, n)
		for i, v := range l {
			out[n-1-i] = v
		}
		return out
	case OrderBottomHalf:
		return bottomHalf(l)
	case OrderTopHalf:
		if n%2 == 1 {
			rest := bottomHalf(reorder(l, OrderReverse))
			out := make([]T, 0, len(rest)+1)
			out = append(out, l[n/2])
			out = append(out, rest...)
			return out
		}
		return bottomHalf(reorder(l, OrderReverse))
	case OrderMiddleOut:
		m := n / 2
		out := make([]T, 0, n)
		if n%2 == 1 {
			out = append(out, l[m])
			for i := 1; i <= m; i++ {
				out = append(out, l[m+i], l[m-i])
			}
			return out
		}
		for i := 1; i <= m; i++ {
			out = append(out, l[m-1+i], l[m-i])
		}
		return out
	default:
		out := make([]T, n)
		copy(out, l)
		return out
	}
}

func bottomHalf[T any](l []T) []T {
	n := len(l)
	var start int
	if n%2 == 1 {
		start = n/2 + 1
	} else {
		start = n / 2
	}
	out := make([]T, len(l[start:]))
	copy(out, l[start:])
	return out
}
