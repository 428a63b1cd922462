// Package jarm builds and parses the crafted TLS ClientHello/ServerHello
// pairs used for JARM fingerprinting, and assembles the resulting fuzzy
// hash. Probe bytes never go through crypto/tls: every probe byte on the
// wire is built and read by hand, the same way internal/tlsinspect reads
// ClientHello bytes off a live connection rather than through the
// standard library. crypto/tls is used only for the outer TLS leg to an
// https:// proxy (runner.go).
package jarm

// cipherSuite is a two-byte TLS cipher suite identifier.
type cipherSuite uint16

// noTLS13Ciphers is the base cipher-suite sequence (69 entries) used by
// the profiles that select CipherListNo13 (profile #9 only). allCiphers
// below inserts the five
// TLS 1.3 suites into this same sequence without disturbing its first or
// last element, matching the shape the reference ciphers table takes
// (the boundary elements are load-bearing: the 1.3-only suites sit in the
// interior, not at either end).
var noTLS13Ciphers = []cipherSuite{
	0x0016, 0x0033, 0x0067, 0x0039, 0x006b, 0x0045, 0x0088, 0x0084, 0x002f,
	0x0035, 0x003c, 0x003d, 0x0041,
	0x009c, 0x009d, 0x009e, 0x009f, 0x00a2, 0x00a3, 0x00ba, 0x00be, 0x00c4, 0x00c0,
	0xc007, 0xc008, 0xc009, 0xc00a, 0xc011, 0xc012, 0xc013, 0xc014,
	0xc023, 0xc024, 0xc027, 0xc028, 0xc02b, 0xc02c, 0xc02f, 0xc030,
	0xc060, 0xc061, 0xc072, 0xc073, 0xc076, 0xc077, 0xc09c, 0xc09d,
	0xc09e, 0xc09f, 0xc0a0, 0xc0a1, 0xc0a2, 0xc0a3, 0xc0ac, 0xc0ad, 0xc0ae, 0xc0af,
	0xcc13, 0xcc14, 0xcca8, 0xcca9,
	0x0004, 0x000a, 0x0007, 0x0099, 0x009a, 0x0091, 0x0093,
	0x0005,
}

// tls13Ciphers are spliced into the interior of noTLS13Ciphers to build
// allCiphers; they are the only suites allCiphers carries that
// noTLS13Ciphers lacks.
var tls13Ciphers = []cipherSuite{0x1301, 0x1302, 0x1303, 0x1304, 0x1305}

// allCiphers is the 74-entry cipher sequence every CipherListAll profile
// advertises, including the TLS 1.2 and TLS 1.1 ones; noTLS13Ciphers is
// the same sequence with the five TLS 1.3 ids removed, not a
// differently-ordered list.
var allCiphers = func() []cipherSuite {
	const splice = 13
	out := make([]cipherSuite, 0, len(noTLS13Ciphers)+len(tls13Ciphers))
	out = append(out, noTLS13Ciphers[:splice]...)
	out = append(out, tls13Ciphers...)
	out = append(out, noTLS13Ciphers[splice:]...)
	return out
}()

// alpnToken is a single length-prefixed ALPN protocol id ready to be
// concatenated straight into a ProtocolNameList extension body.
type alpnToken []byte

func alpn(name string) alpnToken {
	b := make([]byte, 1+len(name))
	b[0] = byte(len(name))
	copy(b[1:], name)
	return b
}

// spdy3AndH2 is the one ALPN entry that is not a single protocol id but
// two concatenated ids (spdy/3, then h2) offered together; some servers'
// ALPN selection is sensitive to this pairing being glued together rather
// than listed as two ordinary entries, which is part of what the fixed
// profile table distinguishes.
var spdy3AndH2 = func() alpnToken {
	a, b := alpn("spdy/3"), alpn("h2")
	out := make(alpnToken, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}()

// allALPNs and rareALPNs are the two ALPN protocol-list variants a
// profile can select. rareALPNs omits the two most common entries
// (http/1.1 and the spdy/3+h2 pairing) to provoke servers into a
// different negotiated-protocol branch.
var (
	allALPNs = []alpnToken{
		alpn("http/0.9"), alpn("http/1.0"), alpn("http/1.1"),
		alpn("spdy/1"), alpn("spdy/2"), spdy3AndH2,
		alpn("h2c"), alpn("hq"),
	}
	rareALPNs = []alpnToken{
		alpn("http/0.9"), alpn("http/1.0"),
		alpn("spdy/1"), alpn("spdy/2"),
		alpn("h2c"), alpn("hq"),
	}
)

// tlsVersion pairs the record-layer version a ClientHello is wrapped in
// with the legacy version field inside the handshake body. TLS 1.3
// deliberately wraps itself in a TLS 1.0 record and TLS 1.2 hello body,
// the same downgrade-for-compatibility trick middleboxes expect.
type tlsVersion struct {
	name   string
	record uint16
	hello  uint16
}

var (
	versionSSL3  = tlsVersion{"SSLv3", 0x0300, 0x0300}
	versionTLS10 = tlsVersion{"TLS1.0", 0x0301, 0x0301}
	versionTLS11 = tlsVersion{"TLS1.1", 0x0302, 0x0302}
	versionTLS12 = tlsVersion{"TLS1.2", 0x0303, 0x0303}
	versionTLS13 = tlsVersion{"TLS1.3", 0x0301, 0x0303}
)

// greaseValues are the sixteen reserved GREASE cipher-suite and extension
// values (RFC 8701): any 2-byte value matching 0x?A?A where both nibble
// positions repeat. isGrease below recognizes the whole family; this
// table is the sixteen canonical values a Hello Builder is allowed to
// pick from when a profile calls for a GREASE cipher or extension.
var greaseValues = [16]uint16{
	0x0a0a, 0x1a1a, 0x2a2a, 0x3a3a, 0x4a4a, 0x5a5a, 0x6a6a, 0x7a7a,
	0x8a8a, 0x9a9a, 0xaaaa, 0xbaba, 0xcaca, 0xdada, 0xeaea, 0xfafa,
}

// isGrease reports whether v is one of the reserved GREASE values,
// mirroring internal/tlsinspect's live-traffic check of the same family.
func isGrease(v uint16) bool {
	return v&0x0f0f == 0x0a0a && v>>8 == v&0xff
}

// ec curve ids that appear in the supported_groups extension. Only the
// uncompressed point format is ever advertised. Profile has no groups
// field: every ClientHello carries build.go's fixed supportedGroups blob,
// which lists these three curves followed by secp521r1 (0x0019).
const (
	curveX25519    uint16 = 0x001d
	curveSECP256r1 uint16 = 0x0017
	curveSECP384r1 uint16 = 0x0018
)

var standardGroups = []uint16{curveX25519, curveSECP256r1, curveSECP384r1}
