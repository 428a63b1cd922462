package jarm

import "encoding/binary"

// RandomnessSource yields 32 fresh bytes on each call, used for
// client_random, session_id, and the key-share key exchange material.
// Production wiring uses crypto/rand; tests inject a fixed sequence the
// same way internal/tlsinspect's tests inject canned byte buffers
// instead of a live socket.
type RandomnessSource func() [32]byte

// GreaseChooser returns one of the sixteen reserved GREASE values.
// Production wiring picks uniformly at random; tests pin a single value.
type GreaseChooser func() uint16

var (
	sigAlgorithms = []byte{
		0x00, 0x0d, 0x00, 0x14, 0x00, 0x12, 0x04, 0x03, 0x08, 0x04, 0x04, 0x01,
		0x05, 0x03, 0x08, 0x05, 0x05, 0x01, 0x08, 0x06, 0x06, 0x01, 0x02, 0x01,
	}
	extendedMasterSecret = []byte{0x00, 0x17, 0x00, 0x00}
	maxFragmentLength     = []byte{0x00, 0x01, 0x00, 0x01, 0x01}
	renegotiationInfo     = []byte{0xff, 0x01, 0x00, 0x01, 0x00}
	supportedGroups       = []byte{0x00, 0x0a, 0x00, 0x0a, 0x00, 0x08, 0x00, 0x1d, 0x00, 0x17, 0x00, 0x18, 0x00, 0x19}
	ecPointFormats        = []byte{0x00, 0x0b, 0x00, 0x02, 0x01, 0x00}
	sessionTicket         = []byte{0x00, 0x23, 0x00, 0x00}
	pskKeyExchangeModes   = []byte{0x00, 0x2d, 0x00, 0x02, 0x01, 0x01}
)

func u16(v int) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(v))
	return b
}

// Build turns a Profile and target hostname into a complete TLS record
// carrying a ClientHello, following the wire layout in catalog.go/profile.go
// byte for byte, the way internal/tlsinspect reads the same layout back
// off a live connection rather than via crypto/tls.
func Build(p Profile, hostname string, random RandomnessSource, grease GreaseChooser) []byte {
	helloBody := buildHelloBody(p, hostname, random, grease)

	handshake := make([]byte, 0, 4+len(helloBody))
	handshake = append(handshake, 0x01)
	handshake = append(handshake, 0x00) // top byte of the 3-byte length is always zero
	handshake = append(handshake, byte(len(helloBody)>>8), byte(len(helloBody)))

	handshake = append(handshake, helloBody...)

	record := make([]byte, 0, 5+len(handshake))
	record = append(record, 0x16)
	record = append(record, byte(p.Version.record>>8), byte(p.Version.record))
	record = append(record, u16(len(handshake))...)
	record = append(record, handshake...)
	return record
}

func buildHelloBody(p Profile, hostname string, random RandomnessSource, grease GreaseChooser) []byte {
	clientRandom := random()
	sessionID := random()

	ciphers := buildCiphers(p, grease)
	extensions := buildExtensions(p, hostname, random, grease)

	out := make([]byte, 0, 2+32+1+32+2+len(ciphers)+2+2+len(extensions))
	out = append(out, byte(p.Version.hello>>8), byte(p.Version.hello))
	out = append(out, clientRandom[:]...)
	out = append(out, 32)
	out = append(out, sessionID[:]...)
	out = append(out, u16(len(ciphers))...)
	out = append(out, ciphers...)
	out = append(out, 0x01, 0x00) // one compression method: null
	// extensions already carries its own u16 length prefix.
	out = append(out, extensions...)
	return out
}

func buildCiphers(p Profile, grease GreaseChooser) []byte {
	ordered := reorder(p.Ciphers.sequence(), p.CipherOrder)
	out := make([]byte, 0, 2*(len(ordered)+1))
	if p.UseGrease {
		g := grease()
		out = append(out, byte(g>>8), byte(g))
	}
	for _, c := range ordered {
		out = append(out, byte(c>>8), byte(c))
	}
	return out
}

func buildExtensions(p Profile, hostname string, random RandomnessSource, grease GreaseChooser) []byte {
	var body []byte

	if p.UseGrease {
		g := grease()
		body = append(body, byte(g>>8), byte(g), 0x00, 0x00)
	}

	body = append(body, buildSNI(hostname)...)
	body = append(body, extendedMasterSecret...)
	body = append(body, maxFragmentLength...)
	body = append(body, renegotiationInfo...)
	body = append(body, supportedGroups...)
	body = append(body, ecPointFormats...)
	body = append(body, sessionTicket...)
	body = append(body, buildALPN(p)...)
	body = append(body, sigAlgorithms...)
	body = append(body, buildKeyShare(random, p.UseGrease, grease)...)
	body = append(body, pskKeyExchangeModes...)

	if p.Version.name == versionTLS13.name || p.Support == Support12 {
		body = append(body, buildSupportedVersions(p, grease)...)
	}

	out := make([]byte, 0, 2+len(body))
	out = append(out, u16(len(body))...)
	out = append(out, body...)
	return out
}

func buildSNI(hostname string) []byte {
	host := []byte(hostname)
	out := make([]byte, 0, 9+len(host))
	out = append(out, 0x00, 0x00)
	out = append(out, u16(len(host)+5)...)
	out = append(out, u16(len(host)+3)...)
	out = append(out, 0x00)
	out = append(out, u16(len(host))...)
	out = append(out, host...)
	return out
}

func buildALPN(p Profile) []byte {
	set := allALPNs
	if p.UseRareALPN {
		set = rareALPNs
	}
	ordered := reorder(set, p.ExtOrder)

	var inner []byte
	for _, a := range ordered {
		inner = append(inner, a...)
	}

	out := make([]byte, 0, 4+2+len(inner))
	out = append(out, 0x00, 0x10)
	out = append(out, u16(len(inner)+2)...)
	out = append(out, u16(len(inner))...)
	out = append(out, inner...)
	return out
}

func buildKeyShare(random RandomnessSource, useGrease bool, grease GreaseChooser) []byte {
	var inner []byte
	if useGrease {
		g := grease()
		inner = append(inner, byte(g>>8), byte(g), 0x00, 0x01, 0x00)
	}
	keyExchange := random()
	inner = append(inner, 0x00, 0x1d, 0x00, 0x20)
	inner = append(inner, keyExchange[:]...)

	out := make([]byte, 0, 4+2+len(inner))
	out = append(out, 0x00, 0x33)
	out = append(out, u16(len(inner)+2)...)
	out = append(out, u16(len(inner))...)
	out = append(out, inner...)
	return out
}

func buildSupportedVersions(p Profile, grease GreaseChooser) []byte {
	var versions []uint16
	if p.Support == Support12 {
		versions = []uint16{0x0301, 0x0302, 0x0303}
	} else {
		versions = []uint16{0x0301, 0x0302, 0x0303, 0x0304}
	}
	ordered := reorder(versions, p.ExtOrder)

	var inner []byte
	if p.UseGrease {
		g := grease()
		inner = append(inner, byte(g>>8), byte(g))
	}
	for _, v := range ordered {
		inner = append(inner, byte(v>>8), byte(v))
	}

	out := make([]byte, 0, 5+len(inner))
	out = append(out, 0x00, 0x2b)
	out = append(out, u16(len(inner)+1)...)
	out = append(out, byte(len(inner)))
	out = append(out, inner...)
	return out
}
