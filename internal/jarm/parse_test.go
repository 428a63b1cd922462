package jarm

import (
	"encoding/binary"
	"testing"
)

func TestParseEmptyAndAlertAreFailed(t *testing.T) {
	if out := Parse(nil); out.OK {
		t.Fatalf("empty buffer should parse as Failed")
	}
	if out := Parse([]byte{0x15, 0x03, 0x03, 0x00, 0x02, 0x02, 0x28}); out.OK {
		t.Fatalf("alert record should parse as Failed")
	}
}

func TestParseNeverPanicsOnTruncatedInput(t *testing.T) {
	base := buildFakeServerHello(t, 0x002f, 0x0303, []uint16{0x0010, 0xff01}, "h2")
	for n := 0; n <= len(base); n++ {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Parse panicked on truncated input of length %d: %v", n, r)
				}
			}()
			_ = Parse(base[:n])
		}()
	}
}

func TestParseWellFormedServerHello(t *testing.T) {
	buf := buildFakeServerHello(t, 0x002f, 0x0303, []uint16{0x0010, 0xff01}, "h2")
	out := Parse(buf)
	if !out.OK {
		t.Fatalf("expected a successful parse")
	}
	if out.Cipher != 0x002f {
		t.Fatalf("cipher = %#04x, want 0x002f", out.Cipher)
	}
	if out.Version != 0x0303 {
		t.Fatalf("version = %#04x, want 0x0303", out.Version)
	}
	if out.ALPN != "h2" {
		t.Fatalf("alpn = %q, want h2", out.ALPN)
	}
	if len(out.ExtTypes) != 2 || out.ExtTypes[0] != 0x0010 || out.ExtTypes[1] != 0xff01 {
		t.Fatalf("ext types = %v, want [0x0010 0xff01]", out.ExtTypes)
	}
}

func TestRenderFailedIsSentinel(t *testing.T) {
	if got := failed().Render(); got != "|||" {
		t.Fatalf("Failed.Render() = %q, want |||", got)
	}
}

// buildFakeServerHello constructs a minimal, well-formed ServerHello
// record with a session id of length 0 (counter == 0), a single
// extensions block, and an ALPN extension carrying alpnProto.
func buildFakeServerHello(t *testing.T, cipher, version uint16, extTypes []uint16, alpnProto string) []byte {
	t.Helper()

	var extBody []byte
	for _, et := range extTypes {
		if et == 0x0010 {
			inner := make([]byte, 3+len(alpnProto))
			inner[0], inner[1] = 0x00, byte(1+len(alpnProto))
			inner[2] = byte(len(alpnProto))
			copy(inner[3:], alpnProto)
			extBody = appendExt(extBody, et, inner)
		} else {
			extBody = appendExt(extBody, et, []byte{0x00})
		}
	}

	// hello body: version(2) random(32) session_id_len(1)=0 cipher(2) compression(1) ext_len(2) ext_body
	body := make([]byte, 0, 2+32+1+2+1+2+len(extBody))
	body = append(body, byte(version>>8), byte(version))
	body = append(body, make([]byte, 32)...)
	body = append(body, 0x00) // session id length 0 -> counter = buf[43] = 0
	body = append(body, byte(cipher>>8), byte(cipher))
	body = append(body, 0x00) // compression method
	body = append(body, byte(len(extBody)>>8), byte(len(extBody)))
	body = append(body, extBody...)

	handshake := make([]byte, 0, 4+len(body))
	handshake = append(handshake, 0x02, 0x00, byte(len(body)>>8), byte(len(body)))
	handshake = append(handshake, body...)

	record := make([]byte, 0, 5+len(handshake))
	record = append(record, 0x16, byte(version>>8), byte(version))
	record = append(record, byte(len(handshake)>>8), byte(len(handshake)))
	record = append(record, handshake...)
	return record
}

func appendExt(dst []byte, typ uint16, value []byte) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b[0:2], typ)
	binary.BigEndian.PutUint16(b[2:4], uint16(len(value)))
	dst = append(dst, b...)
	dst = append(dst, value...)
	return dst
}
