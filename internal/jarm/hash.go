package jarm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// cipherReference is the reference table used only for hash assembly's
// cipher-index encoding; it is a distinct sequence from the 74/69-entry
// ALL/NO_1_3 catalog lists build.go draws ClientHello cipher ids from.
var cipherReference = []uint16{
	0x0004, 0x0005, 0x0007, 0x000a, 0x0016, 0x002f, 0x0033, 0x0035, 0x0039,
	0x003c, 0x003d, 0x0041, 0x0045, 0x0067, 0x006b, 0x0084, 0x0088, 0x009a,
	0x009c, 0x009d, 0x009e, 0x009f, 0x00ba, 0x00be, 0x00c0, 0x00c4, 0xc007,
	0xc008, 0xc009, 0xc00a, 0xc011, 0xc012, 0xc013, 0xc014, 0xc023, 0xc024,
	0xc027, 0xc028, 0xc02b, 0xc02c, 0xc02f, 0xc030, 0xc060, 0xc061, 0xc072,
	0xc073, 0xc076, 0xc077, 0xc09c, 0xc09d, 0xc09e, 0xc09f, 0xc0a0, 0xc0a1,
	0xc0a2, 0xc0a3, 0xc0ac, 0xc0ad, 0xc0ae, 0xc0af, 0xcc13, 0xcc14, 0xcca8,
	0xcca9, 0x1301, 0x1302, 0x1303, 0x1304, 0x1305,
}

// allFailureJoin is the sentinel ten-way-failure string: the comma-joined
// renderings of ten Failed probes.
var allFailureJoin = strings.Join([]string{"|||", "|||", "|||", "|||", "|||", "|||", "|||", "|||", "|||", "|||"}, ",")

var zeroJARM = strings.Repeat("0", 62)

// Assemble folds ten probe renderings into the 62-character JARM.
// renderings must be in canonical profile order (the Runner's job, not
// this function's) — Assemble itself performs no reordering.
func Assemble(renderings [10]string) string {
	if strings.Join(renderings[:], ",") == allFailureJoin {
		return zeroJARM
	}

	var cipherBytes, versionBytes, body strings.Builder
	for _, r := range renderings {
		parts := strings.SplitN(r, "|", 4)
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		cipherHex, versionHex, alpn, extHyph := parts[0], parts[1], parts[2], parts[3]

		cipherBytes.WriteString(cipherByte(cipherHex))
		versionBytes.WriteString(versionByte(versionHex))
		body.WriteString(alpn)
		body.WriteString(extHyph)
	}

	sum := sha256.Sum256([]byte(body.String()))
	return cipherBytes.String() + versionBytes.String() + hex.EncodeToString(sum[:])[:32]
}

func cipherByte(cipherHex string) string {
	if cipherHex == "" {
		return "00"
	}
	v, err := strconv.ParseUint(cipherHex, 16, 16)
	if err != nil {
		return "00"
	}
	for i, c := range cipherReference {
		if c == uint16(v) {
			return fmt.Sprintf("%02x", i+1)
		}
	}
	return fmt.Sprintf("%02x", len(cipherReference)+1)
}

func versionByte(versionHex string) string {
	if versionHex == "" {
		return "0"
	}
	v, err := strconv.ParseUint(versionHex, 16, 16)
	if err != nil {
		return "0"
	}
	nibble := v & 0xf
	if nibble > 5 {
		return fmt.Sprintf("%x", nibble)
	}
	return string(rune('a' + nibble))
}
