package jarm

import (
	"encoding/binary"
	"fmt"
)

// ParseOutcome is the sum type a single probe resolves to: either a
// successful parse of the fields a JARM rendering needs, or Failed. Like
// internal/tlsinspect's parser, indexing faults are converted to a zero
// value instead of a panic.
type ParseOutcome struct {
	OK       bool
	Cipher   uint16
	Version  uint16
	ALPN     string
	ExtTypes []uint16
}

// Render produces the pipe-delimited string the Hash Assembler folds
// into its SHA-256 input; a failed outcome always renders as "|||".
func (o ParseOutcome) Render() string {
	if !o.OK {
		return "|||"
	}
	hyph := ""
	for i, t := range o.ExtTypes {
		if i > 0 {
			hyph += "-"
		}
		hyph += fmt.Sprintf("%04x", t)
	}
	return fmt.Sprintf("%04x|%04x|%s|%s", o.Cipher, o.Version, o.ALPN, hyph)
}

// failed is a convenience constructor matching the spec's literal "|||"
// rendering for any probe that didn't get far enough to have fields.
func failed() ParseOutcome { return ParseOutcome{} }

// Parse turns the raw bytes of a single recv (at most 1484 bytes, per
// the Runner's contract) into a ParseOutcome. It never panics: every
// index is bounds-checked first and an out-of-range access degrades to
// Failed or to an empty extension/ALPN section, matching §4.2 exactly.
func Parse(buf []byte) ParseOutcome {
	if len(buf) == 0 {
		return failed()
	}
	if buf[0] == 0x15 {
		return failed()
	}
	if !(buf[0] == 0x16 && len(buf) > 5 && buf[5] == 0x02) {
		return failed()
	}
	if len(buf) <= 43 {
		return failed()
	}
	counter := int(buf[43])

	if len(buf) < counter+46 || len(buf) < 11 {
		return failed()
	}
	cipher := binary.BigEndian.Uint16(buf[counter+44 : counter+46])
	version := binary.BigEndian.Uint16(buf[9:11])

	if errorProbe(buf, counter) {
		return ParseOutcome{OK: true, Cipher: cipher, Version: version}
	}

	extTypes, alpn, ok := parseExtensions(buf, counter)
	if !ok {
		return ParseOutcome{OK: true, Cipher: cipher, Version: version}
	}
	return ParseOutcome{OK: true, Cipher: cipher, Version: version, ALPN: alpn, ExtTypes: extTypes}
}

func errorProbe(buf []byte, counter int) bool {
	if len(buf) > counter+47 && buf[counter+47] == 0x0b {
		return true
	}
	if len(buf) >= counter+53 &&
		buf[counter+50] == 0x0e && buf[counter+51] == 0xac && buf[counter+52] == 0x0b {
		return true
	}
	if len(buf) >= 85 && buf[82] == 0x0f && buf[83] == 0xf0 && buf[84] == 0x0b {
		return true
	}
	return false
}

func parseExtensions(buf []byte, counter int) (types []uint16, alpn string, ok bool) {
	defer func() {
		if recover() != nil {
			types, alpn, ok = nil, "", false
		}
	}()

	if len(buf) < counter+49 {
		return nil, "", false
	}
	total := int(binary.BigEndian.Uint16(buf[counter+47 : counter+49]))
	start := counter + 49
	end := start + total
	if end > len(buf) || end < start {
		return nil, "", false
	}

	pos := start
	for pos+4 <= end {
		extType := binary.BigEndian.Uint16(buf[pos : pos+2])
		extLen := int(binary.BigEndian.Uint16(buf[pos+2 : pos+4]))
		valueStart := pos + 4
		valueEnd := valueStart + extLen
		if valueEnd > end {
			return nil, "", false
		}
		types = append(types, extType)
		if extType == 0x0010 && extLen >= 3 {
			alpn = string(buf[valueStart+3 : valueEnd])
		}
		pos = valueEnd
	}
	return types, alpn, true
}
