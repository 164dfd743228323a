package firmware

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Intel HEX record types
const (
	recData          = 0x00
	recEOF           = 0x01
	recExtSegment    = 0x02
	recStartSegment  = 0x03
	recExtLinear     = 0x04
	recStartLinear   = 0x05
	recHeaderLength  = 4 // count, address (2), type
	recMinimumLength = recHeaderLength + 1
)

var (
	// ErrNotContiguous is returned when data records leave a gap or overlap
	ErrNotContiguous = errors.New("firmware: data records not contiguous")
	// ErrAddressRange is returned when the load address does not fit the 16
	// bit RAM address of SET_ADDR
	ErrAddressRange = errors.New("firmware: load address out of range")
)

// ParseHex decodes an Intel HEX stream.  Data records must follow each other
// without gaps.  The image is loaded at the first data record's address,
// which must fit the 16 bit RAM address.
func ParseHex(r io.Reader) (*Image, error) {

	scanner := bufio.NewScanner(r)

	var (
		data    []byte
		base    uint32
		start   uint32
		next    uint32
		started bool
		eof     bool
		lineNum int
	)

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		if eof {
			return nil, fmt.Errorf("line %d: record after end of file", lineNum)
		}

		typ, addr, payload, err := parseRecord(line)

		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		switch typ {
		case recData:
			abs := base + uint32(addr)

			if !started {
				start, next, started = abs, abs, true
			}

			if abs != next {
				return nil, fmt.Errorf("line %d: record at 0x%08X, expected 0x%08X: %w",
					lineNum, abs, next, ErrNotContiguous)
			}

			data = append(data, payload...)
			next += uint32(len(payload))

		case recEOF:
			eof = true

		case recExtSegment:
			if len(payload) != 2 {
				return nil, fmt.Errorf("line %d: segment record with %d bytes", lineNum, len(payload))
			}
			base = (uint32(payload[0])<<8 | uint32(payload[1])) << 4

		case recExtLinear:
			if len(payload) != 2 {
				return nil, fmt.Errorf("line %d: linear address record with %d bytes", lineNum, len(payload))
			}
			base = (uint32(payload[0])<<8 | uint32(payload[1])) << 16

		case recStartSegment, recStartLinear:
			// entry point, the bootloader starts the image through RAMREMAP_RESET

		default:
			return nil, fmt.Errorf("line %d: unknown record type 0x%02X", lineNum, typ)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read hex: %w", err)
	}

	if !eof {
		return nil, fmt.Errorf("missing end of file record")
	}

	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	if start > 0xFFFF {
		return nil, fmt.Errorf("load address 0x%08X: %w", start, ErrAddressRange)
	}

	return FromBytes(data, uint16(start)), nil
}

// parseRecord decodes one ':'-prefixed record and verifies its checksum
func parseRecord(line string) (typ uint8, addr uint16, payload []byte, err error) {

	if line[0] != ':' {
		return 0, 0, nil, fmt.Errorf("record must start with ':'")
	}

	raw, err := hex.DecodeString(line[1:])

	if err != nil {
		return 0, 0, nil, fmt.Errorf("invalid hex data: %w", err)
	}

	if len(raw) < recMinimumLength {
		return 0, 0, nil, fmt.Errorf("record too short: %d bytes", len(raw))
	}

	count := int(raw[0])

	if len(raw) != recMinimumLength+count {
		return 0, 0, nil, fmt.Errorf("record length mismatch: got %d bytes, count says %d",
			len(raw)-recMinimumLength, count)
	}

	if sum := checksum(raw[:len(raw)-1]); sum != raw[len(raw)-1] {
		return 0, 0, nil, fmt.Errorf("checksum mismatch: got 0x%02X, expected 0x%02X",
			raw[len(raw)-1], sum)
	}

	addr = uint16(raw[1])<<8 | uint16(raw[2])
	typ = raw[3]
	payload = raw[recHeaderLength : recHeaderLength+count]

	return typ, addr, payload, nil
}

// checksum is the two's complement of the byte sum of a record
func checksum(b []byte) byte {

	var sum byte

	for _, v := range b {
		sum += v
	}

	return -sum
}
