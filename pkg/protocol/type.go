// Package protocol implements the fixed 15-byte serial protocol spoken by
// Brymen BM257s multimeters. Each byte carries its packet index in the high
// nibble; the low nibbles carry the LCD state (7-segment digits, decimal
// dots, minus sign and annunciator symbols). The meter only transmits, one
// packet per display refresh.
package protocol

// PacketLen is the fixed length of one meter transmission.
const PacketLen = 15

// StartByte is the first byte of every packet: index 0 in the high nibble
// plus the frame bit in the low nibble.
const StartByte = 0x02

// Symbol identifies a single LCD annunciator.
type Symbol uint32

const (
	SymbolAuto Symbol = 1 << iota
	SymbolDC
	SymbolAC
	SymbolRel
	SymbolBeep
	SymbolBattery
	SymbolLoZ
	SymbolBMinus
	SymbolHold
	SymbolDBm
	SymbolMega
	SymbolKilo
	SymbolCrest
	SymbolOhm
	SymbolHz
	SymbolNano
	SymbolMax
	SymbolFarad
	SymbolMicro
	SymbolMilli
	SymbolMin
	SymbolVolt
	SymbolAmpere
	SymbolScale
)

// SymbolSet is a bitmask of active annunciators.
type SymbolSet uint32

func (s SymbolSet) Has(sym Symbol) bool {
	return uint32(s)&uint32(sym) != 0
}

// symbolPositions maps a packet byte index to the four annunciators encoded
// in its low nibble, ordered from bit 3 down to bit 0.
var symbolPositions = map[int][4]Symbol{
	1:  {SymbolAuto, SymbolDC, SymbolAC, SymbolRel},
	2:  {SymbolBeep, SymbolBattery, SymbolLoZ, SymbolBMinus},
	11: {SymbolHold, SymbolDBm, SymbolMega, SymbolKilo},
	12: {SymbolCrest, SymbolOhm, SymbolHz, SymbolNano},
	13: {SymbolMax, SymbolFarad, SymbolMicro, SymbolMilli},
	14: {SymbolMin, SymbolVolt, SymbolAmpere, SymbolScale},
}

// SegmentCode is a 7-segment digit pattern, bit 0 = segment A through
// bit 6 = segment G.
type SegmentCode uint8

// segmentChars maps segment patterns to the characters the meter can form.
var segmentChars = map[SegmentCode]byte{
	0x3f: '0',
	0x06: '1',
	0x5b: '2',
	0x4f: '3',
	0x66: '4',
	0x6d: '5',
	0x7d: '6',
	0x07: '7',
	0x7f: '8',
	0x6f: '9',
	0x39: 'C',
	0x71: 'F',
	0x40: '-',
	0x00: ' ',
	0x38: 'L',
	0x77: 'A',
	0x1c: 'u',
	0x78: 't',
	0x5c: 'o',
	0x79: 'E',
}

// Char returns the display character formed by the segment pattern.
// ok is false for patterns the LCD never shows.
func (c SegmentCode) Char() (byte, bool) {
	ch, ok := segmentChars[c]
	return ch, ok
}

// Packet is one validated 15-byte transmission. It is ephemeral: the framer
// produces it and the interpreter consumes it immediately.
type Packet struct {
	raw [PacketLen]byte
}

// Raw returns a copy of the packet bytes.
func (p Packet) Raw() [PacketLen]byte {
	return p.raw
}

// Segment returns the 7-segment pattern of display digit pos (0-3, left to
// right).
func (p Packet) Segment(pos int) SegmentCode {
	hi := p.raw[3+2*pos]
	lo := p.raw[4+2*pos]
	var c SegmentCode
	if hi&(1<<3) != 0 {
		c |= 1 << 0 // A
	}
	if lo&(1<<3) != 0 {
		c |= 1 << 1 // B
	}
	if lo&(1<<1) != 0 {
		c |= 1 << 2 // C
	}
	if lo&1 != 0 {
		c |= 1 << 3 // D
	}
	if hi&(1<<1) != 0 {
		c |= 1 << 4 // E
	}
	if hi&(1<<2) != 0 {
		c |= 1 << 5 // F
	}
	if lo&(1<<2) != 0 {
		c |= 1 << 6 // G
	}
	return c
}

// Dot reports whether the decimal dot following digit pos (0-2) is lit.
func (p Packet) Dot(pos int) bool {
	return p.raw[5+2*pos]&1 != 0
}

// Minus reports whether the minus sign is lit.
func (p Packet) Minus() bool {
	return p.raw[3]&1 != 0
}

// Symbols returns the set of lit annunciators.
func (p Packet) Symbols() SymbolSet {
	var set SymbolSet
	for i, syms := range symbolPositions {
		nibble := p.raw[i] & 0x0f
		for j := 0; j < 4; j++ {
			if nibble&(1<<j) != 0 {
				set |= SymbolSet(syms[3-j])
			}
		}
	}
	return set
}

// DigitString assembles the characters of digits first through last
// (inclusive), interleaving lit decimal dots and optionally a leading minus
// sign. ok is false if any digit shows a pattern outside the character
// table.
func (p Packet) DigitString(first, last int, withDots, withMinus bool) (string, bool) {
	buf := make([]byte, 0, 2*PacketLen)
	if withMinus && p.Minus() {
		buf = append(buf, '-')
	}
	for i := first; i <= last; i++ {
		ch, ok := p.Segment(i).Char()
		if !ok {
			return "", false
		}
		buf = append(buf, ch)
		if withDots && i < last && p.Dot(i) {
			buf = append(buf, '.')
		}
	}
	return string(buf), true
}

// PacketFromBytes validates data as one complete packet. ok is false when
// the length or any index nibble is wrong.
func PacketFromBytes(data []byte) (Packet, bool) {
	if len(data) != PacketLen || validateIndices(data) < PacketLen {
		return Packet{}, false
	}
	var p Packet
	copy(p.raw[:], data)
	return p, true
}

// validateIndices checks the per-byte index nibbles of a candidate packet.
// It returns the index of the first byte whose high nibble does not match
// its position, or PacketLen if all match. This index check is the only
// integrity field the protocol has; there is no checksum.
func validateIndices(data []byte) int {
	for i := 0; i < PacketLen; i++ {
		if data[i]>>4 != byte(i) {
			return i
		}
	}
	return PacketLen
}
