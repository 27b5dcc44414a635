// SPDX-License-Identifier: MIT

// Package softuart recovers UART bytes from raw line-level transitions and
// generates the inverse: precisely timed waveforms that reproduce the bus's
// inverted-polarity framing on a digital output pin.
//
// The treadmill bus is RS-485-style: the line idles LOW, a start bit is a
// rising edge, data bits are electrically complemented, and the stop bit
// returns to LOW. Standard-polarity decoding is also supported so captures
// can be checked against both interpretations.
package softuart

// Edge is one line-level transition from a logic capture. Timestamps are
// seconds and must be non-decreasing within a channel.
type Edge struct {
	Time  float64
	Level int
}

// DecodedByte is one byte recovered from an edge list. StopOK records
// whether the stop bit sampled at the idle level; a false value is a
// framing hint (transmitters on this bus release the line early), not an
// error, and the byte is still delivered.
type DecodedByte struct {
	Start  float64
	End    float64
	Value  byte
	StopOK bool
}

// Polarity selects the line convention.
type Polarity int

const (
	// Standard UART: idle high, start bit low, data bits as-is.
	Standard Polarity = iota
	// Inverted (what the treadmill speaks): idle low, start bit high,
	// data bits complemented on the wire.
	Inverted
)

func (p Polarity) String() string {
	if p == Inverted {
		return "inverted"
	}
	return "standard"
}

// IdleLevel is the line level between bytes.
func (p Polarity) IdleLevel() int {
	if p == Inverted {
		return 0
	}
	return 1
}

// StartLevel is the line level of a start bit.
func (p Polarity) StartLevel() int {
	return 1 - p.IdleLevel()
}
