// SPDX-License-Identifier: MIT

// Package precor implements the wire protocols spoken on the console↔motor
// serial link of a Precor 9.3x treadmill.
//
// Two sub-protocols share the line. The binary protocol carries framed
// messages of the form "R <type> <payload> E <dir>"; the text protocol
// carries bracketed key/value commands like "[hmph:15E]" terminated by a
// 0xFF delimiter. Speed and incline values in the binary protocol use a
// custom base-16 digit alphabet instead of ASCII digits.
//
// Everything here was reverse-engineered from logic-analyzer captures of a
// running machine.
package precor

// Baud is the link speed of the console↔motor bus.
const Baud = 9600

// Binary protocol framing bytes.
const (
	FrameStart = 0x52 // 'R'
	FrameEnd   = 0x45 // 'E'

	// Byte following FrameEnd identifies the direction of travel.
	EndConsole = 0x01 // console → motor
	EndMotor   = 0x00 // motor → console
)

// Text protocol delimiters.
const (
	BracketOpen  = '['
	BracketClose = ']'
	KVDelimiter  = 0xFF
)

// MaxFrameLen bounds the lookahead for a binary end marker. An accumulation
// longer than this without a close is treated as lost sync.
const MaxFrameLen = 50

// Known binary frame types.
const (
	TypeSetSpeed   = 0x2A
	TypeSetIncline = 0x4B
	TypeDisplay1   = 0x4F
	TypeDisplay2   = 0x51
)

// typeNames maps frame types seen in captures to short names. Types ending
// in UNK have never been decoded; the emulator replays them verbatim.
var typeNames = map[byte]string{
	TypeSetSpeed:   "SET_SPD",
	TypeSetIncline: "SET_INC",
	TypeDisplay1:   "DISP1",
	TypeDisplay2:   "DISP2",
	0x52:           "UNK_52",
	0x54:           "UNK_54",
	0x9A:           "UNK_9A",
	0xA2:           "UNK_A2",
	0xAA:           "UNK_AA",
	0xD4:           "UNK_D4",
}

// Fixed payload prefixes that precede the encoded value.
var (
	SetSpeedHeader   = []byte{0x1F, 0x2F, 0x8B}
	SetInclineHeader = []byte{0xCA, 0x5A}
)

// digits is the custom base-16 alphabet used for speed/incline values,
// indexed by digit value 0–15. None of these collide with ASCII digits,
// the framing bytes, or control characters.
var digits = [16]byte{
	0x9F, 0x9D, 0x9B, 0x99, 0x97, 0x95, 0x93, 0x91,
	0x8F, 0x8D, 0x7D, 0x7B, 0x79, 0x77, 0x75, 0x73,
}

// digitValues is the inverse of digits; entries not in the alphabet are -1.
var digitValues [256]int8

func init() {
	for i := range digitValues {
		digitValues[i] = -1
	}
	for v, b := range digits {
		digitValues[b] = int8(v)
	}
}
