// SPDX-License-Identifier: MIT

package precor

import "time"

// Direction identifies which side of the bus produced a byte stream.
type Direction int

const (
	ConsoleToMotor Direction = iota
	MotorToConsole
)

func (d Direction) String() string {
	if d == MotorToConsole {
		return "motor→console"
	}
	return "console→motor"
}

// Frame is one complete binary-protocol message.
//
// Raw always begins with FrameStart. When Complete is true, Raw ends with a
// recognized termination and Payload excludes it; when false, the frame was
// force-closed (a new start byte arrived mid-frame) and Payload runs to the
// end of Raw.
type Frame struct {
	Type      byte
	Payload   []byte
	Raw       []byte
	Complete  bool
	Direction Direction
	Timestamp time.Time
}

// Name returns the short name for the frame's type, or a hex rendering for
// types never seen in captures.
func (f *Frame) Name() string {
	return TypeName(f.Type)
}

// KVPair is one key or key:value unit from the bracketed text protocol.
// A bracket run containing non-printable bytes is reported with Key "BIN"
// and the content hex-encoded in Value.
type KVPair struct {
	Key   string
	Value string
}

// BinKey tags bracket content that was not printable ASCII.
const BinKey = "BIN"

// IsBinary reports whether the pair carries undecodable bracket content.
func (p KVPair) IsBinary() bool {
	return p.Key == BinKey
}

func (p KVPair) String() string {
	if p.Value == "" {
		return "[" + p.Key + "]"
	}
	return "[" + p.Key + ":" + p.Value + "]"
}
