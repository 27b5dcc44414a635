// SPDX-License-Identifier: MIT

package precor

import "time"

// FrameAssembler extracts binary-protocol frames from a byte stream, one
// per channel direction. It is safe to feed arbitrarily small chunks: the
// assembler buffers undecidable tails, so any split of a stream yields the
// same frame sequence as feeding it whole.
//
// Frame termination is a dual-acceptance grammar. Real captures close
// frames three ways: the end marker 0x45 0x01 (console side), 0x45 0x00
// (motor side), and a bare 0x45 immediately followed by the next frame's
// 0x52 when the motor controller releases the bus without the trailing
// direction byte. All three are accepted regardless of the configured
// direction, which only tags emitted frames.
type FrameAssembler struct {
	dir    Direction
	buf    []byte
	maxLen int
}

// NewFrameAssembler creates an assembler for one channel.
func NewFrameAssembler(dir Direction) *FrameAssembler {
	return &FrameAssembler{
		dir:    dir,
		buf:    make([]byte, 0, 256),
		maxLen: MaxFrameLen,
	}
}

// SetLookahead overrides the end-marker lookahead bound. Accumulations
// exceeding it resynchronize by dropping their leading byte.
func (a *FrameAssembler) SetLookahead(n int) {
	if n > 3 {
		a.maxLen = n
	}
}

// Reset discards all buffered state.
func (a *FrameAssembler) Reset() {
	a.buf = a.buf[:0]
}

// Pending returns the number of buffered, not-yet-framed bytes.
func (a *FrameAssembler) Pending() int {
	return len(a.buf)
}

// Feed appends data to the channel buffer and returns all frames that can
// be closed with the bytes available so far.
func (a *FrameAssembler) Feed(data []byte) []*Frame {
	a.buf = append(a.buf, data...)
	var frames []*Frame
	pos := 0

scan:
	for {
		// Idle: hunt for a start byte, dropping noise.
		for pos < len(a.buf) && a.buf[pos] != FrameStart {
			pos++
		}
		if pos == len(a.buf) {
			break
		}
		start := pos

		// In frame: the byte after the start is the type byte and is
		// accepted blindly (type 0x52 exists on the real bus).
		for j := start + 2; ; j++ {
			if j-start > a.maxLen {
				// No end marker within the lookahead window: lost sync.
				pos = start + 1
				continue scan
			}
			if j >= len(a.buf) {
				pos = start
				break scan
			}
			switch a.buf[j] {
			case FrameEnd:
				if j+1 == len(a.buf) {
					// The next byte decides between marker, alternate
					// close, and ordinary payload data.
					pos = start
					break scan
				}
				switch a.buf[j+1] {
				case EndConsole, EndMotor:
					frames = append(frames, a.emit(a.buf[start:j+2], true))
					pos = j + 2
					continue scan
				case FrameStart:
					// Bus released without a direction byte; the 0x52
					// belongs to the next frame and is not consumed.
					frames = append(frames, a.emit(a.buf[start:j+1], true))
					pos = j + 1
					continue scan
				}
			case FrameStart:
				// New start mid-frame: force-close the accumulation
				// rather than dropping it.
				frames = append(frames, a.emit(a.buf[start:j], false))
				pos = j
				continue scan
			}
		}
	}

	// Compact: retain only the undecided tail.
	a.buf = append(a.buf[:0], a.buf[pos:]...)
	return frames
}

func (a *FrameAssembler) emit(raw []byte, complete bool) *Frame {
	f := &Frame{
		Type:      raw[1],
		Raw:       append([]byte(nil), raw...),
		Complete:  complete,
		Direction: a.dir,
		Timestamp: time.Now(),
	}
	switch {
	case !complete:
		f.Payload = f.Raw[2:]
	case f.Raw[len(f.Raw)-1] == FrameEnd:
		f.Payload = f.Raw[2 : len(f.Raw)-1]
	default:
		f.Payload = f.Raw[2 : len(f.Raw)-2]
	}
	return f
}
