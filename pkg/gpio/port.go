// SPDX-License-Identifier: MIT

// Package gpio abstracts the GPIO operations the protocol engine needs:
// timed waveform output for bit-banged transmit and a byte-oriented
// bit-banged serial read. The production implementation talks to a pigpiod
// daemon; MockPort serves tests and dry runs.
package gpio

// Pulse is one timed level segment of an output waveform. On and Off are
// pin bitmasks (1<<pin) driven high and low for DelayUs microseconds,
// matching the pigpio wave representation.
type Pulse struct {
	On      uint32
	Off     uint32
	DelayUs uint32
}

// Pin modes.
const (
	Input  = 0
	Output = 1
)

// Port is the hardware surface required by the engine.
//
// The waveform operations follow pigpio's model: pulses are accumulated
// with WaveAddGeneric, turned into a sendable wave by WaveCreate, and
// played once with WaveSendOnce. WaveBusy reports whether a wave is still
// being clocked out.
type Port interface {
	SetMode(pin, mode int) error
	Write(pin, level int) error

	SerialReadOpen(pin, baud, dataBits int) error
	SerialReadInvert(pin int, inverted bool) error
	// SerialRead fills buf with bytes already framed by the bit-banged
	// reader and returns how many were available. Zero means idle.
	SerialRead(pin int, buf []byte) (int, error)
	SerialReadClose(pin int) error

	WaveClear() error
	WaveAddGeneric(pulses []Pulse) error
	WaveCreate() (int, error)
	WaveSendOnce(id int) error
	WaveBusy() (bool, error)
	WaveDelete(id int) error

	Close() error
}
