// SPDX-License-Identifier: MIT

package softuart

import (
	"fmt"
	"sync"
	"time"

	"github.com/scottmsilver/precor-9.3x/pkg/gpio"
)

// Transmitter drives one output pin with bit-banged inverted serial.
//
// The physical line is half-duplex and shared by every writer in the
// process (proxy forwarding and emulation both land here), and the wave
// unit itself (clear/add/create/send) is one resource per port, not per
// pin. Send therefore holds a lock shared by every Transmitter on the
// same port for the full transmission: waiting out any in-flight
// waveform, queuing the new one as a single atomic wave, and waiting
// for it to finish. Interleaving two transmissions corrupts the bus.
type Transmitter struct {
	mu   *sync.Mutex
	port gpio.Port
	pin  int
	baud int
}

// The wave API is global to a port's daemon: WaveClear wipes pending
// pulses no matter which pin queued them. All transmitters on one port
// share one lock.
var (
	portLocksMu sync.Mutex
	portLocks   = make(map[gpio.Port]*sync.Mutex)
)

func portLock(port gpio.Port) *sync.Mutex {
	portLocksMu.Lock()
	defer portLocksMu.Unlock()
	l, ok := portLocks[port]
	if !ok {
		l = &sync.Mutex{}
		portLocks[port] = l
	}
	return l
}

// NewTransmitter prepares a pin for inverted-polarity output (idle LOW).
func NewTransmitter(port gpio.Port, pin, baud int) (*Transmitter, error) {
	if err := port.SetMode(pin, gpio.Output); err != nil {
		return nil, fmt.Errorf("set pin %d output: %w", pin, err)
	}
	if err := port.Write(pin, 0); err != nil {
		return nil, fmt.Errorf("idle pin %d: %w", pin, err)
	}
	return &Transmitter{mu: portLock(port), port: port, pin: pin, baud: baud}, nil
}

// Send transmits data as one atomic waveform. It blocks until the bytes
// have been fully clocked out; there is no cancellation mid-waveform.
func (t *Transmitter) Send(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	pulses := Waveform(t.pin, data, t.baud, 0)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.waitIdle(); err != nil {
		return err
	}
	if err := t.port.WaveClear(); err != nil {
		return err
	}
	if err := t.port.WaveAddGeneric(pulses); err != nil {
		return err
	}
	id, err := t.port.WaveCreate()
	if err != nil {
		return err
	}
	if err := t.port.WaveSendOnce(id); err != nil {
		t.port.WaveDelete(id)
		return err
	}
	if err := t.waitIdle(); err != nil {
		t.port.WaveDelete(id)
		return err
	}
	return t.port.WaveDelete(id)
}

// Release returns the pin to input mode (stop driving the shared line).
func (t *Transmitter) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.port.Write(t.pin, 0); err != nil {
		return err
	}
	return t.port.SetMode(t.pin, gpio.Input)
}

func (t *Transmitter) waitIdle() error {
	for {
		busy, err := t.port.WaveBusy()
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
}
