// SPDX-License-Identifier: MIT

package softuart

import (
	"sync"
	"testing"

	"github.com/scottmsilver/precor-9.3x/pkg/gpio"
)

// ============================================================
// Waveform Shape
// ============================================================

func TestWaveform_SingleByteShape(t *testing.T) {
	const pin = 23
	const baud = 9600
	mask := uint32(1) << pin
	bitUs := uint32(1_000_000 / baud)

	pulses := Waveform(pin, []byte{0x01}, baud, 0)

	// start + 8 data + stop
	if len(pulses) != 10 {
		t.Fatalf("expected 10 segments, got %d", len(pulses))
	}
	for i, p := range pulses {
		if p.DelayUs != bitUs {
			t.Errorf("segment %d duration %dus, want %dus", i, p.DelayUs, bitUs)
		}
	}

	// Inverted polarity for 0x01: start HIGH, bit0=1 -> LOW, bits 1-7=0
	// -> HIGH, stop LOW.
	wantHigh := []bool{true, false, true, true, true, true, true, true, true, false}
	for i, high := range wantHigh {
		if high && pulses[i].On != mask {
			t.Errorf("segment %d should drive high", i)
		}
		if !high && pulses[i].Off != mask {
			t.Errorf("segment %d should drive low", i)
		}
	}
}

func TestWaveform_NoInterByteGapByDefault(t *testing.T) {
	pulses := Waveform(23, []byte{0xFF, 0x00}, 9600, 0)
	if len(pulses) != 20 {
		t.Errorf("expected 20 segments for 2 bytes, got %d", len(pulses))
	}
}

func TestWaveform_ExplicitGap(t *testing.T) {
	const baud = 9600
	bitUs := uint32(1_000_000 / baud)

	pulses := Waveform(23, []byte{0x00, 0x00}, baud, 2)
	if len(pulses) != 21 {
		t.Fatalf("expected 21 segments, got %d", len(pulses))
	}
	gap := pulses[10]
	if gap.DelayUs != 2*bitUs {
		t.Errorf("gap duration %dus, want %dus", gap.DelayUs, 2*bitUs)
	}
	if gap.Off == 0 {
		t.Error("gap should hold the idle (low) level")
	}
}

// ============================================================
// Transmitter Serialization
// ============================================================

func TestTransmitter_SendRecordsOneWave(t *testing.T) {
	port := gpio.NewMockPort()
	tx, err := NewTransmitter(port, 23, 9600)
	if err != nil {
		t.Fatal(err)
	}

	data := []byte{0x52, 0x54, 0x1B, 0x45, 0x01}
	if err := tx.Send(data); err != nil {
		t.Fatal(err)
	}

	if len(port.Sent) != 1 {
		t.Fatalf("expected 1 waveform, got %d", len(port.Sent))
	}
	if len(port.Sent[0]) != len(data)*10 {
		t.Errorf("waveform has %d pulses, want %d", len(port.Sent[0]), len(data)*10)
	}
}

func TestTransmitter_EmptySendIsNoop(t *testing.T) {
	port := gpio.NewMockPort()
	tx, err := NewTransmitter(port, 23, 9600)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Send(nil); err != nil {
		t.Fatal(err)
	}
	if len(port.Sent) != 0 {
		t.Errorf("empty send produced %d waveforms", len(port.Sent))
	}
}

func TestTransmitter_ConcurrentSendsNeverInterleave(t *testing.T) {
	port := gpio.NewMockPort()
	port.BusyPolls = 2 // each wave stays "in flight" for a couple polls

	tx, err := NewTransmitter(port, 23, 9600)
	if err != nil {
		t.Fatal(err)
	}

	const workers = 8
	const sends = 5
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			payload := []byte{0x52, byte(w), 0x45, 0x01}
			for i := 0; i < sends; i++ {
				if err := tx.Send(payload); err != nil {
					t.Errorf("send: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if len(port.Sent) != workers*sends {
		t.Fatalf("expected %d waveforms, got %d", workers*sends, len(port.Sent))
	}
	// Every recorded waveform must be exactly one whole 4-byte
	// transmission; a torn or merged wave means two Sends interleaved.
	for i, wave := range port.Sent {
		if len(wave) != 4*10 {
			t.Errorf("waveform %d has %d pulses, want 40", i, len(wave))
		}
	}
}

func TestTransmitter_SharedPortTransmittersNeverInterleave(t *testing.T) {
	// The wave unit belongs to the port, not the pin: two transmitters
	// on different pins of one port (the proxy's two directions) must
	// still take turns, or one side's WaveClear wipes the other's
	// pending pulses.
	port := gpio.NewMockPort()
	port.BusyPolls = 2

	toMotor, err := NewTransmitter(port, 24, 9600)
	if err != nil {
		t.Fatal(err)
	}
	toConsole, err := NewTransmitter(port, 23, 9600)
	if err != nil {
		t.Fatal(err)
	}

	const workers = 4
	const sends = 5
	var wg sync.WaitGroup
	for _, tx := range []*Transmitter{toMotor, toConsole} {
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(tx *Transmitter, w int) {
				defer wg.Done()
				payload := []byte{0x52, 0x4B, byte(w), 0x45, 0x01}
				for i := 0; i < sends; i++ {
					if err := tx.Send(payload); err != nil {
						t.Errorf("send: %v", err)
						return
					}
				}
			}(tx, w)
		}
	}
	wg.Wait()

	if len(port.Sent) != 2*workers*sends {
		t.Fatalf("expected %d waveforms, got %d", 2*workers*sends, len(port.Sent))
	}
	for i, wave := range port.Sent {
		if len(wave) != 5*10 {
			t.Errorf("waveform %d has %d pulses, want 50 (cross-transmitter interleave)", i, len(wave))
		}
		// A wave must also be single-pin: a mix of pins means one
		// transmitter's pulses leaked into the other's wave.
		for _, p := range wave[1:] {
			if (p.On|p.Off)&(wave[0].On|wave[0].Off) == 0 {
				t.Errorf("waveform %d mixes pins", i)
				break
			}
		}
	}
}
