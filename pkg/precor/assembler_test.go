// SPDX-License-Identifier: MIT

package precor

import (
	"bytes"
	"testing"
)

// ============================================================
// Binary Frame Extraction
// ============================================================

func TestFrameAssembler_SingleFrame(t *testing.T) {
	a := NewFrameAssembler(ConsoleToMotor)
	input := []byte{0x52, 0x2A, 0x1F, 0x2F, 0x8B, 0x9F, 0x45, 0x01}

	frames := a.Feed(input)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Type != 0x2A {
		t.Errorf("type = 0x%02X, want 0x2A", f.Type)
	}
	if !bytes.Equal(f.Payload, []byte{0x1F, 0x2F, 0x8B, 0x9F}) {
		t.Errorf("payload = % X", f.Payload)
	}
	if !bytes.Equal(f.Raw, input) {
		t.Errorf("raw = % X", f.Raw)
	}
	if !f.Complete {
		t.Error("frame should be complete")
	}
	if a.Pending() != 0 {
		t.Errorf("pending = %d, want 0", a.Pending())
	}
}

func TestFrameAssembler_MotorEndMarker(t *testing.T) {
	a := NewFrameAssembler(MotorToConsole)
	frames := a.Feed([]byte{0x52, 0x4B, 0xCA, 0x5A, 0x45, 0x00})
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Payload, []byte{0xCA, 0x5A}) {
		t.Errorf("payload = % X", frames[0].Payload)
	}
	if frames[0].Direction != MotorToConsole {
		t.Errorf("direction = %v", frames[0].Direction)
	}
}

func TestFrameAssembler_AlternateTermination(t *testing.T) {
	// The first frame ends with a bare 0x45; the transmitter released the
	// bus and the next byte is already the second frame's start.
	a := NewFrameAssembler(MotorToConsole)
	input := []byte{0x52, 0x4F, 0x01, 0x45, 0x52, 0x4B, 0x00, 0x45, 0x01}

	frames := a.Feed(input)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Raw, []byte{0x52, 0x4F, 0x01, 0x45}) {
		t.Errorf("frame 0 raw = % X", frames[0].Raw)
	}
	if !bytes.Equal(frames[0].Payload, []byte{0x01}) {
		t.Errorf("frame 0 payload = % X", frames[0].Payload)
	}
	if frames[1].Raw[0] != 0x52 {
		t.Error("second frame's start byte was consumed by the first close")
	}
	if !bytes.Equal(frames[1].Raw, []byte{0x52, 0x4B, 0x00, 0x45, 0x01}) {
		t.Errorf("frame 1 raw = % X", frames[1].Raw)
	}
}

func TestFrameAssembler_ForceCloseOnNewStart(t *testing.T) {
	// A start byte mid-payload (display frames chain like this on the real
	// bus) closes the accumulation as a truncated frame.
	a := NewFrameAssembler(ConsoleToMotor)
	input := []byte{
		0x52, 0x4F, 0x49, 0x94, 0x54, 0x05, // no end marker
		0x52, 0xAA, 0x3A, 0x17, 0x45, 0x01,
	}

	frames := a.Feed(input)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Complete {
		t.Error("truncated frame reported complete")
	}
	if !bytes.Equal(frames[0].Raw, input[:6]) {
		t.Errorf("frame 0 raw = % X", frames[0].Raw)
	}
	if !bytes.Equal(frames[0].Payload, []byte{0x49, 0x94, 0x54, 0x05}) {
		t.Errorf("frame 0 payload = % X", frames[0].Payload)
	}
	if !frames[1].Complete {
		t.Error("second frame should be complete")
	}
}

func TestFrameAssembler_TypeByteMayBeStart(t *testing.T) {
	// Type 0x52 exists on the bus (UNK_52). The byte after a start is
	// always the type, even when it equals the start byte.
	a := NewFrameAssembler(ConsoleToMotor)
	input := []byte{0x52, 0x52, 0x69, 0x17, 0x45, 0x01}

	frames := a.Feed(input)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Type != 0x52 {
		t.Errorf("type = 0x%02X, want 0x52", frames[0].Type)
	}
	if !bytes.Equal(frames[0].Payload, []byte{0x69, 0x17}) {
		t.Errorf("payload = % X", frames[0].Payload)
	}
}

func TestFrameAssembler_NoiseBeforeStart(t *testing.T) {
	a := NewFrameAssembler(ConsoleToMotor)
	frames := a.Feed([]byte{0xDE, 0xAD, 0x52, 0x54, 0x1B, 0x45, 0x01, 0xBE})
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Type != 0x54 {
		t.Errorf("type = 0x%02X", frames[0].Type)
	}
}

func TestFrameAssembler_EndByteAsPayloadData(t *testing.T) {
	// 0x45 followed by ordinary data is payload, not a close.
	a := NewFrameAssembler(ConsoleToMotor)
	input := []byte{0x52, 0x2A, 0x45, 0x99, 0x45, 0x01}

	frames := a.Feed(input)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Payload, []byte{0x45, 0x99}) {
		t.Errorf("payload = % X", frames[0].Payload)
	}
}

func TestFrameAssembler_ResyncAfterLookahead(t *testing.T) {
	a := NewFrameAssembler(ConsoleToMotor)
	a.SetLookahead(10)

	// A lone start byte followed by filler that never closes, then a good
	// frame. The bad run is abandoned one byte at a time.
	input := []byte{0x52}
	for i := 0; i < 30; i++ {
		input = append(input, 0xAA)
	}
	good := []byte{0x52, 0x2A, 0x1F, 0x2F, 0x8B, 0x9F, 0x45, 0x01}
	input = append(input, good...)

	frames := a.Feed(input)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after resync, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Raw, good) {
		t.Errorf("raw = % X", frames[0].Raw)
	}
	if a.Pending() != 0 {
		t.Errorf("pending = %d, want 0", a.Pending())
	}
}

func TestFrameAssembler_PartialFrameRetained(t *testing.T) {
	a := NewFrameAssembler(ConsoleToMotor)
	if frames := a.Feed([]byte{0x52, 0x2A, 0x1F}); len(frames) != 0 {
		t.Fatalf("incomplete input produced %d frames", len(frames))
	}
	if a.Pending() != 3 {
		t.Errorf("pending = %d, want 3", a.Pending())
	}
	frames := a.Feed([]byte{0x45, 0x01})
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after completion, got %d", len(frames))
	}
}

func TestFrameAssembler_TrailingEndByteWaits(t *testing.T) {
	// A chunk ending in 0x45 is ambiguous: marker close, alternate close,
	// or payload. The assembler must wait for the deciding byte.
	a := NewFrameAssembler(MotorToConsole)
	if frames := a.Feed([]byte{0x52, 0x4B, 0xCA, 0x45}); len(frames) != 0 {
		t.Fatalf("ambiguous tail produced %d frames", len(frames))
	}
	frames := a.Feed([]byte{0x52, 0x2A, 0x1F, 0x2F, 0x8B, 0x9F, 0x45, 0x01})
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Raw, []byte{0x52, 0x4B, 0xCA, 0x45}) {
		t.Errorf("frame 0 raw = % X", frames[0].Raw)
	}
}

// ============================================================
// Chunk-Boundary Independence
// ============================================================

// rawSequence flattens frames into a comparable byte form.
func rawSequence(frames []*Frame) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, byte(len(f.Raw)))
		out = append(out, f.Raw...)
		if f.Complete {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

func TestFrameAssembler_ChunkIndependence(t *testing.T) {
	// A realistic mixed stream: noise, all three close forms, a truncated
	// frame, and a partial tail completed at the end.
	stream := []byte{
		0x00, 0xFF,
		0x52, 0x2A, 0x1F, 0x2F, 0x8B, 0x9D, 0x95, 0x75, 0x45, 0x01,
		0x52, 0x4F, 0x01, 0x45, // alternate close, next byte is 0x52
		0x52, 0x4B, 0xCA, 0x5A, 0x99, 0x45, 0x00,
		0x52, 0x4F, 0x49, 0x94, // force-closed by next start
		0x52, 0x54, 0x1B, 0x45, 0x01,
	}

	whole := NewFrameAssembler(ConsoleToMotor).Feed(stream)
	want := rawSequence(whole)
	if len(whole) != 5 {
		t.Fatalf("reference decode produced %d frames, want 5", len(whole))
	}

	for chunk := 1; chunk <= len(stream); chunk++ {
		a := NewFrameAssembler(ConsoleToMotor)
		var frames []*Frame
		for i := 0; i < len(stream); i += chunk {
			end := i + chunk
			if end > len(stream) {
				end = len(stream)
			}
			frames = append(frames, a.Feed(stream[i:end])...)
		}
		if !bytes.Equal(rawSequence(frames), want) {
			t.Fatalf("chunk size %d: got %d frames, sequence differs", chunk, len(frames))
		}
	}
}
