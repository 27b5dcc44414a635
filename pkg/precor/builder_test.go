// SPDX-License-Identifier: MIT

package precor

import (
	"bytes"
	"testing"
)

// ============================================================
// Frame Builder Tests
// ============================================================

func TestBuildSetSpeed(t *testing.T) {
	// 3.5 mph -> 350 -> 9D 95 75
	want := []byte{0x52, 0x2A, 0x1F, 0x2F, 0x8B, 0x9D, 0x95, 0x75, 0x45, 0x01}
	got := BuildSetSpeed(3.5)
	if !bytes.Equal(got, want) {
		t.Errorf("BuildSetSpeed(3.5) = % X, want % X", got, want)
	}
}

func TestBuildSetIncline(t *testing.T) {
	// 2.0% -> 4 half-percent units -> single digit 0x97
	want := []byte{0x52, 0x4B, 0xCA, 0x5A, 0x97, 0x45, 0x01}
	got := BuildSetIncline(2.0)
	if !bytes.Equal(got, want) {
		t.Errorf("BuildSetIncline(2.0) = % X, want % X", got, want)
	}
}

func TestBuiltFramesReassemble(t *testing.T) {
	a := NewFrameAssembler(ConsoleToMotor)
	stream := append(BuildSetSpeed(6.2), BuildSetIncline(7.5)...)

	frames := a.Feed(stream)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}

	meaning, known := Explain(frames[0])
	if !known || meaning != "speed=6.2mph" {
		t.Errorf("frame 0 explain = %q (known=%v)", meaning, known)
	}
	meaning, known = Explain(frames[1])
	if !known || meaning != "incl=7.5%" {
		t.Errorf("frame 1 explain = %q (known=%v)", meaning, known)
	}
}

func TestBuildKV(t *testing.T) {
	tests := []struct {
		key, value string
		want       []byte
	}{
		{"hmph", "15E", append([]byte("[hmph:15E]"), 0xFF)},
		{"amps", "", append([]byte("[amps]"), 0xFF)},
	}

	for _, tt := range tests {
		got := BuildKV(tt.key, tt.value)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("BuildKV(%q, %q) = % X, want % X", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestBuildKVRoundTrip(t *testing.T) {
	a := NewKVAssembler()
	stream := append(BuildKV("inc", "5"), BuildKV("err", "")...)

	pairs := a.Feed(stream)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Key != "inc" || pairs[0].Value != "5" {
		t.Errorf("pair 0 = %v", pairs[0])
	}
	if pairs[1].Key != "err" || pairs[1].Value != "" {
		t.Errorf("pair 1 = %v", pairs[1])
	}
}

func TestExplainIncline_EmptyValue(t *testing.T) {
	// The motor reports incline 0 as a frame with only the header bytes.
	a := NewFrameAssembler(MotorToConsole)
	frames := a.Feed([]byte{0x52, 0x4B, 0xCA, 0x5A, 0x45, 0x00})
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	meaning, known := Explain(frames[0])
	if !known || meaning != "incl=0%" {
		t.Errorf("explain = %q (known=%v)", meaning, known)
	}
}
