// SPDX-License-Identifier: MIT

package capture

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/scottmsilver/precor-9.3x/pkg/precor"
	"github.com/scottmsilver/precor-9.3x/pkg/softuart"
)

// ============================================================
// Capture files
// ============================================================

func sampleFrame(t *testing.T) *precor.Frame {
	t.Helper()
	asm := precor.NewFrameAssembler(precor.ConsoleToMotor)
	frames := asm.Feed([]byte{0x52, 0x2A, 0x1F, 0x2F, 0x8B, 0x9D, 0x95, 0x75, 0x45, 0x01})
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	return frames[0]
}

func TestCaptureRoundTrip(t *testing.T) {
	for _, ext := range []string{".jsonl", ".cbor"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session"+ext)

			w, err := Create(path, "workbench capture")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if err := w.Write(FramePacket(0, "console", sampleFrame(t))); err != nil {
				t.Fatalf("Write: %v", err)
			}
			pair := &precor.KVPair{Key: "inc", Value: "10"}
			if err := w.Write(PairPacket(0, "console", time.Now(), pair)); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			header, packets, footer, err := ReadAll(path)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if header == nil || header.Description != "workbench capture" {
				t.Fatalf("bad header: %+v", header)
			}
			if footer == nil || footer.TotalPackets != 2 {
				t.Fatalf("bad footer: %+v", footer)
			}
			if len(packets) != 2 {
				t.Fatalf("expected 2 packets, got %d", len(packets))
			}

			frame := packets[0]
			if frame.Num != 1 || frame.FrameName != "SET_SPD" || frame.FrameType != "binary" {
				t.Errorf("frame packet: %+v", frame)
			}
			if frame.RawFrame != "52 2A 1F 2F 8B 9D 95 75 45 01" {
				t.Errorf("raw hex: %q", frame.RawFrame)
			}
			if !strings.Contains(frame.Meaning, "3.5") {
				t.Errorf("frame meaning: %q", frame.Meaning)
			}

			kv := packets[1]
			if kv.Num != 2 || kv.FrameType != "text" || kv.Key != "inc" || kv.Value != "10" {
				t.Errorf("pair packet: %+v", kv)
			}
		})
	}
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"session.jsonl", FormatJSONL},
		{"session.json", FormatJSONL},
		{"session.cbor", FormatCBOR},
		{"SESSION.CBOR", FormatCBOR},
		{"session", FormatJSONL},
	}
	for _, tt := range tests {
		if got := FormatForPath(tt.path); got != tt.want {
			t.Errorf("FormatForPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRecordTimeRoundTrip(t *testing.T) {
	now := time.Now()
	rec := Record{Timestamp: stamp(now)}
	if diff := rec.Time().Sub(now); diff > time.Millisecond || diff < -time.Millisecond {
		t.Errorf("timestamp drifted by %v", diff)
	}
}

// ============================================================
// Logic-analyzer traces
// ============================================================

const traceCSV = `Time [s],Channel 0,Channel 1
0.000000,1,0
0.000104,0,0
0.000208,1,1
0.001041,1,0
`

func TestLoadTrace(t *testing.T) {
	tr, err := LoadTrace(strings.NewReader(traceCSV))
	if err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
	if len(tr.Names) != 2 || tr.Names[0] != "Channel 0" {
		t.Fatalf("names: %v", tr.Names)
	}

	ch0, err := tr.Edges("Channel 0")
	if err != nil {
		t.Fatalf("Edges: %v", err)
	}
	// Initial level plus two transitions; the repeated 1 is no edge.
	if len(ch0) != 3 {
		t.Fatalf("channel 0 edges: %v", ch0)
	}
	if ch0[0].Level != 1 || ch0[1].Level != 0 || ch0[2].Level != 1 {
		t.Errorf("channel 0 levels: %v", ch0)
	}
	if ch0[1].Time != 0.000104 {
		t.Errorf("channel 0 edge time: %v", ch0[1].Time)
	}

	ch1, err := tr.Edges("Channel 1")
	if err != nil {
		t.Fatalf("Edges: %v", err)
	}
	if len(ch1) != 3 {
		t.Fatalf("channel 1 edges: %v", ch1)
	}

	if _, err := tr.Edges("Channel 9"); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestLoadTraceRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"no channels", "Time [s]\n0.0\n"},
		{"bad time", "Time [s],Channel 0\nnope,1\n"},
		{"bad level", "Time [s],Channel 0\n0.0,high\n"},
	}
	for _, tt := range tests {
		if _, err := LoadTrace(strings.NewReader(tt.csv)); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestIdleLevel(t *testing.T) {
	// Mostly-low line with a short high blip: inverted idle.
	low := []softuart.Edge{
		{Time: 0.0, Level: 0},
		{Time: 1.0, Level: 1},
		{Time: 1.001, Level: 0},
		{Time: 2.0, Level: 1},
	}
	if got := IdleLevel(low); got != 0 {
		t.Errorf("IdleLevel(low) = %d", got)
	}

	high := []softuart.Edge{
		{Time: 0.0, Level: 1},
		{Time: 1.0, Level: 0},
		{Time: 1.001, Level: 1},
		{Time: 2.0, Level: 0},
	}
	if got := IdleLevel(high); got != 1 {
		t.Errorf("IdleLevel(high) = %d", got)
	}

	if got := IdleLevel(nil); got != 0 {
		t.Errorf("IdleLevel(nil) = %d", got)
	}
}
