// SPDX-License-Identifier: MIT

package gpio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPins_MissingFileUsesDefaults(t *testing.T) {
	pins, err := LoadPins(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadPins: %v", err)
	}
	gpio, err := pins.GPIO("console_read")
	if err != nil || gpio != 27 {
		t.Errorf("console_read = %d (err=%v), want 27", gpio, err)
	}
}

func TestLoadPins_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pins.yaml")
	content := "console_read:\n  gpio: 17\n  direction: in\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	pins, err := LoadPins(path)
	if err != nil {
		t.Fatalf("LoadPins: %v", err)
	}
	gpio, _ := pins.GPIO("console_read")
	if gpio != 17 {
		t.Errorf("console_read = %d, want 17", gpio)
	}
	// Names absent from the file keep their defaults.
	gpio, _ = pins.GPIO("motor_read")
	if gpio != 22 {
		t.Errorf("motor_read = %d, want 22", gpio)
	}
}

func TestPinMap_UnknownName(t *testing.T) {
	if _, err := DefaultPins().GPIO("bogus"); err == nil {
		t.Error("expected error for unknown pin name")
	}
}

func TestMockPort_SerialReadDrainsQueue(t *testing.T) {
	m := NewMockPort()
	m.QueueSerialData(27, []byte{0x52, 0x2A})
	m.QueueSerialData(27, []byte{0x45, 0x01})

	buf := make([]byte, 16)
	n, err := m.SerialRead(27, buf)
	if err != nil || n != 2 || buf[0] != 0x52 {
		t.Fatalf("first poll: n=%d err=%v", n, err)
	}
	n, _ = m.SerialRead(27, buf)
	if n != 2 || buf[0] != 0x45 {
		t.Fatalf("second poll: n=%d", n)
	}
	n, _ = m.SerialRead(27, buf)
	if n != 0 {
		t.Fatalf("idle poll returned %d bytes", n)
	}
}
