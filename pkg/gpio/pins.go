// SPDX-License-Identifier: MIT

package gpio

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pin describes one logical pin assignment.
type Pin struct {
	GPIO        int    `yaml:"gpio"`
	PhysicalPin int    `yaml:"physical_pin,omitempty"`
	Direction   string `yaml:"direction,omitempty"` // "in" or "out"
	Description string `yaml:"description,omitempty"`
}

// PinMap resolves logical pin names (console_read, motor_write, ...) to
// BCM GPIO numbers.
type PinMap map[string]Pin

// DefaultPins matches the wiring used during the reverse-engineering work:
// treadmill pin 6 (console TX) and pin 3 (motor TX) tapped for reading,
// separate pins driving each side.
func DefaultPins() PinMap {
	return PinMap{
		"console_read": {GPIO: 27, PhysicalPin: 6, Direction: "in",
			Description: "console→motor traffic (treadmill pin 6)"},
		"motor_read": {GPIO: 22, PhysicalPin: 3, Direction: "in",
			Description: "motor→console traffic (treadmill pin 3)"},
		"console_write": {GPIO: 23, Direction: "out",
			Description: "drive the console-side line (emulate mode)"},
		"motor_write": {GPIO: 24, Direction: "out",
			Description: "drive the motor-side line (proxy forwarding)"},
	}
}

// LoadPins reads a pin map from a YAML file, falling back to defaults for
// names the file does not mention. A missing file yields the defaults.
func LoadPins(path string) (PinMap, error) {
	pins := DefaultPins()
	if path == "" {
		return pins, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pins, nil
		}
		return nil, fmt.Errorf("pin config %s: %w", path, err)
	}
	loaded := PinMap{}
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("pin config %s: %w", path, err)
	}
	for name, pin := range loaded {
		pins[name] = pin
	}
	return pins, nil
}

// GPIO resolves a logical name to its BCM GPIO number.
func (m PinMap) GPIO(name string) (int, error) {
	pin, ok := m[name]
	if !ok {
		names := make([]string, 0, len(m))
		for n := range m {
			names = append(names, n)
		}
		sort.Strings(names)
		return 0, fmt.Errorf("unknown pin %q (known: %s)", name, strings.Join(names, ", "))
	}
	return pin.GPIO, nil
}
