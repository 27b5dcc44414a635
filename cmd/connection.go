// SPDX-License-Identifier: MIT

package cmd

import (
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/scottmsilver/precor-9.3x/pkg/gpio"
	"github.com/scottmsilver/precor-9.3x/pkg/precor"
)

// Connection provides a common interface for reading/writing bytes from
// a serial adapter or a bit-banged GPIO line.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// bus bundles the GPIO resources a command needs: the daemon connection,
// the pin map, and bit-banged readers on the two bus lines.
type bus struct {
	port gpio.Port
	pins gpio.PinMap

	console *gpio.PinReader
	motor   *gpio.PinReader
}

// openBus dials the pigpio daemon, loads the pin map, and opens inverted
// bit-banged readers on the requested lines. The emulator only transmits,
// so it skips both.
func openBus(readConsole, readMotor bool) (*bus, error) {
	addr := pigpioAddr
	if addr == "" {
		addr = gpio.DefaultDaemonAddr
	}
	pins, err := gpio.LoadPins(pinsFile)
	if err != nil {
		return nil, err
	}
	port, err := gpio.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("pigpio daemon at %s: %w", addr, err)
	}

	b := &bus{port: port, pins: pins}
	if readConsole {
		pin, err := pins.GPIO("console_read")
		if err != nil {
			b.Close()
			return nil, err
		}
		b.console, err = gpio.OpenPinReader(port, pin, precor.Baud, true)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open console line: %w", err)
		}
	}
	if readMotor {
		pin, err := pins.GPIO("motor_read")
		if err != nil {
			b.Close()
			return nil, err
		}
		b.motor, err = gpio.OpenPinReader(port, pin, precor.Baud, true)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open motor line: %w", err)
		}
	}
	return b, nil
}

func (b *bus) Close() error {
	if b.console != nil {
		b.console.Close()
	}
	if b.motor != nil {
		b.motor.Close()
	}
	return b.port.Close()
}

// useGPIO reports whether the flags select GPIO mode over serial.
func useGPIO() bool {
	return pigpioAddr != "" || portName == ""
}

// connectionInfo describes the active connection for banner output.
func connectionInfo() string {
	if useGPIO() {
		addr := pigpioAddr
		if addr == "" {
			addr = gpio.DefaultDaemonAddr
		}
		return fmt.Sprintf("pigpio %s @ %d baud", addr, baudRate)
	}
	return fmt.Sprintf("%s @ %d baud", portName, baudRate)
}
