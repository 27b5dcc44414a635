// SPDX-License-Identifier: MIT

package gpio

// PinReader exposes a bit-banged serial read pin as an io.Reader. A read
// returning (0, nil) means the line is idle; callers back off and poll
// again.
type PinReader struct {
	port Port
	pin  int
}

// OpenPinReader configures a pin for bit-banged serial input and returns
// its reader. The treadmill bus always runs inverted.
func OpenPinReader(port Port, pin, baud int, inverted bool) (*PinReader, error) {
	if err := port.SerialReadOpen(pin, baud, 8); err != nil {
		return nil, err
	}
	if err := port.SerialReadInvert(pin, inverted); err != nil {
		port.SerialReadClose(pin)
		return nil, err
	}
	return &PinReader{port: port, pin: pin}, nil
}

func (r *PinReader) Read(p []byte) (int, error) {
	return r.port.SerialRead(r.pin, p)
}

// Close releases the pin's bit-banged reader.
func (r *PinReader) Close() error {
	return r.port.SerialReadClose(r.pin)
}
