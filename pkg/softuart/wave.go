// SPDX-License-Identifier: MIT

package softuart

import "github.com/scottmsilver/precor-9.3x/pkg/gpio"

// Waveform renders bytes as a pigpio pulse train on one pin using the
// bus's inverted polarity: start bit HIGH, logical 1 LOW, logical 0 HIGH,
// stop bit LOW. Each byte is exactly 10 pulses of one bit period;
// consecutive bytes abut with no gap unless gapBits > 0 inserts idle-level
// bit periods between them.
func Waveform(pin int, data []byte, baud int, gapBits int) []gpio.Pulse {
	if len(data) == 0 {
		return nil
	}
	mask := uint32(1) << uint(pin)
	bitUs := uint32(1_000_000 / baud)

	high := gpio.Pulse{On: mask, DelayUs: bitUs}
	low := gpio.Pulse{Off: mask, DelayUs: bitUs}

	pulses := make([]gpio.Pulse, 0, len(data)*(10+gapBits))
	for i, b := range data {
		if i > 0 && gapBits > 0 {
			gap := low
			gap.DelayUs = bitUs * uint32(gapBits)
			pulses = append(pulses, gap)
		}
		// Start bit: HIGH (inverse of standard UART).
		pulses = append(pulses, high)
		// 8 data bits, LSB first, complemented on the wire.
		for bit := 0; bit < 8; bit++ {
			if (b>>bit)&1 == 1 {
				pulses = append(pulses, low)
			} else {
				pulses = append(pulses, high)
			}
		}
		// Stop bit: back to the LOW idle level.
		pulses = append(pulses, low)
	}
	return pulses
}
