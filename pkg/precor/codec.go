// SPDX-License-Identifier: MIT

package precor

import "math"

// EncodeBase16 encodes a value into the custom digit alphabet, most
// significant digit first. Width follows the wire convention: one digit for
// 0–15, two for 16–255, three for 256–4095. Values above 4095 still encode
// their low three digits; nothing on the bus has ever exceeded that range.
func EncodeBase16(value uint32) []byte {
	switch {
	case value < 16:
		return []byte{digits[value]}
	case value < 256:
		return []byte{digits[value/16], digits[value%16]}
	default:
		return []byte{
			digits[(value/256)%16],
			digits[(value/16)%16],
			digits[value%16],
		}
	}
}

// DecodeBase16 decodes a digit-alphabet byte sequence. ok is false if any
// byte is outside the alphabet or the input is empty; callers treat that as
// "not this codec's data", not as corruption.
func DecodeBase16(data []byte) (value uint32, ok bool) {
	if len(data) == 0 {
		return 0, false
	}
	for _, b := range data {
		v := digitValues[b]
		if v < 0 {
			return 0, false
		}
		value = value*16 + uint32(v)
	}
	return value, true
}

// EncodeSpeed encodes a speed in mph. Wire resolution is 0.01 mph.
func EncodeSpeed(mph float64) []byte {
	return EncodeBase16(uint32(math.Round(mph * 100)))
}

// DecodeSpeed decodes a speed payload to mph.
func DecodeSpeed(data []byte) (mph float64, ok bool) {
	v, ok := DecodeBase16(data)
	if !ok {
		return 0, false
	}
	return float64(v) / 100.0, true
}

// EncodeIncline encodes an incline in percent. Wire resolution is 0.5%.
func EncodeIncline(percent float64) []byte {
	return EncodeBase16(uint32(math.Round(percent * 2)))
}

// DecodeIncline decodes an incline payload to percent.
func DecodeIncline(data []byte) (percent float64, ok bool) {
	v, ok := DecodeBase16(data)
	if !ok {
		return 0, false
	}
	return float64(v) / 2.0, true
}
