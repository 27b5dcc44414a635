// SPDX-License-Identifier: MIT

package precor

import (
	"fmt"
	"strconv"
)

// BuildSetSpeed builds a complete SET_SPD frame for the console→motor
// direction: 52 2A 1F 2F 8B <base16 mph*100> 45 01.
func BuildSetSpeed(mph float64) []byte {
	return buildFrame(TypeSetSpeed, SetSpeedHeader, EncodeSpeed(mph))
}

// BuildSetIncline builds a complete SET_INC frame:
// 52 4B CA 5A <base16 percent*2> 45 01.
func BuildSetIncline(percent float64) []byte {
	return buildFrame(TypeSetIncline, SetInclineHeader, EncodeIncline(percent))
}

func buildFrame(frameType byte, header, value []byte) []byte {
	out := make([]byte, 0, 2+len(header)+len(value)+2)
	out = append(out, FrameStart, frameType)
	out = append(out, header...)
	out = append(out, value...)
	out = append(out, FrameEnd, EndConsole)
	return out
}

// BuildKV builds a text-protocol command: "[key:value]" or "[key]",
// terminated by the 0xFF delimiter.
func BuildKV(key, value string) []byte {
	out := make([]byte, 0, len(key)+len(value)+4)
	out = append(out, BracketOpen)
	out = append(out, key...)
	if value != "" {
		out = append(out, ':')
		out = append(out, value...)
	}
	out = append(out, BracketClose, KVDelimiter)
	return out
}

// SpeedHex renders a speed for the text protocol's hmph key: hundredths of
// a mph in uppercase hex.
func SpeedHex(mph float64) string {
	hundredths := int(mph*100 + 0.5)
	return fmt.Sprintf("%X", hundredths)
}

// ParseSpeedHex is the inverse of SpeedHex.
func ParseSpeedHex(s string) (mph float64, ok bool) {
	if s == "" || len(s) > 10 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false
	}
	return float64(v) / 100.0, true
}
