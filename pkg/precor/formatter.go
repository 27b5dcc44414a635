// SPDX-License-Identifier: MIT

package precor

import (
	"bytes"
	"fmt"
	"strings"
)

// TypeName returns the short name for a binary frame type.
func TypeName(t byte) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", t)
}

// HexString renders bytes as uppercase space-separated hex, the format used
// throughout capture logs.
func HexString(data []byte) string {
	return hexString(data)
}

// Explain renders a one-line human-readable interpretation of a frame.
// The second result is false when the frame's content did not match any
// known layout.
func Explain(f *Frame) (string, bool) {
	switch f.Type {
	case TypeSetSpeed:
		if len(f.Payload) > len(SetSpeedHeader) && bytes.HasPrefix(f.Payload, SetSpeedHeader) {
			if mph, ok := DecodeSpeed(f.Payload[len(SetSpeedHeader):]); ok {
				return fmt.Sprintf("speed=%.1fmph", mph), true
			}
		}
		return "SET_SPD: unknown format", false

	case TypeSetIncline:
		if bytes.HasPrefix(f.Payload, SetInclineHeader) {
			rest := f.Payload[len(SetInclineHeader):]
			if len(rest) == 0 {
				return "incl=0%", true
			}
			if pct, ok := DecodeIncline(rest); ok {
				return fmt.Sprintf("incl=%.1f%%", pct), true
			}
		}
		return "SET_INC: unknown format", false

	case TypeDisplay1, TypeDisplay2:
		var sb strings.Builder
		for _, b := range f.Payload {
			if b >= 0x20 && b <= 0x7E {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		return fmt.Sprintf("'%s'", sb.String()), true

	default:
		return fmt.Sprintf("%s: %d bytes", f.Name(), len(f.Payload)), false
	}
}

// FormatFrame renders a frame for log output: name, interpretation, raw hex.
func FormatFrame(f *Frame) string {
	meaning, _ := Explain(f)
	mark := ""
	if !f.Complete {
		mark = " (truncated)"
	}
	return fmt.Sprintf("%-8s %-24s %s%s", f.Name(), meaning, HexString(f.Raw), mark)
}
