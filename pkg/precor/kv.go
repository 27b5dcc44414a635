// SPDX-License-Identifier: MIT

package precor

import (
	"bytes"
	"fmt"
	"strings"
)

// maxBracketRun bounds how long an unterminated bracket run may grow before
// the opening bracket is treated as noise. The longest legitimate run seen
// in captures is under 20 bytes.
const maxBracketRun = 64

// KVAssembler extracts bracketed key/value pairs from a byte stream.
// Like FrameAssembler it is chunk-boundary independent: an unterminated
// bracket run is buffered until its closing bracket arrives.
type KVAssembler struct {
	buf []byte
}

// NewKVAssembler creates an assembler for one channel.
func NewKVAssembler() *KVAssembler {
	return &KVAssembler{buf: make([]byte, 0, 256)}
}

// Reset discards all buffered state.
func (a *KVAssembler) Reset() {
	a.buf = a.buf[:0]
}

// Pending returns the number of buffered, not-yet-parsed bytes.
func (a *KVAssembler) Pending() int {
	return len(a.buf)
}

// Feed appends data to the channel buffer and returns all pairs whose
// closing bracket has arrived. Delimiter bytes (0xFF, 0x00) and bytes
// outside bracket runs are skipped silently; an empty bracket produces
// no pair.
func (a *KVAssembler) Feed(data []byte) []KVPair {
	a.buf = append(a.buf, data...)
	var pairs []KVPair
	i := 0
	for i < len(a.buf) {
		if a.buf[i] != BracketOpen {
			i++
			continue
		}
		end := bytes.IndexByte(a.buf[i+1:], BracketClose)
		if end < 0 {
			if len(a.buf)-i > maxBracketRun {
				// Runaway open bracket: treat it as noise.
				i++
				continue
			}
			break
		}
		end += i + 1
		if end-i > maxBracketRun {
			// The close is too far away to be a real run; drop the open
			// bracket so split and whole feeds stay in agreement.
			i++
			continue
		}
		if pair, ok := parseBracket(a.buf[i+1 : end]); ok {
			pairs = append(pairs, pair)
		}
		i = end + 1
	}
	a.buf = append(a.buf[:0], a.buf[i:]...)
	return pairs
}

// parseBracket interprets the content between brackets. Printable content
// splits on the first colon; anything else is reported as a BIN pair with
// the raw bytes hex-encoded.
func parseBracket(content []byte) (KVPair, bool) {
	if len(content) == 0 {
		return KVPair{}, false
	}
	for _, b := range content {
		if b < 0x20 || b > 0x7E {
			return KVPair{Key: BinKey, Value: hexString(content)}, true
		}
	}
	s := string(content)
	if k, v, found := strings.Cut(s, ":"); found {
		return KVPair{Key: k, Value: v}, true
	}
	return KVPair{Key: s}, true
}

// hexString renders bytes as uppercase space-separated hex.
func hexString(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
