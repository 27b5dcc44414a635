// SPDX-License-Identifier: MIT

package softuart

// LevelAt returns the instantaneous line level at time t: the level of the
// latest edge at or before t, found by binary search. Before the first
// edge the line is assumed to hold that edge's level.
func LevelAt(edges []Edge, t float64) int {
	if len(edges) == 0 {
		return 0
	}
	if t < edges[0].Time {
		return edges[0].Level
	}
	lo, hi := 0, len(edges)-1
	result := edges[0].Level
	for lo <= hi {
		mid := (lo + hi) / 2
		if edges[mid].Time <= t {
			result = edges[mid].Level
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return result
}

// DecodeEdges recovers the byte stream from a channel's edge list.
//
// The scan looks for a transition to the start level immediately after an
// idle-level period, re-samples the start bit at its center to reject
// glitches, then samples each of the 8 data bit centers (LSB first,
// complemented under Inverted polarity) and the stop bit center. After a
// byte the scan skips to the first edge at or after the byte's end time so
// mid-byte transitions are never mistaken for new start bits.
//
// Bytes with a bad stop bit are emitted with StopOK=false, never dropped.
func DecodeEdges(edges []Edge, baud int, pol Polarity) []DecodedByte {
	if len(edges) == 0 || baud <= 0 {
		return nil
	}

	bit := 1.0 / float64(baud)
	half := bit / 2.0
	idle := pol.IdleLevel()
	start := pol.StartLevel()

	var decoded []DecodedByte
	i := 0
	for i < len(edges) {
		e := edges[i]
		if e.Level != start || i == 0 || edges[i-1].Level != idle {
			i++
			continue
		}

		// Debounce: the start level must still hold at the bit center.
		if LevelAt(edges, e.Time+half) != start {
			i++
			continue
		}

		var value byte
		for bitIdx := 0; bitIdx < 8; bitIdx++ {
			sample := e.Time + bit*float64(1+bitIdx) + half
			level := LevelAt(edges, sample)
			if pol == Inverted {
				level = 1 - level
			}
			value |= byte(level) << bitIdx
		}

		stopLevel := LevelAt(edges, e.Time+bit*9+half)
		end := e.Time + bit*10

		decoded = append(decoded, DecodedByte{
			Start:  e.Time,
			End:    end,
			Value:  value,
			StopOK: stopLevel == idle,
		})

		// Skip past this byte's edges; the small margin tolerates clock
		// drift on the final transition.
		for i < len(edges) && edges[i].Time < end-bit*0.1 {
			i++
		}
	}
	return decoded
}

// Bytes flattens decoded bytes into a raw byte slice, keeping bad-stop-bit
// bytes (downstream framing treats them as hints, not errors).
func Bytes(decoded []DecodedByte) []byte {
	out := make([]byte, len(decoded))
	for i, d := range decoded {
		out[i] = d.Value
	}
	return out
}

// StopBitStats reports how many decoded bytes had a clean stop bit. A low
// ratio under one polarity and a high ratio under the other is how capture
// analysis identifies the bus convention.
func StopBitStats(decoded []DecodedByte) (good, total int) {
	for _, d := range decoded {
		if d.StopOK {
			good++
		}
	}
	return good, len(decoded)
}

// SynthesizeEdges renders a byte sequence as the edge list its transmission
// would produce under the given polarity, starting at startTime. Used for
// loopback tests and for generating reference traces.
func SynthesizeEdges(data []byte, baud int, pol Polarity, startTime float64) []Edge {
	bit := 1.0 / float64(baud)
	idle := pol.IdleLevel()

	level := idle
	t := startTime
	edges := []Edge{{Time: t - bit, Level: idle}}

	emit := func(l int) {
		if l != level {
			edges = append(edges, Edge{Time: t, Level: l})
			level = l
		}
		t += bit
	}

	for _, b := range data {
		emit(pol.StartLevel())
		for bitIdx := 0; bitIdx < 8; bitIdx++ {
			v := int(b>>bitIdx) & 1
			if pol == Inverted {
				v = 1 - v
			}
			emit(v)
		}
		emit(idle)
	}
	// Close with an idle tail so the final stop bit is observable.
	if level != idle {
		edges = append(edges, Edge{Time: t, Level: idle})
	}
	return edges
}
