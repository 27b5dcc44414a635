// SPDX-License-Identifier: MIT

// Package session ties the protocol engine together: per-channel reader
// workers that turn raw bus bytes into typed events, a console emulator
// that generates synthetic traffic, and the proxy glue that forwards one
// side of the bus to the other. All writers share one Transmitter; the
// half-duplex line tolerates no interleaving.
package session

import (
	"time"

	"github.com/scottmsilver/precor-9.3x/pkg/precor"
)

// EventKind classifies a decoded event.
type EventKind int

const (
	// FrameSeen is a complete binary-protocol frame.
	FrameSeen EventKind = iota
	// PairSeen is a text-protocol key/value pair.
	PairSeen
	// FrameTruncated is a binary frame that was force-closed without an
	// end marker (bus noise or a chained transmission).
	FrameTruncated
)

// Event is one decoded unit from a channel, delivered to consumers
// (monitor UI, proxy logic, capture logging).
type Event struct {
	Time      time.Time
	Channel   string
	Direction precor.Direction
	Frame     *precor.Frame
	Pair      *precor.KVPair
}

// Kind classifies the event.
func (e Event) Kind() EventKind {
	if e.Pair != nil {
		return PairSeen
	}
	if e.Frame != nil && !e.Frame.Complete {
		return FrameTruncated
	}
	return FrameSeen
}

// String renders the event for plain log output.
func (e Event) String() string {
	switch {
	case e.Pair != nil:
		return e.Channel + "  " + e.Pair.String()
	case e.Frame != nil:
		return e.Channel + "  " + precor.FormatFrame(e.Frame)
	default:
		return e.Channel + "  (empty event)"
	}
}
