// SPDX-License-Identifier: MIT

// Package capture persists decoded bus sessions and loads them back for
// offline analysis. Two container formats are supported, chosen by file
// extension: line-delimited JSON for greppable archives, and CBOR for
// compact long-running recordings. A capture is a header record, a
// stream of packet records, and a footer with the final count.
package capture

import (
	"time"

	"github.com/scottmsilver/precor-9.3x/pkg/precor"
)

// Record discriminator values.
const (
	TypeHeader = "header"
	TypePacket = "packet"
	TypeFooter = "footer"
)

// Record is one entry in a capture stream. Type selects which fields are
// meaningful.
type Record struct {
	Type      string  `json:"type" cbor:"type"`
	Timestamp float64 `json:"timestamp" cbor:"timestamp"`

	// Header fields.
	Description string `json:"description,omitempty" cbor:"description,omitempty"`

	// Packet fields.
	Num       int    `json:"num,omitempty" cbor:"num,omitempty"`
	Channel   string `json:"channel,omitempty" cbor:"channel,omitempty"`
	FrameType string `json:"frame_type,omitempty" cbor:"frame_type,omitempty"`
	FrameName string `json:"frame_name,omitempty" cbor:"frame_name,omitempty"`
	RawFrame  string `json:"raw_frame,omitempty" cbor:"raw_frame,omitempty"`
	Payload   string `json:"payload,omitempty" cbor:"payload,omitempty"`
	Meaning   string `json:"meaning,omitempty" cbor:"meaning,omitempty"`
	Key       string `json:"key,omitempty" cbor:"key,omitempty"`
	Value     string `json:"value,omitempty" cbor:"value,omitempty"`

	// Footer fields.
	TotalPackets int `json:"total_packets,omitempty" cbor:"total_packets,omitempty"`
}

func stamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Time converts the record timestamp back to a time.Time.
func (r *Record) Time() time.Time {
	sec := int64(r.Timestamp)
	nsec := int64((r.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// FramePacket builds a packet record from a decoded binary frame.
func FramePacket(num int, channel string, f *precor.Frame) Record {
	rec := Record{
		Type:      TypePacket,
		Timestamp: stamp(f.Timestamp),
		Num:       num,
		Channel:   channel,
		FrameType: "binary",
		FrameName: f.Name(),
		RawFrame:  precor.HexString(f.Raw),
		Payload:   precor.HexString(f.Payload),
	}
	if meaning, ok := precor.Explain(f); ok {
		rec.Meaning = meaning
	}
	return rec
}

// PairPacket builds a packet record from a text-protocol pair.
func PairPacket(num int, channel string, t time.Time, p *precor.KVPair) Record {
	return Record{
		Type:      TypePacket,
		Timestamp: stamp(t),
		Num:       num,
		Channel:   channel,
		FrameType: "text",
		FrameName: "KV",
		Key:       p.Key,
		Value:     p.Value,
		Meaning:   p.String(),
	}
}
