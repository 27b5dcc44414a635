// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"io"
	"time"

	"github.com/scottmsilver/precor-9.3x/pkg/precor"
)

// Protocol selects which assemblers a channel runs. The two sub-protocols
// share wire conventions, so a channel being explored is often parsed as
// both until its traffic is identified.
type Protocol int

const (
	BinaryFrames Protocol = 1 << iota
	TextPairs
)

// DefaultBackoff is how long a reader sleeps when its line is idle.
const DefaultBackoff = 50 * time.Millisecond

// ReaderConfig describes one channel worker.
type ReaderConfig struct {
	// Name identifies the channel in events ("console", "motor").
	Name      string
	Direction precor.Direction
	// Source yields bus bytes; (0, nil) means idle. The bit-banged GPIO
	// reader and a plain serial port both satisfy this.
	Source io.Reader
	// Protocols defaults to BinaryFrames|TextPairs when zero.
	Protocols Protocol
	// Backoff defaults to DefaultBackoff when zero.
	Backoff time.Duration
	// OnRaw, when set, sees every chunk before parsing. The proxy path
	// hangs off this hook so forwarding latency does not wait on frame
	// assembly.
	OnRaw func([]byte)
}

// ChannelReader polls one direction of the bus and emits typed events.
// Each channel owns its parser state; readers never block one another.
type ChannelReader struct {
	cfg    ReaderConfig
	frames *precor.FrameAssembler
	kv     *precor.KVAssembler
	events chan<- Event
}

// NewChannelReader creates a worker for one channel. Events are delivered
// on the supplied channel; the caller owns its lifetime.
func NewChannelReader(cfg ReaderConfig, events chan<- Event) *ChannelReader {
	if cfg.Protocols == 0 {
		cfg.Protocols = BinaryFrames | TextPairs
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = DefaultBackoff
	}
	r := &ChannelReader{cfg: cfg, events: events}
	if cfg.Protocols&BinaryFrames != 0 {
		r.frames = precor.NewFrameAssembler(cfg.Direction)
	}
	if cfg.Protocols&TextPairs != 0 {
		r.kv = precor.NewKVAssembler()
	}
	return r
}

// Run polls the source until ctx is done or the source fails. io.EOF is a
// clean end (offline replay sources drain).
func (r *ChannelReader) Run(ctx context.Context) error {
	buf := make([]byte, 512)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := r.cfg.Source.Read(buf)
		if n > 0 {
			r.Ingest(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.cfg.Backoff):
			}
		}
	}
}

// Ingest feeds one chunk through the channel's assemblers and emits the
// resulting events. Exposed so offline tooling can push decoded capture
// bytes through the same path the live readers use.
func (r *ChannelReader) Ingest(chunk []byte) {
	if r.cfg.OnRaw != nil {
		r.cfg.OnRaw(chunk)
	}
	if r.frames != nil {
		for _, f := range r.frames.Feed(chunk) {
			r.emit(Event{Time: f.Timestamp, Channel: r.cfg.Name, Direction: r.cfg.Direction, Frame: f})
		}
	}
	if r.kv != nil {
		for _, p := range r.kv.Feed(chunk) {
			pair := p
			r.emit(Event{Time: time.Now(), Channel: r.cfg.Name, Direction: r.cfg.Direction, Pair: &pair})
		}
	}
}

func (r *ChannelReader) emit(e Event) {
	r.events <- e
}
