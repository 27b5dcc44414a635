// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Proxy relays raw bytes from one side of the bus to the other while the
// readers decode the same traffic in parallel. It never reframes: bytes
// go out exactly as they came in, chunk by chunk.
type Proxy struct {
	name    string
	source  io.Reader
	sink    BusWriter
	backoff time.Duration

	bytesIn  atomic.Uint64
	chunks   atomic.Uint64
	sendErrs atomic.Uint64
}

// NewProxy relays from source to sink. name labels log output and stats.
func NewProxy(name string, source io.Reader, sink BusWriter) *Proxy {
	return &Proxy{
		name:    name,
		source:  source,
		sink:    sink,
		backoff: DefaultBackoff,
	}
}

// ProxyStats is a point-in-time snapshot of relay counters.
type ProxyStats struct {
	Name     string
	BytesIn  uint64
	Chunks   uint64
	SendErrs uint64
}

// Stats returns the current counters.
func (p *Proxy) Stats() ProxyStats {
	return ProxyStats{
		Name:     p.name,
		BytesIn:  p.bytesIn.Load(),
		Chunks:   p.chunks.Load(),
		SendErrs: p.sendErrs.Load(),
	}
}

// Run relays until ctx is done or the source returns a terminal error.
// Send failures are counted but do not stop the relay; the bus is lossy
// anyway and a stuck proxy is worse than a dropped chunk.
func (p *Proxy) Run(ctx context.Context) error {
	buf := make([]byte, 512)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := p.source.Read(buf)
		if n > 0 {
			p.bytesIn.Add(uint64(n))
			p.chunks.Add(1)
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if serr := p.sink.Send(chunk); serr != nil {
				p.sendErrs.Add(1)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("proxy %s read: %w", p.name, err)
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.backoff):
			}
		}
	}
}
