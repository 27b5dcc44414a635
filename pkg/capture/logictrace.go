// SPDX-License-Identifier: MIT

package capture

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/scottmsilver/precor-9.3x/pkg/softuart"
)

// Trace is a logic-analyzer export reduced to per-channel edge lists.
// The first sample of each channel is kept as an edge so the idle level
// before the first transition is known.
type Trace struct {
	Names    []string
	Channels map[string][]softuart.Edge
}

// LoadTrace parses a logic-analyzer CSV export: a header row naming the
// time column and each channel, then rows of seconds and 0/1 levels.
func LoadTrace(r io.Reader) (*Trace, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read trace header: %w", err)
	}
	if len(head) < 2 {
		return nil, fmt.Errorf("trace needs a time column and at least one channel, got %d columns", len(head))
	}
	names := make([]string, len(head)-1)
	for i, name := range head[1:] {
		names[i] = strings.TrimSpace(name)
	}

	tr := &Trace{Names: names, Channels: make(map[string][]softuart.Edge, len(names))}
	last := make([]int, len(names))
	for i := range last {
		last[i] = -1
	}

	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read trace row %d: %w", row, err)
		}
		if len(rec) != len(head) {
			return nil, fmt.Errorf("trace row %d has %d columns, want %d", row, len(rec), len(head))
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("trace row %d time: %w", row, err)
		}
		for i, name := range names {
			level, err := strconv.Atoi(strings.TrimSpace(rec[i+1]))
			if err != nil {
				return nil, fmt.Errorf("trace row %d channel %s: %w", row, name, err)
			}
			if level != 0 {
				level = 1
			}
			if level != last[i] {
				tr.Channels[name] = append(tr.Channels[name], softuart.Edge{Time: t, Level: level})
				last[i] = level
			}
		}
	}
	return tr, nil
}

// LoadTraceFile opens and parses a logic-analyzer CSV export.
func LoadTraceFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()
	tr, err := LoadTrace(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tr, nil
}

// Edges returns the edge list for one channel by name.
func (t *Trace) Edges(name string) ([]softuart.Edge, error) {
	edges, ok := t.Channels[name]
	if !ok {
		return nil, fmt.Errorf("trace has no channel %q (have %s)", name, strings.Join(t.Names, ", "))
	}
	return edges, nil
}

// IdleLevel guesses a channel's resting line level by total dwell time.
// An inverted line idles low, a standard one high; this drives polarity
// detection when a capture is unlabeled.
func IdleLevel(edges []softuart.Edge) int {
	if len(edges) == 0 {
		return 0
	}
	var dwell [2]float64
	for i := 0; i < len(edges)-1; i++ {
		dwell[edges[i].Level] += edges[i+1].Time - edges[i].Time
	}
	if dwell[1] > dwell[0] {
		return 1
	}
	return 0
}
