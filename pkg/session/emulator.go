// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/scottmsilver/precor-9.3x/pkg/precor"
)

// BusWriter is the transmit side of the shared half-duplex line. A Send
// must be atomic; softuart.Transmitter provides that.
type BusWriter interface {
	Send(data []byte) error
}

// SafetyTimeout is how long the emulator will keep a non-zero speed or
// incline before forcing both back to zero. Nobody walks for three hours
// because a process hung.
const SafetyTimeout = 3 * time.Hour

// Snapshot is the emulated console state at one instant.
type Snapshot struct {
	SpeedMph   float64
	InclinePct float64
}

// CycleEntry is one step of the text-protocol command cycle: a key plus
// an optional function deriving its value from current state. Entries
// with a nil Value send a bare [key] query.
type CycleEntry struct {
	Key   string
	Value func(Snapshot) string
}

// kvCycle is the 14-key cycle the real console repeats, in its on-the-wire
// order. Values were fixed in every capture except inc and hmph.
var kvCycle = []CycleEntry{
	{Key: "inc", Value: func(s Snapshot) string { return strconv.Itoa(int(s.InclinePct * 2)) }},
	{Key: "hmph", Value: func(s Snapshot) string { return precor.SpeedHex(s.SpeedMph) }},
	{Key: "amps"},
	{Key: "err"},
	{Key: "belt"},
	{Key: "vbus"},
	{Key: "lift"},
	{Key: "lfts"},
	{Key: "lftg"},
	{Key: "part", Value: func(Snapshot) string { return "6" }},
	{Key: "ver"},
	{Key: "type"},
	{Key: "diag", Value: func(Snapshot) string { return "0" }},
	{Key: "loop", Value: func(Snapshot) string { return "5550" }},
}

// kvBursts groups cycle indices into the transmit bursts observed on the
// real bus; entries within a burst go out back to back.
var kvBursts = [][]int{
	{0, 1},
	{2, 3, 4},
	{5, 6, 7, 8},
	{9, 10, 11},
	{12, 13},
}

// Binary-protocol heartbeat frames replayed verbatim from captures. The
// SET_SPD and SET_INC slots are built from live state; these have never
// been decoded and the motor controller expects them.
var (
	unk52Long  = []byte{0x52, 0x52, 0x0A, 0x1F, 0x8B, 0x95, 0x95, 0x95, 0x9F, 0x45, 0x01}
	unk52Short = []byte{0x52, 0x52, 0x69, 0x17, 0x45, 0x01}
	unk54      = []byte{0x52, 0x54, 0x1B, 0x45, 0x01}
	unk9AA     = []byte{0x52, 0x9A, 0x17, 0x19, 0x45, 0x01}
	unk9AB     = []byte{0x52, 0x9A, 0x17, 0x31, 0x45, 0x01}
	unkA2      = []byte{0x52, 0xA2, 0x15, 0x19, 0x45, 0x01}
	unkD4      = []byte{0x52, 0xD4, 0x1B, 0x17, 0x8B, 0x93, 0x45, 0x01}
	disp1      = []byte{
		0x52, 0x4F, 0x49, 0x94, 0x54, 0x05, 0x52, 0x4D, 0xA3, 0x54,
		0x05, 0x52, 0xAA, 0x3A, 0x17, 0x45, 0x01,
	}
	disp2 = []byte{
		0x52, 0x51, 0xE8, 0x54, 0x2A, 0x05, 0x52, 0x53, 0xA9, 0x8A,
		0x5A, 0x9F, 0x45, 0x01,
	}
)

// Emulator replaces the console, repeatedly sending a command cycle to
// the motor controller. Speed and incline are adjustable while it runs;
// changes take effect between transmissions, never inside one.
type Emulator struct {
	mu         sync.Mutex
	speed      float64
	incline    float64
	lastChange time.Time

	writer BusWriter

	// BurstGap is the pause between bursts (KV cycle) or heartbeat steps
	// (binary cycle); CycleGap is the extra mid-cycle pause. Both default
	// to captured bus timing.
	BurstGap time.Duration
	CycleGap time.Duration

	// OnSent, when set, observes every command as it goes out.
	OnSent func(label string, data []byte)
}

// NewEmulator creates an emulator writing through w.
func NewEmulator(w BusWriter) *Emulator {
	return &Emulator{
		writer:     w,
		lastChange: time.Now(),
		BurstGap:   20 * time.Millisecond,
		CycleGap:   100 * time.Millisecond,
	}
}

// Snapshot returns the current emulated state.
func (e *Emulator) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{SpeedMph: e.speed, InclinePct: e.incline}
}

// SetSpeed clamps and applies a speed target in mph.
func (e *Emulator) SetSpeed(mph float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = clamp(mph, 0, 12)
	e.lastChange = time.Now()
}

// SetIncline clamps and applies an incline target in percent.
func (e *Emulator) SetIncline(pct float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.incline = clamp(pct, 0, 15)
	e.lastChange = time.Now()
}

// AdjustSpeed nudges the speed target.
func (e *Emulator) AdjustSpeed(delta float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = clamp(e.speed+delta, 0, 12)
	e.lastChange = time.Now()
}

// AdjustIncline nudges the incline target.
func (e *Emulator) AdjustIncline(delta float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.incline = clamp(e.incline+delta, 0, 15)
	e.lastChange = time.Now()
}

// Stop zeroes the speed target immediately (emergency stop).
func (e *Emulator) Stop() {
	e.SetSpeed(0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RunKV drives the text-protocol cycle until ctx is done. On exit it
// sends a few zero-speed cycles so the belt is never left running.
func (e *Emulator) RunKV(ctx context.Context) error {
	for ctx.Err() == nil {
		e.checkSafetyTimeout()
		if err := e.kvCycleOnce(ctx); err != nil {
			return err
		}
	}
	return e.shutdownKV()
}

func (e *Emulator) kvCycleOnce(ctx context.Context) error {
	snap := e.Snapshot()
	for _, burst := range kvBursts {
		for _, idx := range burst {
			entry := kvCycle[idx]
			value := ""
			if entry.Value != nil {
				value = entry.Value(snap)
			}
			data := precor.BuildKV(entry.Key, value)
			if err := e.writer.Send(data); err != nil {
				return fmt.Errorf("emulate send [%s]: %w", entry.Key, err)
			}
			e.notify(entry.Key, data)
		}
		if !sleepCtx(ctx, e.BurstGap) {
			return nil
		}
	}
	return nil
}

func (e *Emulator) shutdownKV() error {
	e.Stop()
	for i := 0; i < 3; i++ {
		if err := e.kvCycleOnce(context.Background()); err != nil {
			return err
		}
	}
	return nil
}

// RunBinary drives the binary-protocol heartbeat cycle (the ~310 ms
// sequence the console repeats) until ctx is done.
func (e *Emulator) RunBinary(ctx context.Context) error {
	for ctx.Err() == nil {
		e.checkSafetyTimeout()
		if err := e.binaryCycleOnce(ctx); err != nil {
			return err
		}
	}
	// Leave the motor commanded to zero before going quiet.
	e.Stop()
	for i := 0; i < 3; i++ {
		if err := e.binaryCycleOnce(context.Background()); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emulator) binaryCycleOnce(ctx context.Context) error {
	snap := e.Snapshot()
	steps := []struct {
		label string
		data  []byte
		pause time.Duration
	}{
		{"DISP2", disp2, e.BurstGap},
		{"UNK_52_LONG", unk52Long, e.BurstGap},
		{"SET_INC", precor.BuildSetIncline(snap.InclinePct), e.BurstGap},
		{"SET_SPD", precor.BuildSetSpeed(snap.SpeedMph), e.BurstGap + e.CycleGap},
		{"DISP1", disp1, 0},
		{"UNK_A2", unkA2, e.BurstGap},
		{"UNK_52_SHORT", unk52Short, e.BurstGap},
		{"UNK_9A_A", unk9AA, 0},
		{"UNK_9A_B", unk9AB, e.BurstGap},
		{"UNK_D4", unkD4, e.BurstGap},
		{"UNK_54", unk54, e.BurstGap},
	}
	for _, step := range steps {
		if err := e.writer.Send(step.data); err != nil {
			return fmt.Errorf("emulate send %s: %w", step.label, err)
		}
		e.notify(step.label, step.data)
		if step.pause > 0 && !sleepCtx(ctx, step.pause) {
			return nil
		}
	}
	return nil
}

func (e *Emulator) notify(label string, data []byte) {
	if e.OnSent != nil {
		e.OnSent(label, data)
	}
}

// checkSafetyTimeout zeroes the targets when no operator input has
// arrived for SafetyTimeout while the belt is commanded to move.
func (e *Emulator) checkSafetyTimeout() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if time.Since(e.lastChange) < SafetyTimeout {
		return
	}
	if e.speed != 0 || e.incline != 0 {
		log.Printf("[emulate] no input for %v, resetting speed and incline to 0", SafetyTimeout)
		e.speed = 0
		e.incline = 0
		e.lastChange = time.Now()
	}
}

// sleepCtx sleeps unless ctx ends first; reports whether the full pause
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
