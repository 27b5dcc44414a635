// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scottmsilver/precor-9.3x/pkg/capture"
	"github.com/scottmsilver/precor-9.3x/pkg/precor"
	"github.com/scottmsilver/precor-9.3x/pkg/session"
)

var (
	sniffSave     string
	sniffChannel  string
	sniffText     bool
	sniffBinary   bool
	sniffUnique   bool
	sniffChanges  bool
	sniffDescribe string
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Decode and display live bus traffic",
	Long: `Continuously decode traffic on the console and motor lines and print
each frame or key/value pair as it arrives.

By default both lines are watched and both sub-protocols are parsed. Use
--channel to watch one side, --text/--binary to restrict parsing, and
--unique or --changes to cut repetitive cycle traffic down to what is new.

--save writes every decoded packet to a capture file for offline replay;
the format follows the extension (.jsonl or .cbor).`,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
	sniffCmd.Flags().StringVar(&sniffSave, "save", "", "Write decoded packets to a capture file")
	sniffCmd.Flags().StringVar(&sniffChannel, "channel", "both", "Line to watch: console, motor, or both")
	sniffCmd.Flags().BoolVar(&sniffText, "text", false, "Parse only the bracketed key/value protocol")
	sniffCmd.Flags().BoolVar(&sniffBinary, "binary", false, "Parse only the binary frame protocol")
	sniffCmd.Flags().BoolVar(&sniffUnique, "unique", false, "Show each distinct frame or key only once")
	sniffCmd.Flags().BoolVar(&sniffChanges, "changes", false, "Show key/value pairs only when the value changes")
	sniffCmd.Flags().StringVar(&sniffDescribe, "describe", "", "Description stored in the capture header")
}

func sniffProtocols() session.Protocol {
	switch {
	case sniffText && !sniffBinary:
		return session.TextPairs
	case sniffBinary && !sniffText:
		return session.BinaryFrames
	default:
		return session.BinaryFrames | session.TextPairs
	}
}

func runSniff(cmd *cobra.Command, args []string) error {
	watchConsole := sniffChannel == "both" || sniffChannel == "console"
	watchMotor := sniffChannel == "both" || sniffChannel == "motor"
	if !watchConsole && !watchMotor {
		return fmt.Errorf("unknown channel %q (use console, motor, or both)", sniffChannel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan session.Event, 256)
	var readers []*session.ChannelReader

	if useGPIO() {
		b, err := openBus(watchConsole, watchMotor)
		if err != nil {
			return err
		}
		defer b.Close()
		if watchConsole {
			readers = append(readers, session.NewChannelReader(session.ReaderConfig{
				Name:      "console",
				Direction: precor.ConsoleToMotor,
				Source:    b.console,
				Protocols: sniffProtocols(),
			}, events))
		}
		if watchMotor {
			readers = append(readers, session.NewChannelReader(session.ReaderConfig{
				Name:      "motor",
				Direction: precor.MotorToConsole,
				Source:    b.motor,
				Protocols: sniffProtocols(),
			}, events))
		}
	} else {
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return err
		}
		defer conn.Close()
		readers = append(readers, session.NewChannelReader(session.ReaderConfig{
			Name:      "serial",
			Direction: precor.ConsoleToMotor,
			Source:    conn,
			Protocols: sniffProtocols(),
		}, events))
	}

	var capw *capture.Writer
	if sniffSave != "" {
		var err error
		capw, err = capture.Create(sniffSave, sniffDescribe)
		if err != nil {
			return err
		}
		defer func() {
			if err := capw.Close(); err != nil {
				log.Printf("close capture: %v", err)
			} else {
				log.Printf("saved %d packets to %s", capw.Packets(), sniffSave)
			}
		}()
	}

	wg, errs := startReaders(ctx, stop, readers...)

	fmt.Printf("precor - bus sniffer\n")
	fmt.Printf("Connection: %s\n", connectionInfo())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	filter := newSniffFilter()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if !filter.keep(ev) {
				continue
			}
			fmt.Printf("[%s] %s\n", ev.Time.Format("15:04:05.000"), ev.String())
			if capw != nil {
				if err := capw.Write(packetFor(ev)); err != nil {
					log.Printf("capture write: %v", err)
				}
			}
		}
	}()

	wg.Wait()
	close(events)
	<-done
	return firstError(errs)
}

// packetFor converts an event to its capture record.
func packetFor(ev session.Event) capture.Record {
	if ev.Pair != nil {
		return capture.PairPacket(0, ev.Channel, ev.Time, ev.Pair)
	}
	return capture.FramePacket(0, ev.Channel, ev.Frame)
}

// sniffFilter implements --unique and --changes suppression.
type sniffFilter struct {
	mu       sync.Mutex
	seen     map[string]bool
	lastByKV map[string]string
}

func newSniffFilter() *sniffFilter {
	return &sniffFilter{
		seen:     make(map[string]bool),
		lastByKV: make(map[string]string),
	}
}

func (f *sniffFilter) keep(ev session.Event) bool {
	if !sniffUnique && !sniffChanges {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if sniffChanges && ev.Pair != nil {
		key := ev.Channel + "/" + ev.Pair.Key
		if last, ok := f.lastByKV[key]; ok && last == ev.Pair.Value {
			return false
		}
		f.lastByKV[key] = ev.Pair.Value
		return true
	}
	if sniffUnique {
		var id string
		if ev.Pair != nil {
			id = ev.Channel + "/kv/" + ev.Pair.Key
		} else {
			id = ev.Channel + "/frame/" + precor.HexString(ev.Frame.Raw)
		}
		if f.seen[id] {
			return false
		}
		f.seen[id] = true
	}
	return true
}
