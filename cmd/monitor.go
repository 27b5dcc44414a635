// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scottmsilver/precor-9.3x/pkg/precor"
	"github.com/scottmsilver/precor-9.3x/pkg/session"

	tea "github.com/charmbracelet/bubbletea"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Full-screen live view of bus traffic and treadmill state",
	Long: `Watch the bus in a terminal UI.

The top panel tracks the latest value of every key/value pair (speed,
incline, motor amps, error code, belt and lift telemetry); the bottom
panel is a scrolling log of decoded frames and pairs. Both lines are
watched when GPIO mode is active; a serial adapter watches one.

Keys: arrow/PgUp/PgDn scroll the log, q quits.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	events := make(chan session.Event, 256)
	var readers []*session.ChannelReader

	if useGPIO() {
		b, err := openBus(true, true)
		if err != nil {
			return err
		}
		defer b.Close()
		readers = append(readers,
			session.NewChannelReader(session.ReaderConfig{
				Name: "console", Direction: precor.ConsoleToMotor, Source: b.console,
			}, events),
			session.NewChannelReader(session.ReaderConfig{
				Name: "motor", Direction: precor.MotorToConsole, Source: b.motor,
			}, events))
	} else {
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return err
		}
		defer conn.Close()
		readers = append(readers, session.NewChannelReader(session.ReaderConfig{
			Name: "serial", Direction: precor.ConsoleToMotor, Source: conn,
		}, events))
	}

	wg, errs := startReaders(ctx, stop, readers...)

	m := initialMonitorModel(connectionInfo())
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Pump decoded events into the TUI. A reader's terminal error is
	// forwarded too, so the view shuts down instead of sitting frozen.
	go func() {
		for {
			select {
			case <-ctx.Done():
				if err := firstError(errs); err != nil {
					p.Send(readerErrMsg{err})
				}
				return
			case err := <-errs:
				p.Send(readerErrMsg{err})
			case ev := <-events:
				p.Send(busEventMsg{ev})
			}
		}
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	stop()
	wg.Wait()
	if fm, ok := final.(monitorModel); ok && fm.readerErr != nil {
		return fm.readerErr
	}
	return nil
}
