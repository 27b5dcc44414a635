// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scottmsilver/precor-9.3x/pkg/session"
	"github.com/scottmsilver/precor-9.3x/pkg/softuart"
)

var proxyStatsInterval int

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Relay traffic between the console and motor controller",
	Long: `Sit between the real console and the real motor controller, forwarding
each side's bytes onto the other side's line unchanged.

This is the man-in-the-middle setup: the treadmill keeps working while
every byte crosses this process, which is where selective modification
experiments start. Each direction gets its own transmitter pin, but the
wave hardware is shared, so the two relays transmit one at a time.

Requires GPIO mode; a single serial adapter cannot drive both lines.`,
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.Flags().IntVar(&proxyStatsInterval, "stats-interval", 10, "Statistics print interval (seconds)")
}

func runProxy(cmd *cobra.Command, args []string) error {
	if !useGPIO() {
		return fmt.Errorf("proxy requires GPIO mode (--pigpio), not a serial port")
	}

	b, err := openBus(true, true)
	if err != nil {
		return err
	}
	defer b.Close()

	toMotorPin, err := b.pins.GPIO("motor_write")
	if err != nil {
		return err
	}
	toConsolePin, err := b.pins.GPIO("console_write")
	if err != nil {
		return err
	}
	toMotor, err := softuart.NewTransmitter(b.port, toMotorPin, baudRate)
	if err != nil {
		return fmt.Errorf("open motor-side transmitter: %w", err)
	}
	defer toMotor.Release()
	toConsole, err := softuart.NewTransmitter(b.port, toConsolePin, baudRate)
	if err != nil {
		return fmt.Errorf("open console-side transmitter: %w", err)
	}
	defer toConsole.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consoleSide := session.NewProxy("console", b.console, toMotor)
	motorSide := session.NewProxy("motor", b.motor, toConsole)

	fmt.Printf("precor - bus proxy\n")
	fmt.Printf("Connection: %s\n", connectionInfo())
	fmt.Printf("console line -> GPIO %d, motor line -> GPIO %d\n", toMotorPin, toConsolePin)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, p := range []*session.Proxy{consoleSide, motorSide} {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Run(ctx); err != nil {
				errs <- err
				stop()
			}
		}()
	}

	ticker := time.NewTicker(time.Duration(proxyStatsInterval) * time.Second)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			for _, p := range []*session.Proxy{consoleSide, motorSide} {
				s := p.Stats()
				fmt.Printf("[stats] %-8s %d bytes in %d chunks, %d send errors\n",
					s.Name, s.BytesIn, s.Chunks, s.SendErrs)
			}
		}
	}

	wg.Wait()
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}
