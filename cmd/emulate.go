// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/scottmsilver/precor-9.3x/pkg/gpio"
	"github.com/scottmsilver/precor-9.3x/pkg/precor"
	"github.com/scottmsilver/precor-9.3x/pkg/session"
	"github.com/scottmsilver/precor-9.3x/pkg/softuart"
)

var (
	emulateBinary  bool
	emulateSpeed   float64
	emulateIncline float64
	emulateDryRun  bool
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Replace the console and drive the motor controller",
	Long: `Transmit the console's command cycle on the console-side line, taking
the real console's place. Speed and incline are adjusted live from the
keyboard.

By default the bracketed key/value protocol is used (the one the 9.3x
lift board speaks). --binary sends the older fixed-frame protocol instead.

Keys:
  + / =     speed up 0.1 mph        i   incline up 0.5%%
  - / _     speed down 0.1 mph      k   incline down 0.5%%
  1-9       preset speed (mph)      0   belt stop
  s         emergency stop          q   quit (stops the belt first)

--dry-run transmits into a mock GPIO port and just logs the cycle, which
is how to sanity-check timing away from the treadmill.`,
	RunE: runEmulate,
}

func init() {
	rootCmd.AddCommand(emulateCmd)
	emulateCmd.Flags().BoolVar(&emulateBinary, "binary", false, "Send the binary frame protocol instead of key/value")
	emulateCmd.Flags().Float64Var(&emulateSpeed, "speed", 0, "Initial speed in mph")
	emulateCmd.Flags().Float64Var(&emulateIncline, "incline", 0, "Initial incline in percent")
	emulateCmd.Flags().BoolVar(&emulateDryRun, "dry-run", false, "Use a mock GPIO port and log instead of transmitting")
}

func runEmulate(cmd *cobra.Command, args []string) error {
	var port gpio.Port
	pins, err := gpio.LoadPins(pinsFile)
	if err != nil {
		return err
	}
	if emulateDryRun {
		port = gpio.NewMockPort()
	} else {
		addr := pigpioAddr
		if addr == "" {
			addr = gpio.DefaultDaemonAddr
		}
		daemon, err := gpio.Dial(addr)
		if err != nil {
			return fmt.Errorf("pigpio daemon at %s: %w", addr, err)
		}
		port = daemon
	}
	defer port.Close()

	pin, err := pins.GPIO("console_write")
	if err != nil {
		return err
	}
	tx, err := softuart.NewTransmitter(port, pin, baudRate)
	if err != nil {
		return fmt.Errorf("open transmitter on GPIO %d: %w", pin, err)
	}
	defer tx.Release()

	emu := session.NewEmulator(tx)
	emu.SetSpeed(emulateSpeed)
	emu.SetIncline(emulateIncline)
	if emulateDryRun {
		emu.OnSent = func(label string, data []byte) {
			log.Printf("tx %-12s % X", label, data)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := "key/value"
	if emulateBinary {
		mode = "binary"
	}
	fmt.Printf("precor - console emulator (%s protocol)\n", mode)
	if emulateDryRun {
		fmt.Printf("Dry run: transmitting into a mock port\n")
	} else {
		fmt.Printf("Transmitting on GPIO %d via %s\n", pin, connectionInfo())
	}
	fmt.Printf("Press q to quit\n\n")

	go keyLoop(ctx, stop, emu)

	if emulateBinary {
		return emu.RunBinary(ctx)
	}
	return emu.RunKV(ctx)
}

// keyLoop reads single keystrokes in raw mode and applies them to the
// emulator state. It owns the status line.
func keyLoop(ctx context.Context, stop func(), emu *session.Emulator) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// No terminal (piped stdin, CI): run headless with the initial
		// targets until interrupted.
		log.Printf("no raw terminal (%v), keyboard control disabled", err)
		<-ctx.Done()
		return
	}
	defer term.Restore(fd, oldState)

	printStatus(emu)
	buf := make([]byte, 1)
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stdin.Read(buf); err != nil {
			return
		}
		switch c := buf[0]; c {
		case 'q', 3: // q or Ctrl+C
			emu.Stop()
			stop()
			return
		case 's':
			emu.Stop()
		case '+', '=':
			emu.AdjustSpeed(0.1)
		case '-', '_':
			emu.AdjustSpeed(-0.1)
		case 'i':
			emu.AdjustIncline(0.5)
		case 'k':
			emu.AdjustIncline(-0.5)
		case '0':
			emu.SetSpeed(0)
		default:
			if c >= '1' && c <= '9' {
				emu.SetSpeed(float64(c - '0'))
			}
		}
		printStatus(emu)
	}
}

func printStatus(emu *session.Emulator) {
	s := emu.Snapshot()
	fmt.Printf("\rspeed %4.1f mph (hmph %s)   incline %4.1f%%   ",
		s.SpeedMph, precor.SpeedHex(s.SpeedMph), s.InclinePct)
}
