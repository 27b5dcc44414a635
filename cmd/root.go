// SPDX-License-Identifier: MIT

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// GPIO connection flags
	pigpioAddr string
	pinsFile   string
)

var rootCmd = &cobra.Command{
	Use:   "precor",
	Short: "Precor 9.3x console/motor protocol workbench",
	Long: `precor - a workbench for the Precor 9.3x treadmill serial bus.

The console and the lift/motor controller talk over a half-duplex inverted
UART at 9600 baud. This tool decodes that traffic live, analyzes logic
analyzer captures offline, emulates the console to drive the motor
controller directly, and proxies between real hardware for man-in-the-middle
experiments.

Connection modes:
  Serial: --port /dev/ttyUSB0 [--baud 9600]
  GPIO:   --pigpio localhost:8888 [--pins pins.yaml]

GPIO mode bit-bangs the console and motor lines through a pigpio daemon,
which is what the inverted polarity and the shared waveform hardware
require.`,
	Version: "1.2.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate")

	// GPIO connection flags
	rootCmd.PersistentFlags().StringVar(&pigpioAddr, "pigpio", "", "pigpio daemon address (host:port)")
	rootCmd.PersistentFlags().StringVar(&pinsFile, "pins", "", "Pin map YAML file (defaults built in)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
