// SPDX-License-Identifier: MIT
//
// precor - Precor 9.3x treadmill serial protocol workbench
//
// Decodes, emulates, and proxies the console/motor-controller bus of a
// Precor 9.3x treadmill.

package main

import (
	"fmt"
	"os"

	"github.com/scottmsilver/precor-9.3x/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
