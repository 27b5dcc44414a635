// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"sync"

	"github.com/scottmsilver/precor-9.3x/pkg/session"
)

// startReaders runs each channel reader in its own goroutine. A reader's
// terminal error lands on the returned channel and cancels the command
// through stop, so a dead line ends the command instead of freezing it.
func startReaders(ctx context.Context, stop context.CancelFunc, readers ...*session.ChannelReader) (*sync.WaitGroup, <-chan error) {
	var wg sync.WaitGroup
	errs := make(chan error, len(readers))
	for _, r := range readers {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				errs <- err
				stop()
			}
		}()
	}
	return &wg, errs
}

// firstError drains the head of a reader error channel, if any.
func firstError(errs <-chan error) error {
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}
