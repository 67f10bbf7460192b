//go:build !windows

package ui

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"preval/pkg/evaltypes"

	"golang.org/x/term"
)

// watchResize sends a Resize action with the new size of fd on every SIGWINCH.
func watchResize(ctx context.Context, fd int, send func(context.Context, evaltypes.UIAction) bool) error {
	if fd < 0 || !term.IsTerminal(fd) {
		<-ctx.Done()
		return nil
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGWINCH)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
			width, height, err := term.GetSize(fd)
			if err != nil {
				continue
			}
			if !send(ctx, evaltypes.Resize(width, height)) {
				return nil
			}
		}
	}
}
