//go:build windows

package ui

import (
	"context"

	"preval/pkg/evaltypes"
)

// watchResize is a no-op on Windows, which has no SIGWINCH.
func watchResize(ctx context.Context, _ int, _ func(context.Context, evaltypes.UIAction) bool) error {
	<-ctx.Done()
	return nil
}
