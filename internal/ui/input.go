package ui

import (
	"context"
	"errors"
	"io"

	"preval/pkg/evaltypes"

	"golang.org/x/sync/errgroup"
)

const (
	keyCtrlC = 0x03
	keyCtrlL = 0x0c
)

var errInputClosed = errors.New("input closed")

// KeyAction maps one raw-mode key byte to a UI action.
func KeyAction(b byte) (evaltypes.UIAction, bool) {
	switch b {
	case 'q', 'Q', keyCtrlC:
		return evaltypes.Quit(), true
	case ' ':
		return evaltypes.TogglePause(), true
	case keyCtrlL:
		return evaltypes.Refresh(), true
	default:
		return evaltypes.UIAction{}, false
	}
}

// InputReader decodes keystrokes and terminal resizes into UI actions.
type InputReader struct {
	in      io.Reader
	sizeFd  int
	actions chan evaltypes.UIAction
}

// NewInputReader reads keys from in and, when sizeFd is a terminal, watches
// it for resizes. capacity bounds the action channel.
func NewInputReader(in io.Reader, sizeFd int, capacity int) *InputReader {
	if capacity <= 0 {
		capacity = 1
	}
	return &InputReader{
		in:      in,
		sizeFd:  sizeFd,
		actions: make(chan evaltypes.UIAction, capacity),
	}
}

// Actions returns the action channel. It is closed once Start's producers
// have all stopped.
func (r *InputReader) Actions() <-chan evaltypes.UIAction {
	return r.actions
}

// Start launches the key reader and resize watcher. End of input stops both
// and closes the action channel; so does cancelling ctx, although a read
// already blocked on the terminal only returns with the next key.
func (r *InputReader) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.readKeys(gctx) })
	g.Go(func() error { return watchResize(gctx, r.sizeFd, r.send) })
	go func() {
		_ = g.Wait()
		close(r.actions)
	}()
}

func (r *InputReader) readKeys(ctx context.Context) error {
	buf := make([]byte, 64)
	for {
		n, err := r.in.Read(buf)
		for _, b := range buf[:n] {
			action, ok := KeyAction(b)
			if !ok {
				continue
			}
			if !r.send(ctx, action) {
				return ctx.Err()
			}
		}
		if err != nil {
			return errInputClosed
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (r *InputReader) send(ctx context.Context, action evaltypes.UIAction) bool {
	select {
	case r.actions <- action:
		return true
	case <-ctx.Done():
		return false
	}
}
