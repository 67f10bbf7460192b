package ui

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ErrNotTerminal is returned when a full-screen session is requested on a
// non-terminal.
var ErrNotTerminal = errors.New("not a terminal")

// Session holds the terminal in raw mode on the alternate screen with the
// cursor hidden. Close restores it and is safe to defer on every path.
type Session struct {
	in       *os.File
	out      *os.File
	output   *termenv.Output
	rawState *term.State
	once     sync.Once
}

// OpenSession acquires the terminal formed by in and out.
func OpenSession(in, out *os.File) (*Session, error) {
	if !term.IsTerminal(int(in.Fd())) || !term.IsTerminal(int(out.Fd())) {
		return nil, ErrNotTerminal
	}

	rawState, err := term.MakeRaw(int(in.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to enable raw mode: %w", err)
	}

	s := &Session{
		in:       in,
		out:      out,
		output:   termenv.NewOutput(out),
		rawState: rawState,
	}
	s.output.AltScreen()
	s.output.HideCursor()
	s.output.ClearScreen()
	return s, nil
}

// Size returns the current terminal size.
func (s *Session) Size() (width, height int, err error) {
	return term.GetSize(int(s.out.Fd()))
}

// Fd returns the descriptor to watch for resizes.
func (s *Session) Fd() int {
	return int(s.out.Fd())
}

// ColorProfile returns the color profile of the session's output.
func (s *Session) ColorProfile() termenv.Profile {
	return s.output.ColorProfile()
}

// Close leaves the alternate screen, shows the cursor and restores the
// previous terminal mode.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		s.output.ShowCursor()
		s.output.ExitAltScreen()
		err = term.Restore(int(s.in.Fd()), s.rawState)
	})
	return err
}
