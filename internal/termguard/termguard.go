// Package termguard puts the controlling terminal into raw mode for the
// lifetime of a run and guarantees it is restored on exit, mirroring the
// host's own start/stop lifecycle.
package termguard

import (
	"fmt"
	"sync"

	"golang.org/x/term"
)

// Guard owns one file descriptor's raw-mode state.
type Guard struct {
	fd       int
	oldState *term.State
	mut      sync.Mutex
	armed    bool
}

// NewGuard switches fd into raw mode and returns a Guard that restores it.
// Calling NewGuard when fd is not a terminal (ENOTTY) is not an error: the
// guard simply becomes a no-op, which lets a single code path run the same
// whether stdin is a TTY, a pipe, or a redirected file.
func NewGuard(fd int) (*Guard, error) {
	g := &Guard{fd: fd}

	if !term.IsTerminal(fd) {
		return g, nil
	}

	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("termguard: enable raw mode: %w", err)
	}
	g.oldState = old
	g.armed = true
	return g, nil
}

// Restore returns fd to its prior mode. Safe to call multiple times and
// safe to call on a Guard that never armed.
func (g *Guard) Restore() error {
	g.mut.Lock()
	defer g.mut.Unlock()

	if !g.armed {
		return nil
	}
	g.armed = false
	if err := term.Restore(g.fd, g.oldState); err != nil {
		return fmt.Errorf("termguard: restore: %w", err)
	}
	return nil
}
