// Package bootstrap decides whether the index is rebuilt at startup and runs
// the load, encode and build pipeline when it is.
package bootstrap

import (
	"fmt"
	"strings"
)

// Mode selects the startup behaviour.
type Mode int

const (
	// ColdStart loads the data path and rebuilds the index before serving.
	ColdStart Mode = iota
	// WarmStart trusts whatever index is already in the store.
	WarmStart
)

func (m Mode) String() string {
	switch m {
	case ColdStart:
		return "cold"
	case WarmStart:
		return "warm"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ModeFromLoadFlag maps the --load flag to a mode.
func ModeFromLoadFlag(load bool) Mode {
	if load {
		return ColdStart
	}
	return WarmStart
}

// ParseMode accepts "cold" or "warm" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cold":
		return ColdStart, nil
	case "warm":
		return WarmStart, nil
	default:
		return 0, fmt.Errorf("unknown start mode %q (supported: cold, warm)", s)
	}
}
