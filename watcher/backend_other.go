//go:build !(darwin || dragonfly || freebsd || openbsd || netbsd || linux || solaris || windows)

package watcher

import (
	"errors"
	"time"
)

func newBackend(time.Duration) (Watcher, error) {
	return nil, errors.New("no watcher backend for this platform")
}
