package evdevgrab

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isWouldBlock reports whether err is the non-blocking-fd "try again" errno.
func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
