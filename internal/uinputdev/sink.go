package uinputdev

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
)

// Sink is a created virtual-input device's fd, wrapped as a sink of
// InputEvents (Write/Flush) and a source of them (Read) — the device is
// bidirectional because LED/force-feedback state is echoed back by the
// kernel on the same fd.
type Sink struct {
	file *os.File
	path string

	mu  sync.Mutex
	buf []byte
}

// Path returns the created device's /dev/input/eventN node, or "" if path
// discovery failed at Create time.
func (s *Sink) Path() string {
	return s.path
}

// Write buffers e's wire form and attempts to flush immediately. A partial
// write (the fd is non-blocking) leaves the remainder buffered for the next
// Write or an explicit Flush.
func (s *Sink) Write(e inputevent.InputEvent) error {
	wire := e.MarshalWire()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, wire[:]...)
	return s.flushLocked()
}

// Flush writes out any buffered bytes, blocking the caller's goroutine only
// as long as the fd stays writable.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Sink) flushLocked() error {
	for len(s.buf) > 0 {
		n, err := s.file.Write(s.buf)
		if n == 0 && err == nil {
			return errors.New("uinputdev: write returned zero bytes with no error")
		}
		s.buf = s.buf[n:]
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) || isWouldBlock(err) {
				return nil // fd not currently writable; retry on next Write/Flush
			}
			return fmt.Errorf("uinputdev: write: %w", err)
		}
	}
	return nil
}

// Read blocks until one InputEvent has been decoded from the device's fd
// (keyboard LED state echoed back by the kernel, or force-feedback uploads
// in a fuller implementation).
func (s *Sink) Read() (inputevent.InputEvent, error) {
	buf := make([]byte, inputevent.WireEventSize)
	if _, err := readFull(s.file, buf); err != nil {
		return inputevent.InputEvent{}, err
	}
	return inputevent.UnmarshalWire(buf), nil
}

// Close flushes any buffered writes then closes the underlying fd.
func (s *Sink) Close() error {
	if err := s.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	fd := int32(f.Fd())
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		if n == 0 && isWouldBlock(err) {
			if perr := waitReadable(fd); perr != nil {
				return total, perr
			}
			continue
		}
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func waitReadable(fd int32) error {
	fds := []unix.PollFd{{Fd: fd, Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if n > 0 {
			return nil
		}
	}
}
