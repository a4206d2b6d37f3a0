// Package evdevgrab implements the Evdev Grabber: opens one or more kernel
// input devices, optionally claims them exclusively, merges their event
// streams, applies an Event Filter, and forwards events to a downstream
// sink.
package evdevgrab

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
	"github.com/arcnmx/screenstub-go/internal/uinputdev"
)

const pollInfinite = -1

// InputID mirrors the kernel's struct input_id.
type InputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// Device is one opened, non-blocking kernel input device node.
type Device struct {
	file *os.File
	path string
}

// Open opens path non-blocking for capability queries, grabbing, and event
// reads.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Device{file: f, path: path}, nil
}

// Path returns the device node path this Device was opened from.
func (d *Device) Path() string { return d.path }

// ID queries the device's kernel input_id tuple.
func (d *Device) ID() (InputID, error) {
	var id InputID
	fd := d.file.Fd()
	if err := ioctlPtr(fd, evIOCGID, unsafe.Pointer(&id)); err != nil {
		return InputID{}, fmt.Errorf("EVIOCGID: %w", err)
	}
	return id, nil
}

// Grab claims or releases exclusive access to the device via the kernel's
// EVIOCGRAB ioctl.
func (d *Device) Grab(grab bool) error {
	v := 0
	if grab {
		v = 1
	}
	if err := ioctlInt(d.file.Fd(), evIOCGRAB, v); err != nil {
		return fmt.Errorf("EVIOCGRAB(%v) on %s: %w", grab, d.path, err)
	}
	return nil
}

// ReadEvent blocks until one kernel input_event has been read from the
// device. The fd is opened non-blocking (so ioctls never stall on pending
// data); ReadEvent waits for readability itself via poll(2) between reads.
func (d *Device) ReadEvent() (inputevent.InputEvent, error) {
	buf := make([]byte, inputevent.WireEventSize)
	total := 0
	fd := int32(d.file.Fd())
	for total < len(buf) {
		n, err := d.file.Read(buf[total:])
		if n == 0 && isWouldBlock(err) {
			if perr := waitReadable(fd); perr != nil {
				return inputevent.InputEvent{}, perr
			}
			continue
		}
		total += n
		if err != nil {
			return inputevent.InputEvent{}, err
		}
	}
	return inputevent.UnmarshalWire(buf), nil
}

func waitReadable(fd int32) error {
	fds := []unix.PollFd{{Fd: fd, Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, pollInfinite)
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

// Close releases the device fd.
func (d *Device) Close() error {
	return d.file.Close()
}

// Capabilities queries every bitmask ioctl and returns the result as a
// uinputdev.DeviceCapabilities, ready to mirror onto a virtual device via
// Builder.FromEvdev.
func (d *Device) Capabilities() (uinputdev.DeviceCapabilities, error) {
	fd := d.file.Fd()

	evBits, err := readBits(fd, evIOCGBIT(0, evBitsLen), evBitsLen)
	if err != nil {
		return uinputdev.DeviceCapabilities{}, fmt.Errorf("event_bits: %w", err)
	}

	var caps uinputdev.DeviceCapabilities
	caps.EventBits = setBits(evBits)

	if hasType(evBits, inputevent.EvKey) {
		bits, err := readBits(fd, evIOCGBIT(inputevent.EvKey, keyBitsLen), keyBitsLen)
		if err != nil {
			return uinputdev.DeviceCapabilities{}, fmt.Errorf("key_bits: %w", err)
		}
		caps.KeyBits = setBits(bits)
	}

	if hasType(evBits, inputevent.EvRel) {
		bits, err := readBits(fd, evIOCGBIT(inputevent.EvRel, relBitsLen), relBitsLen)
		if err != nil {
			return uinputdev.DeviceCapabilities{}, fmt.Errorf("rel_bits: %w", err)
		}
		caps.RelBits = setBits(bits)
	}

	if hasType(evBits, inputevent.EvAbs) {
		bits, err := readBits(fd, evIOCGBIT(inputevent.EvAbs, absBitsLen), absBitsLen)
		if err != nil {
			return uinputdev.DeviceCapabilities{}, fmt.Errorf("abs_bits: %w", err)
		}
		caps.AbsBits = setBits(bits)
		caps.AbsInfo = make(map[uint16]uinputdev.AbsInfo, len(caps.AbsBits))
		for _, axis := range caps.AbsBits {
			var info uinputdev.AbsInfo
			if err := ioctlPtr(fd, evIOCGABS(axis), unsafe.Pointer(&info)); err != nil {
				return uinputdev.DeviceCapabilities{}, fmt.Errorf("abs_info axis %#x: %w", axis, err)
			}
			caps.AbsInfo[axis] = info
		}
	}

	if hasType(evBits, inputevent.EvMsc) {
		bits, err := readBits(fd, evIOCGBIT(inputevent.EvMsc, mscBitsLen), mscBitsLen)
		if err != nil {
			return uinputdev.DeviceCapabilities{}, fmt.Errorf("misc_bits: %w", err)
		}
		caps.MiscBits = setBits(bits)
	}

	if hasType(evBits, inputevent.EvLed) {
		bits, err := readBits(fd, evIOCGBIT(inputevent.EvLed, ledBitsLen), ledBitsLen)
		if err != nil {
			return uinputdev.DeviceCapabilities{}, fmt.Errorf("led_bits: %w", err)
		}
		caps.LedBits = setBits(bits)
	}

	if hasType(evBits, inputevent.EvSnd) {
		bits, err := readBits(fd, evIOCGBIT(inputevent.EvSnd, sndBitsLen), sndBitsLen)
		if err != nil {
			return uinputdev.DeviceCapabilities{}, fmt.Errorf("sound_bits: %w", err)
		}
		caps.SoundBits = setBits(bits)
	}

	if hasType(evBits, inputevent.EvSw) {
		bits, err := readBits(fd, evIOCGBIT(inputevent.EvSw, swBitsLen), swBitsLen)
		if err != nil {
			return uinputdev.DeviceCapabilities{}, fmt.Errorf("switch_bits: %w", err)
		}
		caps.SwitchBits = setBits(bits)
	}

	propBits, err := readBits(fd, evIOCGPROP(propBitsLen), propBitsLen)
	if err != nil {
		return uinputdev.DeviceCapabilities{}, fmt.Errorf("props: %w", err)
	}
	caps.Props = setBits(propBits)

	return caps, nil
}

func readBits(fd uintptr, req uintptr, bufLen int) ([]byte, error) {
	buf := make([]byte, bufLen)
	if err := ioctlPtr(fd, req, unsafe.Pointer(&buf[0])); err != nil {
		return nil, err
	}
	return buf, nil
}

// hasType reports whether bit ev is set in an EV_* bitmask buffer.
func hasType(buf []byte, ev uint16) bool {
	idx := int(ev) / 8
	if idx >= len(buf) {
		return false
	}
	return buf[idx]&(1<<(uint(ev)%8)) != 0
}

// setBits returns the sorted positions of every set bit in buf.
func setBits(buf []byte) []uint16 {
	var codes []uint16
	for i, b := range buf {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				codes = append(codes, uint16(i*8+bit))
			}
		}
	}
	return codes
}
