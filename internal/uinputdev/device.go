package uinputdev

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

const uinputPath = "/dev/uinput"

// Create opens /dev/uinput, registers every capability bit accumulated on
// the builder, creates the device, and returns the resulting Sink wrapping
// its fd plus the device's /dev/input/eventN path.
func (b *Builder) Create() (*Sink, error) {
	f, err := os.OpenFile(uinputPath, os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uinputPath, err)
	}

	fd := f.Fd()

	setBits := []struct {
		req  uintptr
		bits map[uint16]struct{}
	}{
		{uiSetEvBit, b.evBits},
		{uiSetKeyBit, b.keyBits},
		{uiSetRelBit, b.relBits},
		{uiSetAbsBit, b.absBits},
		{uiSetMscBit, b.mscBits},
		{uiSetLedBit, b.ledBits},
		{uiSetSndBit, b.sndBits},
		{uiSetSwBit, b.swBits},
		{uiSetPropBit, b.propBits},
	}
	for _, sb := range setBits {
		for bit := range sb.bits {
			if err := ioctlInt(fd, sb.req, int(bit)); err != nil {
				f.Close()
				return nil, fmt.Errorf("ioctl set bit %#x on req %#x: %w", bit, sb.req, err)
			}
		}
	}

	for code, info := range b.absInfo {
		setup := uinputAbsSetup{Code: code, AbsInfo: info}
		if err := ioctlPtr(fd, uiAbsSetup, unsafe.Pointer(&setup)); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_ABS_SETUP axis %#x: %w", code, err)
		}
	}

	setup := uinputSetup{ID: b.id}
	copy(setup.Name[:], b.name)
	if err := ioctlPtr(fd, uiDevSetup, unsafe.Pointer(&setup)); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_SETUP: %w", err)
	}

	if err := ioctl(fd, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}

	path, err := sysPath(fd)
	if err != nil {
		return &Sink{file: f}, fmt.Errorf("device created but path discovery failed: %w", err)
	}

	return &Sink{file: f, path: path}, nil
}

func sysPath(fd uintptr) (string, error) {
	buf := make([]byte, 64)
	if err := ioctlPtr(fd, uiGetSysname(len(buf)), unsafe.Pointer(&buf[0])); err != nil {
		return "", fmt.Errorf("UI_GET_SYSNAME: %w", err)
	}
	end := 0
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	sysname := string(buf[:end])

	matches, err := filepath.Glob(filepath.Join("/sys/devices/virtual/input", sysname, "event*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no event node found for %s", sysname)
	}
	return filepath.Join("/dev/input", filepath.Base(matches[0])), nil
}
