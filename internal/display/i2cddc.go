package display

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Linux i2c-dev and DDC/CI wire constants. DDC/CI addresses the display at
// 7-bit address 0x37 and identifies the host as 0x51 in the payload; EDID
// lives at the well-known 0x50 address on the same bus.
const (
	i2cSlaveIoctl     = 0x0703 // I2C_SLAVE
	ddcHostAddress    = 0x51
	ddcDisplayAddress = 0x37
	edidAddress       = 0x50
	ddcSettleDelay    = 40 * time.Millisecond
)

// I2CMonitor is a DDC/CI-capable display reached over /dev/i2c-N.
type I2CMonitor struct {
	path string
	info DisplayInfo

	mu      sync.Mutex
	sources []byte
}

// EnumerateI2C probes every /dev/i2c-* bus for a display with a readable
// EDID, matching the original's DdcMonitor::enumerate for the ddc-hi/i2c
// backend.
func EnumerateI2C() ([]*I2CMonitor, error) {
	buses, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil, fmt.Errorf("glob i2c buses: %w", err)
	}

	var monitors []*I2CMonitor
	for _, path := range buses {
		mon, err := openI2CMonitor(path)
		if err != nil {
			continue // not every i2c bus has a DDC-capable display attached
		}
		monitors = append(monitors, mon)
	}
	return monitors, nil
}

func openI2CMonitor(path string) (*I2CMonitor, error) {
	edid, err := readEDID(path)
	if err != nil {
		return nil, err
	}
	info := parseEDID(edid)
	info.BackendID = path
	return &I2CMonitor{path: path, info: info}, nil
}

func (m *I2CMonitor) String() string {
	return fmt.Sprintf("%s (%s %s)", m.path, m.info.Manufacturer, m.info.Model)
}

// Matches reports whether search matches this monitor's EDID-derived info.
func (m *I2CMonitor) Matches(search DdcSearch) bool {
	return search.Matches(m.info)
}

// Sources returns the VCP 0x60 capability's value list, querying and
// caching it on first call.
func (m *I2CMonitor) Sources() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sources) > 0 {
		return m.sources, nil
	}
	caps, err := m.readCapabilities()
	if err != nil {
		return nil, err
	}
	m.sources = parseCapabilitySources(caps, FeatureCodeInput)
	return m.sources, nil
}

// GetSource reads the monitor's current VCP 0x60 value.
func (m *I2CMonitor) GetSource() (byte, error) {
	return m.getVCPFeature(FeatureCodeInput)
}

// SetSource writes value to VCP 0x60.
func (m *I2CMonitor) SetSource(value byte) error {
	return m.setVCPFeature(FeatureCodeInput, value)
}

func withBus(path string, addr uint16, fn func(f *os.File) error) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := ioctlSetSlave(f.Fd(), addr); err != nil {
		return err
	}
	return fn(f)
}

func ioctlSetSlave(fd uintptr, addr uint16) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, i2cSlaveIoctl, uintptr(addr))
	if errno != 0 {
		return fmt.Errorf("I2C_SLAVE: %w", errno)
	}
	return nil
}

func readEDID(path string) ([]byte, error) {
	var edid []byte
	err := withBus(path, edidAddress, func(f *os.File) error {
		if _, err := f.Write([]byte{0}); err != nil {
			return fmt.Errorf("edid seek: %w", err)
		}
		buf := make([]byte, 128)
		if _, err := f.Read(buf); err != nil {
			return fmt.Errorf("edid read: %w", err)
		}
		if buf[0] != 0x00 || buf[1] != 0xFF || buf[7] != 0x00 {
			return errors.New("no EDID header on bus")
		}
		edid = buf
		return nil
	})
	return edid, err
}

// parseEDID pulls manufacturer id, serial, and (from the descriptor blocks)
// model name / serial string out of a 128-byte EDID, per VESA E-EDID 1.4.
func parseEDID(edid []byte) DisplayInfo {
	var info DisplayInfo
	if len(edid) < 20 {
		return info
	}

	info.Manufacturer = edidManufacturer(edid[8], edid[9])
	info.Serial = strconv.FormatUint(uint64(binary.LittleEndian.Uint32(edid[12:16])), 10)

	for block := 0; block < 4; block++ {
		off := 54 + block*18
		if off+18 > len(edid) {
			break
		}
		d := edid[off : off+18]
		if d[0] != 0 || d[1] != 0 || d[2] != 0 {
			continue // a detailed timing descriptor, not a text descriptor
		}
		switch d[3] {
		case 0xFC:
			info.Model = trimDescriptorText(d[5:18])
		case 0xFF:
			info.Serial = trimDescriptorText(d[5:18])
		}
	}
	return info
}

func edidManufacturer(b1, b2 byte) string {
	v := uint16(b1)<<8 | uint16(b2)
	c1 := byte((v>>10)&0x1F) + 'A' - 1
	c2 := byte((v>>5)&0x1F) + 'A' - 1
	c3 := byte(v&0x1F) + 'A' - 1
	return string([]byte{c1, c2, c3})
}

func trimDescriptorText(b []byte) string {
	s := string(b)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimRight(s, " \n")
}

// ddcWrite sends one DDC/CI command frame: [source, len|0x80, payload...,
// checksum], checksum being the XOR of the write address plus every frame
// byte.
func ddcWrite(f *os.File, payload []byte) error {
	const writeAddr = byte(ddcDisplayAddress << 1)

	frame := make([]byte, 0, len(payload)+3)
	frame = append(frame, ddcHostAddress, byte(0x80|len(payload)))
	frame = append(frame, payload...)

	checksum := writeAddr
	for _, b := range frame {
		checksum ^= b
	}
	frame = append(frame, checksum)

	if _, err := f.Write(frame); err != nil {
		return fmt.Errorf("ddc write: %w", err)
	}
	return nil
}

func ddcRead(f *os.File, maxLen int) ([]byte, error) {
	buf := make([]byte, maxLen)
	n, err := f.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("ddc read: %w", err)
	}
	return buf[:n], nil
}

func (m *I2CMonitor) getVCPFeature(code byte) (byte, error) {
	var value byte
	err := withBus(m.path, ddcDisplayAddress, func(f *os.File) error {
		if err := ddcWrite(f, []byte{0x01, code}); err != nil {
			return err
		}
		time.Sleep(ddcSettleDelay)

		reply, err := ddcRead(f, 12)
		if err != nil {
			return err
		}
		if len(reply) < 10 || reply[2] != 0x02 {
			return fmt.Errorf("unexpected VCP get reply for feature %#x", code)
		}
		value = reply[9]
		return nil
	})
	return value, err
}

func (m *I2CMonitor) setVCPFeature(code, value byte) error {
	return withBus(m.path, ddcDisplayAddress, func(f *os.File) error {
		if err := ddcWrite(f, []byte{0x03, code, 0x00, value}); err != nil {
			return err
		}
		time.Sleep(ddcSettleDelay)
		return nil
	})
}

// readCapabilities fetches the monitor's capabilities string in fragments
// (opcode 0xF3), concatenating until the monitor returns an empty fragment.
func (m *I2CMonitor) readCapabilities() (string, error) {
	var caps []byte
	err := withBus(m.path, ddcDisplayAddress, func(f *os.File) error {
		offset := 0
		for {
			req := []byte{0xF3, byte(offset >> 8), byte(offset)}
			if err := ddcWrite(f, req); err != nil {
				return err
			}
			time.Sleep(ddcSettleDelay)

			reply, err := ddcRead(f, 40)
			if err != nil {
				return err
			}
			if len(reply) < 4 {
				break
			}
			fragLen := int(reply[1]&0x7F) - 3
			if fragLen <= 0 || 4+fragLen > len(reply) {
				break
			}
			caps = append(caps, reply[4:4+fragLen]...)
			offset += fragLen
		}
		return nil
	})
	return string(caps), err
}

// parseCapabilitySources extracts the parenthesized value list under the
// given feature code from a capabilities string shaped like
// "...(60(01 03 11 12))...".
func parseCapabilitySources(caps string, feature byte) []byte {
	marker := fmt.Sprintf("%02x(", feature)
	idx := strings.Index(strings.ToLower(caps), marker)
	if idx < 0 {
		return nil
	}
	rest := caps[idx+len(marker):]
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return nil
	}

	fields := strings.Fields(rest[:end])
	sources := make([]byte, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseUint(field, 16, 8)
		if err != nil {
			continue
		}
		sources = append(sources, byte(v))
	}
	return sources
}
