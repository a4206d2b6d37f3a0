// Package keymap builds Linux-keycode lookup tables: one table per keycode
// mapping to the emulator's symbolic key name (QEMU's qcode), and a parallel
// table mapping to the legacy "xtkbd" numeric form QEMU's -k option and PS/2
// passthrough still expect. No other package in this module calls them; the
// remap and routing layers work on raw numeric keycodes.
package keymap

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

//go:embed keymaps.csv
var keymapsCSV embed.FS

// maxLinuxKeycode bounds the lookup tables at KEY_MAX from
// linux/input-event-codes.h (0x2ff), whatever the largest keycode in the CSV.
const maxLinuxKeycode = 0x2ff

// Unmapped is the symbolic name returned for a keycode with no known mapping.
const Unmapped = "unmapped"

var (
	qcodeTable [maxLinuxKeycode + 1]string
	xtkbdTable [maxLinuxKeycode + 1]uint8
)

func init() {
	f, err := keymapsCSV.Open("keymaps.csv")
	if err != nil {
		panic(fmt.Errorf("keymap: open embedded keymaps.csv: %w", err))
	}
	defer f.Close()

	for i := range qcodeTable {
		qcodeTable[i] = Unmapped
	}

	if err := load(f); err != nil {
		panic(fmt.Errorf("keymap: load keymaps.csv: %w", err))
	}
}

func load(r io.Reader) error {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return err
	}
	if len(header) < 4 {
		return fmt.Errorf("unexpected header %v", header)
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		code, err := strconv.Atoi(row[0])
		if err != nil {
			return fmt.Errorf("linux_keycode %q: %w", row[0], err)
		}
		if code < 0 || code > maxLinuxKeycode {
			return fmt.Errorf("linux_keycode %d out of range", code)
		}

		at1, err := strconv.Atoi(row[3])
		if err != nil {
			return fmt.Errorf("at_set1_keycode %q: %w", row[3], err)
		}

		qcodeTable[code] = row[2]
		xtkbdTable[code] = xtkbdEncode(at1)
	}
}

// xtkbdEncode reproduces the original's re-encoding of an AT Set 1 scancode
// (which may carry an E0 extended prefix represented as a value above 0x7f)
// down into the single byte xtkbd sends on the wire: truncate, then force the
// high bit so extended keys remain distinguishable from their unextended
// counterparts sharing the same low byte.
func xtkbdEncode(at1 int) uint8 {
	b := uint8(at1 & 0xff)
	if at1 > 0x7f {
		b |= 0x80
	}
	return b
}

// QCode returns the emulator's symbolic key name for a Linux keycode, or
// Unmapped if the code has no known mapping.
func QCode(linuxKeycode uint16) string {
	if int(linuxKeycode) > maxLinuxKeycode {
		return Unmapped
	}
	return qcodeTable[linuxKeycode]
}

// Xtkbd returns the legacy xtkbd numeric form of a Linux keycode, or 0 if the
// code has no known mapping.
func Xtkbd(linuxKeycode uint16) uint8 {
	if int(linuxKeycode) > maxLinuxKeycode {
		return 0
	}
	return xtkbdTable[linuxKeycode]
}
