// Package inputevent models the Linux kernel's struct input_event wire format
// and the small set of enumerations (key codes, event kinds, axes) the rest of
// the engine dispatches on.
package inputevent

import (
	"encoding/binary"
	"time"
)

// Kind is one of the eight coarse input event kinds the engine reasons about.
// It is distinct from the kernel's raw EV_* type: Key and Button share the
// kernel's EV_KEY but are split here because hotkeys, remapping, and the
// event filter all treat keyboard keys and mouse buttons differently.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindKey
	KindButton
	KindRelative
	KindAbsolute
	KindMisc
	KindSwitch
	KindLed
	KindSound
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindButton:
		return "button"
	case KindRelative:
		return "relative"
	case KindAbsolute:
		return "absolute"
	case KindMisc:
		return "misc"
	case KindSwitch:
		return "switch"
	case KindLed:
		return "led"
	case KindSound:
		return "sound"
	default:
		return "unknown"
	}
}

// Raw kernel event types (linux/input-event-codes.h).
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvRel uint16 = 0x02
	EvAbs uint16 = 0x03
	EvMsc uint16 = 0x04
	EvSw  uint16 = 0x05
	EvLed uint16 = 0x11
	EvSnd uint16 = 0x12
)

// SynReport is the code of a synchronization event terminating a logical batch.
const SynReport uint16 = 0

// KeyState is the value field of a key/button event.
type KeyState int32

const (
	KeyReleased KeyState = 0
	KeyPressed  KeyState = 1
	KeyRepeat   KeyState = 2
)

// Key is a Linux key or button code (BTN_* / KEY_*).
type Key uint16

// A minimal but representative slice of the kernel's keycode space; enough to
// drive hotkeys, remapping, and wire translation without vendoring the full
// input-event-codes.h table (the keymap package owns the full symbolic table
// used for CSV-driven lookups).
const (
	KeyReserved Key = 0
	KeyEsc      Key = 1
	Key1        Key = 2
	KeyQ        Key = 16
	KeyA        Key = 30
	KeyS        Key = 31
	KeyZ        Key = 44
	KeyLeftCtrl Key = 29
	KeyLeftShift Key = 42
	KeyLeftAlt  Key = 56
	KeySpace    Key = 57
	KeyRightCtrl Key = 97
	KeyRightAlt Key = 100
	KeyLeftMeta Key = 125
	KeyRightMeta Key = 126

	ButtonLeft    Key = 0x110
	ButtonRight   Key = 0x111
	ButtonMiddle  Key = 0x112
	ButtonSide    Key = 0x113
	ButtonExtra   Key = 0x114
	ButtonForward Key = 0x115
	ButtonBack    Key = 0x116
	ButtonWheel   Key = 0x150
	ButtonGearUp  Key = 0x151
)

// IsButton reports whether k is in the BTN_* numeric range (kernel convention:
// codes >= 0x100 that fall in the mouse/joystick button blocks).
func (k Key) IsButton() bool {
	return k >= 0x100 && k < 0x160
}

// IsKey reports whether k is a keyboard key rather than a button.
func (k Key) IsKey() bool {
	return !k.IsButton()
}

// RelativeAxis identifies an EV_REL axis.
type RelativeAxis uint16

const (
	RelX      RelativeAxis = 0x00
	RelY      RelativeAxis = 0x01
	RelWheel  RelativeAxis = 0x08
	RelHWheel RelativeAxis = 0x06
)

// AbsoluteAxis identifies an EV_ABS axis.
type AbsoluteAxis uint16

const (
	AbsX AbsoluteAxis = 0x00
	AbsY AbsoluteAxis = 0x01
)

// InputEvent is the engine's in-memory representation of a single kernel
// input event: { time, kind, code, value }, opaque but round-trippable to the
// host kernel's struct input_event wire form.
type InputEvent struct {
	Time  time.Time
	Type  uint16 // raw EV_* kernel type, preserved across remap/filter
	Code  uint16
	Value int32
}

// Sync builds a synchronization event (EV_SYN / SYN_REPORT).
func Sync() InputEvent {
	return InputEvent{Time: time.Now(), Type: EvSyn, Code: SynReport}
}

// NewKey builds a key/button event of the given kernel EV_KEY code.
func NewKey(key Key, state KeyState) InputEvent {
	return InputEvent{Time: time.Now(), Type: EvKey, Code: uint16(key), Value: int32(state)}
}

// Kind classifies e into one of the eight coarse kinds used by the filter,
// hotkey matcher, and config surface. Unknown/unrecognized kernel types map
// to KindUnknown so callers can special-case "pass through, never drop".
func (e InputEvent) Kind() Kind {
	switch e.Type {
	case EvKey:
		if Key(e.Code).IsButton() {
			return KindButton
		}
		return KindKey
	case EvRel:
		return KindRelative
	case EvAbs:
		return KindAbsolute
	case EvMsc:
		return KindMisc
	case EvSw:
		return KindSwitch
	case EvLed:
		return KindLed
	case EvSnd:
		return KindSound
	default:
		return KindUnknown
	}
}

// Key returns the event's key code and state; only meaningful when
// Kind() is KindKey or KindButton.
func (e InputEvent) Key() (Key, KeyState) {
	return Key(e.Code), KeyState(e.Value)
}

// wireEventSize is the byte size of struct input_event on a 64-bit host:
// two 8-byte timeval fields (tv_sec, tv_usec as long), uint16 type, uint16
// code, int32 value. 32-bit hosts use 4-byte tv_sec/tv_usec (16 bytes total);
// this engine only targets 64-bit hosts, matching the spec's "16/24 bytes
// depending on word size" note (24 bytes is the 64-bit struct timeval form).
const wireEventSize = 24

// MarshalWire encodes e into the kernel's struct input_event byte layout.
func (e InputEvent) MarshalWire() [wireEventSize]byte {
	var buf [wireEventSize]byte
	sec := e.Time.Unix()
	usec := int64(e.Time.Nanosecond() / 1000)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(sec))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(usec))
	binary.LittleEndian.PutUint16(buf[16:18], e.Type)
	binary.LittleEndian.PutUint16(buf[18:20], e.Code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(e.Value))
	return buf
}

// UnmarshalWire decodes a struct input_event from its kernel byte layout.
func UnmarshalWire(buf []byte) InputEvent {
	sec := int64(binary.LittleEndian.Uint64(buf[0:8]))
	usec := int64(binary.LittleEndian.Uint64(buf[8:16]))
	return InputEvent{
		Time:  time.Unix(sec, usec*1000),
		Type:  binary.LittleEndian.Uint16(buf[16:18]),
		Code:  binary.LittleEndian.Uint16(buf[18:20]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}
}

// WireEventSize is exported for callers sizing read buffers.
const WireEventSize = wireEventSize
