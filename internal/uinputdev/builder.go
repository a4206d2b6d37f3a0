// Package uinputdev implements the Virtual-Input Sink: builds and owns a
// kernel virtual-input device from a capability descriptor and exposes the
// created device as both an event sink and source.
package uinputdev

import "github.com/arcnmx/screenstub-go/internal/inputevent"

const evRepeat uint16 = 0x14 // EV_REP, enabled only when autorepeat is requested

// Builder accumulates capability bits for a virtual device before Create
// opens /dev/uinput and registers them.
type Builder struct {
	name string
	id   inputID

	evBits   map[uint16]struct{}
	keyBits  map[uint16]struct{}
	relBits  map[uint16]struct{}
	absBits  map[uint16]struct{}
	absInfo  map[uint16]AbsInfo
	mscBits  map[uint16]struct{}
	ledBits  map[uint16]struct{}
	sndBits  map[uint16]struct{}
	swBits   map[uint16]struct{}
	propBits map[uint16]struct{}
}

// NewBuilder starts an empty capability set for a device with the given name
// and kernel input_id tuple.
func NewBuilder(name string, bustype, vendor, product, version uint16) *Builder {
	return &Builder{
		name: name,
		id:   inputID{Bustype: bustype, Vendor: vendor, Product: product, Version: version},

		evBits:   map[uint16]struct{}{},
		keyBits:  map[uint16]struct{}{},
		relBits:  map[uint16]struct{}{},
		absBits:  map[uint16]struct{}{},
		absInfo:  map[uint16]AbsInfo{},
		mscBits:  map[uint16]struct{}{},
		ledBits:  map[uint16]struct{}{},
		sndBits:  map[uint16]struct{}{},
		swBits:   map[uint16]struct{}{},
		propBits: map[uint16]struct{}{},
	}
}

// SetIdentity overrides the device name and kernel input_id tuple set at
// construction time — used when a grab requests a named pass-through device
// whose identity differs from the routing id QEMU was told to attach to.
func (b *Builder) SetIdentity(name string, bustype, vendor, product, version uint16) *Builder {
	b.name = name
	b.id = inputID{Bustype: bustype, Vendor: vendor, Product: product, Version: version}
	return b
}

func (b *Builder) enableEvent(ev uint16) { b.evBits[ev] = struct{}{} }

// EnableKey adds a single key/button code to the key bitset.
func (b *Builder) EnableKey(key inputevent.Key) *Builder {
	b.enableEvent(inputevent.EvKey)
	b.keyBits[uint16(key)] = struct{}{}
	return b
}

// EnableRel adds a relative axis.
func (b *Builder) EnableRel(axis inputevent.RelativeAxis) *Builder {
	b.enableEvent(inputevent.EvRel)
	b.relBits[uint16(axis)] = struct{}{}
	return b
}

// EnableAbs adds an absolute axis with its range/tuning.
func (b *Builder) EnableAbs(axis inputevent.AbsoluteAxis, info AbsInfo) *Builder {
	b.enableEvent(inputevent.EvAbs)
	code := uint16(axis)
	b.absBits[code] = struct{}{}
	b.absInfo[code] = info
	return b
}

// EnableProp sets an input property bit (e.g. INPUT_PROP_DIRECT).
func (b *Builder) EnableProp(prop uint16) *Builder {
	b.propBits[prop] = struct{}{}
	return b
}

// ButtonPreset enables the key kind with every BTN_* code in the mouse/
// joystick button range (spec: "enables key kind with all button-class
// keys").
func (b *Builder) ButtonPreset() *Builder {
	b.enableEvent(inputevent.EvKey)
	for code := uint16(0x100); code < 0x160; code++ {
		b.keyBits[code] = struct{}{}
	}
	return b
}

// RelativePreset is ButtonPreset plus the relative kind with X/Y/Wheel/
// HWheel axes — a generic relative pointing device (mouse).
func (b *Builder) RelativePreset() *Builder {
	b.ButtonPreset()
	b.enableEvent(inputevent.EvRel)
	for _, axis := range []inputevent.RelativeAxis{
		inputevent.RelX, inputevent.RelY, inputevent.RelWheel, inputevent.RelHWheel,
	} {
		b.relBits[uint16(axis)] = struct{}{}
	}
	return b
}

// AbsolutePreset is ButtonPreset plus absolute X/Y axes ranged [0, 0x8000]
// and relative wheel/hwheel axes (for a tablet that still reports a scroll
// wheel relatively).
func (b *Builder) AbsolutePreset() *Builder {
	b.ButtonPreset()
	full := AbsInfo{Minimum: 0, Maximum: 0x8000}
	b.EnableAbs(inputevent.AbsX, full)
	b.EnableAbs(inputevent.AbsY, full)
	b.enableEvent(inputevent.EvRel)
	for _, axis := range []inputevent.RelativeAxis{inputevent.RelWheel, inputevent.RelHWheel} {
		b.relBits[uint16(axis)] = struct{}{}
	}
	return b
}

// KeyPreset enables the key kind with every keyboard-class code (anything
// not in the BTN_* range), optionally enabling kernel autorepeat.
func (b *Builder) KeyPreset(autorepeat bool) *Builder {
	b.enableEvent(inputevent.EvKey)
	for code := uint16(1); code <= 0x2ff; code++ { // 0x2ff is KEY_MAX
		if inputevent.Key(code).IsKey() {
			b.keyBits[code] = struct{}{}
		}
	}
	if autorepeat {
		b.enableEvent(evRepeat)
	}
	return b
}

// FromEvdev mirrors an already-opened kernel input device's capabilities
// verbatim: props, event kinds, key/rel/abs/misc/led/sound/switch bits, and
// absolute-axis ranges.
func (b *Builder) FromEvdev(caps DeviceCapabilities) *Builder {
	for _, p := range caps.Props {
		b.propBits[p] = struct{}{}
	}
	for _, ev := range caps.EventBits {
		b.evBits[ev] = struct{}{}
	}
	for _, k := range caps.KeyBits {
		b.keyBits[k] = struct{}{}
	}
	for _, r := range caps.RelBits {
		b.relBits[r] = struct{}{}
	}
	for _, a := range caps.AbsBits {
		b.absBits[a] = struct{}{}
		if info, ok := caps.AbsInfo[a]; ok {
			b.absInfo[a] = info
		}
	}
	for _, m := range caps.MiscBits {
		b.mscBits[m] = struct{}{}
	}
	for _, l := range caps.LedBits {
		b.ledBits[l] = struct{}{}
	}
	for _, s := range caps.SoundBits {
		b.sndBits[s] = struct{}{}
	}
	for _, s := range caps.SwitchBits {
		b.swBits[s] = struct{}{}
	}
	return b
}
