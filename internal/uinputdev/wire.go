package uinputdev

// Kernel uapi struct layouts (linux/uinput.h, linux/input.h), little-endian
// on every architecture this module targets.

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputSetup struct {
	ID           inputID
	Name         [uinputMaxNameSize]byte
	FFEffectsMax uint32
}

// AbsInfo describes one EV_ABS axis's range and tuning, mirroring struct
// input_absinfo.
type AbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

type uinputAbsSetup struct {
	Code     uint16
	_        uint16
	AbsInfo  AbsInfo
}
