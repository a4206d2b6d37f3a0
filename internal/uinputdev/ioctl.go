package uinputdev

// Linux /dev/uinput ioctl request numbers, computed the same way the kernel's
// asm-generic/ioctl.h macros do, rather than hand-copied magic constants.
// UINPUT_IOCTL_BASE is the ASCII code 'U'.
const uinputIoctlBase = 0x55

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | uinputIoctlBase<<8 | nr
}

func ioW(nr, size uintptr) uintptr  { return ioc(iocWrite, nr, size) }
func ioR(nr, size uintptr) uintptr  { return ioc(iocRead, nr, size) }
func ioWR(nr, size uintptr) uintptr { return ioc(iocWrite|iocRead, nr, size) }
func io0(nr uintptr) uintptr        { return ioc(iocNone, nr, 0) }

// Sizes of the fixed-layout uinput uapi structs (linux/uinput.h), in bytes.
const (
	sizeofInt          = 4
	sizeofInputID      = 8  // { u16 bustype, vendor, product, version }
	sizeofUinputSetup  = sizeofInputID + uinputMaxNameSize + 4
	sizeofAbsInfo      = 24 // { s32 value, minimum, maximum, fuzz, flat, resolution }
	sizeofUinputAbsSetup = 4 + sizeofAbsInfo // u16 code + 2 pad + absinfo
)

const uinputMaxNameSize = 80

var (
	uiDevCreate  = io0(1)
	uiDevDestroy = io0(2)
	uiDevSetup   = ioW(3, sizeofUinputSetup)
	uiAbsSetup   = ioW(4, sizeofUinputAbsSetup)

	uiSetEvBit   = ioW(100, sizeofInt)
	uiSetKeyBit  = ioW(101, sizeofInt)
	uiSetRelBit  = ioW(102, sizeofInt)
	uiSetAbsBit  = ioW(103, sizeofInt)
	uiSetMscBit  = ioW(104, sizeofInt)
	uiSetLedBit  = ioW(105, sizeofInt)
	uiSetSndBit  = ioW(106, sizeofInt)
	uiSetSwBit   = ioW(109, sizeofInt)
	uiSetPropBit = ioW(110, sizeofInt)
)

// uiGetSysname computes UI_GET_SYSNAME(len): a read ioctl sized to the
// caller's receiving buffer, used to fetch the created device's sysfs name
// (from which /dev/input/eventN is derived).
func uiGetSysname(bufLen int) uintptr {
	return ioR(44, uintptr(bufLen))
}
