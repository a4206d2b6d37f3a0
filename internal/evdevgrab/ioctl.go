package evdevgrab

// Linux evdev ioctl request numbers (linux/input.h), computed the same way
// the kernel's asm-generic/ioctl.h macros do.
const evdevIoctlBase = 0x45 // 'E'

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | evdevIoctlBase<<8 | nr
}

func ioR(nr, size uintptr) uintptr { return ioc(iocRead, nr, size) }
func ioW(nr, size uintptr) uintptr { return ioc(iocWrite, nr, size) }

const (
	sizeofInt      = 4
	sizeofInputID  = 8
	sizeofAbsInfo  = 24
)

var (
	evIOCGID = ioR(0x02, sizeofInputID)

	evIOCGRAB = ioW(0x90, sizeofInt)
)

// evIOCGBIT computes EVIOCGBIT(ev, len): a variable-length read returning
// the bitmask of supported codes for event type ev.
func evIOCGBIT(ev uint16, bufLen int) uintptr {
	return ioR(uintptr(0x20+ev), uintptr(bufLen))
}

// evIOCGABS computes EVIOCGABS(abs): the axis range/tuning for one absolute
// axis.
func evIOCGABS(abs uint16) uintptr {
	return ioR(uintptr(0x40+abs), sizeofAbsInfo)
}

// evIOCGPROP computes EVIOCGPROP(len): the device's INPUT_PROP_* bitmask.
func evIOCGPROP(bufLen int) uintptr {
	return ioR(0x09, uintptr(bufLen))
}

// Buffer sizes generous enough to cover the kernel's *_MAX constants for
// each bit array (linux/input-event-codes.h): EV_MAX=0x1f, KEY_MAX=0x2ff,
// REL_MAX=0x0f, ABS_MAX=0x3f, MSC_MAX=0x07, LED_MAX=0x0f, SND_MAX=0x07,
// SW_MAX=0x10, INPUT_PROP_MAX=0x1f.
const (
	evBitsLen   = 4
	keyBitsLen  = 96
	relBitsLen  = 4
	absBitsLen  = 8
	mscBitsLen  = 1
	ledBitsLen  = 2
	sndBitsLen  = 1
	swBitsLen   = 3
	propBitsLen = 4
)
