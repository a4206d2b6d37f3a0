package uinputdev

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func ioctl(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlInt(fd uintptr, req uintptr, value int) error {
	return ioctl(fd, req, uintptr(value))
}

func ioctlPtr(fd uintptr, req uintptr, ptr unsafe.Pointer) error {
	return ioctl(fd, req, uintptr(ptr))
}
