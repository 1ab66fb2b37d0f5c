//go:build linux

// Package linux is the reference evdev/uinput platform backend: an
// platform.Source that reads struct input_event records from
// /dev/input/eventN, and a platform.Sink that replays them through a
// synthetic /dev/uinput keyboard. Neither is part of the core; both
// exist only to give platform.Source/platform.Sink a real body on
// Linux.
package linux

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// The ioctl request-code encoding below (direction/type/nr/size packed
// into a uint) mirrors include/uapi/asm-generic/ioctl.h exactly; evdev
// builds its EVIOCGID/EVIOCGRAB request codes with it at call time,
// while uinput uses precomputed UI_* constants.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func iocEncode(dir, typ, nr, size uint) uint {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

func ior[T any](typ, nr uint, arg T) uint {
	return iocEncode(iocRead, typ, nr, uint(unsafe.Sizeof(arg)))
}

func iow[T any](typ, nr uint, arg T) uint {
	return iocEncode(iocWrite, typ, nr, uint(unsafe.Sizeof(arg)))
}

// ioctlAny issues an ioctl on fd with req, reading the kernel's answer
// (if any) into *arg.
func ioctlAny[T any](fd uintptr, req uint, arg *T) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), uintptr(unsafe.Pointer(arg)))
	if errno != 0 {
		return errno
	}
	return nil
}

// ioctlInt issues an ioctl that carries a plain integer argument by
// value rather than by pointer (UI_SET_EVBIT, UI_SET_KEYBIT, ...).
func ioctlInt(fd uintptr, req uint, val uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), val)
	if errno != 0 {
		return errno
	}
	return nil
}
