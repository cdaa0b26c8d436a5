package persistence

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"
)

var (
	// ErrBigEndian is returned when running on big-endian systems.
	ErrBigEndian = errors.New("big-endian systems are not supported")

	// ErrUnalignedAccess is returned when attempting unaligned memory access.
	ErrUnalignedAccess = errors.New("unaligned memory access detected")
)

// init validates that the platform can use the raw little-endian slice I/O
// this package relies on.
func init() {
	if !isLittleEndian() {
		panic(fmt.Sprintf("anngo/persistence: %v (GOARCH=%s)", ErrBigEndian, runtime.GOARCH))
	}
}

func isLittleEndian() bool {
	var test uint16 = 0x0001
	return *(*byte)(unsafe.Pointer(&test)) == 1
}

// validateFloat32SliceAlignment checks that a float32 slice is 4-byte aligned.
func validateFloat32SliceAlignment(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	if ptr := uintptr(unsafe.Pointer(&vec[0])); ptr%4 != 0 {
		return fmt.Errorf("%w: float32 slice at address 0x%x", ErrUnalignedAccess, ptr)
	}
	return nil
}

// validateUint32SliceAlignment checks that a uint32 slice is 4-byte aligned.
func validateUint32SliceAlignment(slice []uint32) error {
	if len(slice) == 0 {
		return nil
	}
	if ptr := uintptr(unsafe.Pointer(&slice[0])); ptr%4 != 0 {
		return fmt.Errorf("%w: uint32 slice at address 0x%x", ErrUnalignedAccess, ptr)
	}
	return nil
}

// validateInt64SliceAlignment checks that an int64 slice is 8-byte aligned.
func validateInt64SliceAlignment(slice []int64) error {
	if len(slice) == 0 {
		return nil
	}
	if ptr := uintptr(unsafe.Pointer(&slice[0])); ptr%8 != 0 {
		return fmt.Errorf("%w: int64 slice at address 0x%x", ErrUnalignedAccess, ptr)
	}
	return nil
}
