//go:build windows

package mmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func mapFile(f *os.File, size int) ([]byte, func() error, error) {
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, nil, err
	}
	// A view pins the mapping object, so the handle can go now.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		return nil, nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), func() error {
		return windows.UnmapViewOfFile(addr)
	}, nil
}

// Windows has no madvise equivalent for file views.
func advise([]byte, AccessPattern) error { return nil }
