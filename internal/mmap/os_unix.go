//go:build unix

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var madvice = [...]int{
	AccessNormal:     unix.MADV_NORMAL,
	AccessSequential: unix.MADV_SEQUENTIAL,
	AccessRandom:     unix.MADV_RANDOM,
	AccessWillNeed:   unix.MADV_WILLNEED,
}

func mapFile(f *os.File, size int) ([]byte, func() error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}

func advise(data []byte, p AccessPattern) error {
	if int(p) >= len(madvice) {
		p = AccessNormal
	}
	// EINVAL only means the kernel ignored the hint.
	if err := unix.Madvise(data, madvice[p]); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
