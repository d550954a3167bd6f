//go:build linux

package host

import "golang.org/x/sys/unix"

// allocRegion maps an anonymous page-aligned region. Using mmap rather
// than a Go slice keeps the sandbox memory page-aligned and lets a future
// loader share it with a partition.
func allocRegion(size int) ([]byte, func() error, error) {
	buf, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return buf, func() error { return unix.Munmap(buf) }, nil
}
