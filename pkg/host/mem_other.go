//go:build !linux

package host

// allocRegion falls back to a plain Go allocation on platforms without the
// mmap path.
func allocRegion(size int) ([]byte, func() error, error) {
	return make([]byte, size), func() error { return nil }, nil
}
