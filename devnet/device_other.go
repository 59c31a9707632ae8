//go:build !linux

package devnet

// OpenLinuxDevice is unavailable outside Linux; raw AF_PACKET sockets are
// a Linux-specific facility.
func OpenLinuxDevice(ifaceName string, bypassQdisc bool) (Device, error) {
	return nil, ErrUnsupportedPlatform
}

// HasQdiscBypass always reports false on non-Linux platforms.
func HasQdiscBypass() bool { return false }
