//go:build linux

package devnet

import (
	"fmt"
	"net"
	"time"

	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

// LinuxDevice is a raw AF_PACKET socket bound to one network interface.
// It is the Device used by cmd/ecmasterd on Linux hosts.
type LinuxDevice struct {
	fd      int
	mtu     int
	ifindex int
	hwAddr  [6]byte
}

// OpenLinuxDevice binds an AF_PACKET/SOCK_RAW socket to ifaceName and
// returns a Device ready for Send/Recv. bypassQdisc requests
// PACKET_QDISC_BYPASS, which skips the kernel qdisc layer on transmit;
// callers should only set it when HasQdiscBypass reports support.
func OpenLinuxDevice(ifaceName string, bypassQdisc bool) (Device, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("devnet: lookup interface %s: %w", ifaceName, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("devnet: open AF_PACKET socket: %w", err)
	}

	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("devnet: bind to %s: %w", ifaceName, err)
	}

	if bypassQdisc {
		if err := unix.SetsockoptInt(fd, unix.SOL_PACKET, unix.PACKET_QDISC_BYPASS, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("devnet: enable PACKET_QDISC_BYPASS: %w", err)
		}
	}

	var hw [6]byte
	copy(hw[:], iface.HardwareAddr)

	return &LinuxDevice{
		fd:      fd,
		mtu:     iface.MTU,
		ifindex: iface.Index,
		hwAddr:  hw,
	}, nil
}

// OpenLinuxDeviceFromConn adopts an AF_PACKET socket a caller already
// opened and bound (for example via raw socket options this package
// doesn't expose), extracting its file descriptor the same way
// pkg/exporter pulls the fd out of a caller-supplied net.Conn.
func OpenLinuxDeviceFromConn(conn net.Conn, mtu int, hwAddr [6]byte) (Device, error) {
	fd := netfd.GetFdFromConn(conn)
	if fd < 0 {
		return nil, fmt.Errorf("devnet: could not extract file descriptor from %T", conn)
	}
	return &LinuxDevice{fd: fd, mtu: mtu, hwAddr: hwAddr}, nil
}

func htons(v int) uint16 {
	return uint16(v>>8) | uint16(v<<8)
}

func (d *LinuxDevice) MaxTransmissionUnit() int { return d.mtu }

func (d *LinuxDevice) HardwareAddr() [6]byte { return d.hwAddr }

func (d *LinuxDevice) Send(length int, writer func([]byte) bool) bool {
	buf := make([]byte, length)
	if !writer(buf) {
		return false
	}
	n, err := unix.Write(d.fd, buf)
	return err == nil && n == len(buf)
}

func (d *LinuxDevice) Recv(reader func([]byte) bool) bool {
	buf := make([]byte, d.mtu+14)
	n, _, err := unix.Recvfrom(d.fd, buf, unix.MSG_DONTWAIT)
	if err != nil || n <= 0 {
		return false
	}
	return reader(buf[:n])
}

func (d *LinuxDevice) Close() error {
	return unix.Close(d.fd)
}

// WallClockTimer is a Timer backed by time.Now, used to bound how long
// the interface waits for an outstanding frame's round trip.
type WallClockTimer struct {
	deadline time.Time
}

func NewWallClockTimer() *WallClockTimer {
	return &WallClockTimer{}
}

func (t *WallClockTimer) Start(d time.Duration) {
	t.deadline = time.Now().Add(d)
}

func (t *WallClockTimer) Wait() (TimerResult, error) {
	if time.Now().Before(t.deadline) {
		return WouldBlock, nil
	}
	return Ready, nil
}
