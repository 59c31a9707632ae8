//go:build linux

/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

package devnet

import (
	"fmt"

	"github.com/docker/docker/pkg/parsers/kernel"
)

// qdiscBypassMinVersion is the kernel version that introduced
// PACKET_QDISC_BYPASS (3.14).
var qdiscBypassMinVersion = kernel.VersionInfo{Kernel: 3, Major: 14, Minor: 0}

var qdiscBypassSupported bool

func init() {
	v, err := kernel.GetKernelVersion()
	if err != nil {
		panic(fmt.Errorf("devnet: error getting kernel version: %s", err))
	}
	qdiscBypassSupported = kernel.CompareKernelVersion(*v, qdiscBypassMinVersion) >= 0
}

// HasQdiscBypass reports whether the running kernel supports
// PACKET_QDISC_BYPASS, which OpenLinuxDevice uses to skip queueing
// discipline overhead on transmit.
func HasQdiscBypass() bool {
	return qdiscBypassSupported
}
