// BCM2711 SoC support
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bcm2711 provides peripheral register definitions for the
// Broadcom BCM2711 SoC (Raspberry Pi 4 Model B, quad-core Cortex-A72),
// adapted from the BCM2835 line this kernel's teacher supports (§6).
package bcm2711

import "github.com/ZackZahi/rpi4-bare-metal-os/internal/reg"

// PeripheralBase is the BCM2711 low-peripheral-mode physical base
// address (legacy master view, used by the GIC and local timer).
const PeripheralBase = 0xFE00_0000

// GICBase is the base of the GICv2 distributor and CPU interface block
// (§6): distributor at GICBase+0x1000, CPU interface at GICBase+0x2000.
const GICBase = 0xFF84_0000

const (
	GICDOffset = 0x1000
	GICCOffset = 0x2000
)

// Per-core local timer routing and interrupt-source registers (§6),
// relative to the ARM-local peripheral block at 0xFF80_0000.
const (
	localPeripheralBase = 0xFF80_0000

	timerRoutingBase   = localPeripheralBase + 0x0040
	interruptSrcBase   = localPeripheralBase + 0x0060
	nonSecurePhysTimer = 1 << 1
)

// TimerRoutingRegister returns the routing register address for the
// non-secure physical timer on the given core.
func TimerRoutingRegister(core int) uint32 {
	return timerRoutingBase + 4*uint32(core)
}

// InterruptSourceRegister returns the local interrupt-source register
// address for the given core; bit 1 indicates the non-secure physical
// timer is pending (§4.9, §6 — polled by secondary cores, which do not
// receive the routed IRQ under emulation).
func InterruptSourceRegister(core int) uint32 {
	return interruptSrcBase + 4*uint32(core)
}

// NonSecurePhysTimerPending reports whether bit 1 of the local
// interrupt-source register is set for core.
func NonSecurePhysTimerPending(core int, read func(uint32) uint32) bool {
	return read(InterruptSourceRegister(core))&nonSecurePhysTimer != 0
}

const nonSecurePhysTimerBit = 1 // bit position within the routing register

// RouteTimerIRQ enables the non-secure physical timer interrupt for
// core at the local-peripheral routing register (§4.5: "enables the
// architected physical timer interrupt via the platform's
// local-peripheral routing register"). Every core calls this once
// during its own bring-up; under emulation only core 0's routed IRQ
// actually reaches the GIC; see NonSecurePhysTimerPending for the
// polling path the other cores fall back to.
func RouteTimerIRQ(core int) {
	reg.Set(TimerRoutingRegister(core), nonSecurePhysTimerBit)
}
