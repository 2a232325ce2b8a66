// ARMv8-A core support for a single-address-space preemptive kernel
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arm64 provides the architecture-specific core of the kernel:
// exception-level transition, MMU bring-up, the exception vector table and
// trapframe format, the architected timer, cache control and secondary-core
// bring-up for a quad-core Cortex-A72 (Raspberry Pi 4, validated under QEMU
// `raspi4b` emulation).
//
// The following cores are supported/tested:
//   - ARMv8-A / Cortex-A72 (quad-core)
//
// This package targets `GOARCH=arm64` under the kernel's own freestanding
// entry point (see cmd/kernel and arm64/boot.go) rather than the hosted Go
// runtime scheduler; see DESIGN.md for why the two models don't mix.
package arm64

// NumCores is the number of cores this kernel brings up (§4.9 of the
// design: one primary plus three secondaries).
const NumCores = 4

// CPU represents one ARMv8-A core instance and its timer state.
type CPU struct {
	// ID is this core's index, 0..NumCores-1, set once at boot.
	ID int

	// TimerMultiplier converts CNTPCT ticks to nanoseconds.
	TimerMultiplier float64

	// TimerOffset is an epoch correction in nanoseconds, applied on top
	// of the free-running counter.
	TimerOffset int64

	// ttBase is the base address of the reserved region holding this
	// core's L0/L1/L2 translation tables, written by the board package
	// before InitMMU.
	ttBase uint64

	// timerFreq and timerIntervalMs cache the inputs to Rearm so every
	// expiry can recompute the same countdown value (§4.6).
	timerFreq       uint32
	timerIntervalMs uint32
}

// SetTableBase records the base address of the reserved region holding
// this core's translation tables, set once by the board package before
// InitMMU runs.
func (cpu *CPU) SetTableBase(base uint64) {
	cpu.ttBase = base
}

// defined in boot_arm64.s
func busyloop(count uint32)
func read_mpidr() uint64

// Busyloop spins for approximately count iterations; used for short
// peripheral settling delays before the timer is initialized (e.g. GPIO
// pull-up/down sequencing during early UART bring-up).
func Busyloop(count uint32) {
	busyloop(count)
}

// CoreID returns the affinity-0 field of MPIDR_EL1, this core's index
// within the cluster (§4.1: "detected by reading the multiprocessor
// affinity register and comparing its low bits to zero").
func CoreID() int {
	return int(read_mpidr() & 0xff)
}

// IsPrimary reports whether the calling core is core 0.
func IsPrimary() bool {
	return CoreID() == 0
}
