// Raspberry Pi 4 Model B board support
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pi4 wires the BCM2711 SoC drivers and the ARMv8-A core support
// package together for the Raspberry Pi 4 Model B (quad-core Cortex-A72).
// InitPrimary/InitSecondary occupy the same hardware-init hook position
// as the teacher's `go:linkname ... runtime.printk` hook: called once
// the Go runtime's own bootstrap has run, before any other board code
// touches shared state (see DESIGN.md's "Go runtime bootstrap ahead of
// _rt0_arm64" resolution).
package pi4

import (
	"github.com/ZackZahi/rpi4-bare-metal-os/arm64"
	"github.com/ZackZahi/rpi4-bare-metal-os/arm64/gic"
	"github.com/ZackZahi/rpi4-bare-metal-os/internal/reg"
	"github.com/ZackZahi/rpi4-bare-metal-os/kernel/klog"
	"github.com/ZackZahi/rpi4-bare-metal-os/soc/bcm2711"
)

// translationTableBase is the physical address of the statically
// reserved 16 KB region (L0+L1+L2x2 tables, §4.2) backing the primary
// core's identity map. It must not overlap the kernel image, the page
// allocator's bitmap, or any task stack; cmd/kernel/kernel.ld reserves
// this range.
const translationTableBase = 0x0020_0000

// SchedulerQuantumMs is the preemption quantum (§4.6/§4.7).
const SchedulerQuantumMs = 100

// Cores holds one CPU instance per physical core, indexed by core id.
var Cores [arm64.NumCores]arm64.CPU

// GIC is the board's single GICv2 instance, shared by every core's CPU
// interface (§4.5, §6).
var GIC = &gic.GIC{
	GICD: bcm2711.GICBase + bcm2711.GICDOffset,
	GICC: bcm2711.GICBase + bcm2711.GICCOffset,
}

// Console is the board's serial console (§6 collaborator interface).
var Console = bcm2711.UART0

// InitPrimary brings up core 0: MMU, vectors, GIC, timer and console. It
// must run after zero_bss and before any other Go code touches shared
// state, and so runs before the page allocator and heap are set up.
func InitPrimary() {
	cpu := &Cores[0]
	cpu.ID = 0
	cpu.SetTableBase(translationTableBase)

	cpu.InitMMU()

	// §4.10/§8.2: MMU refusing to enable is a Fatal boot assertion — halt
	// rather than run with an unmapped or uncached kernel.
	if !cpu.MMUEnabled() {
		cpu.DisableCache()
		klog.Fatal("mmu: failed to enable translation", arm64.Halt)
	}

	cpu.InitVectors()

	Console.Init()

	GIC.Init()
	GIC.EnableInterrupt(arm64.TimerIRQ)
	bcm2711.RouteTimerIRQ(cpu.ID)

	cpu.InitTimer(SchedulerQuantumMs)
	cpu.SetTime(0)
}

// InitSecondary brings up a waking secondary core (§4.9): adopts the
// primary's translation-table configuration, enables caches, initialises
// its own CPU interface and timer. The MMU tables themselves are never
// rebuilt.
func InitSecondary(core int, ttbr0, tcr, mair uint64) {
	cpu := &Cores[core]
	cpu.ID = core
	cpu.AdoptMMU(ttbr0, tcr, mair)

	if !cpu.MMUEnabled() {
		cpu.DisableCache()
		klog.Fatal("mmu: secondary core failed to adopt translation", arm64.Halt)
	}

	cpu.InitVectors()

	GIC.Init()
	bcm2711.RouteTimerIRQ(cpu.ID)

	cpu.InitTimer(SchedulerQuantumMs)
}

// TimerPending reports whether core's local physical-timer interrupt is
// currently pending. Under emulation the platform routes the timer IRQ
// to core 0 only (§4.9); the other cores poll this each loop iteration
// instead of taking the exception.
func TimerPending(core int) bool {
	return bcm2711.NonSecurePhysTimerPending(core, reg.Read)
}
