// ARMv8-A core support for a single-address-space preemptive kernel
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm64

// Secondary-core bring-up (§4.9). SMPInit publishes the primary core's
// translation-table base, translation-control and attribute-indirection
// register values and one stack-top pointer per secondary core, then
// writes secondaryEntry's address into each platform spin-table slot and
// signals the waiting cores with an event.
const (
	spinSlotCore1 = 0xe0
	spinSlotCore2 = 0xe8
	spinSlotCore3 = 0xf0

	SecondaryStackSize = 16 * 1024
)

var spinSlots = [NumCores - 1]uint64{spinSlotCore1, spinSlotCore2, spinSlotCore3}

// SecondaryEntry is called by secondaryEntry (smp_arm64.s) once a
// secondary core has dropped to EL1, adopted the shared MMU
// configuration, enabled caches and loaded its per-core stack. It is set
// by cmd/kernel before SMPInit runs.
var SecondaryEntry func(core int)

// defined in smp_arm64.s
func publish_smp_state(ttbr0, tcr, mair uint64, stacks *[NumCores - 1]uint64)
func write_spin_slot(slot uint32, addr uint64)
func sev()

//go:nosplit
func secondaryDispatch(core int) {
	if SecondaryEntry != nil {
		SecondaryEntry(core)
	}
	halt()
}

// SMPInit brings up cores 1-3 (§4.9). stackTops holds one 16 KB-backed
// stack-top pointer per secondary core, indexed by core-1.
func (cpu *CPU) SMPInit(stackTops [NumCores - 1]uint64) {
	ttbr0, tcr, mair := cpu.TranslationRegisters()

	publish_smp_state(ttbr0, tcr, mair, &stackTops)

	for _, slot := range spinSlots {
		write_spin_slot(uint32(slot), secondaryEntryAddr())
	}

	sev()
}

// defined in smp_arm64.s
func secondaryEntryAddr() uint64
