// ARMv8-A core support for a single-address-space preemptive kernel
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm64

// Identity-mapped, 4 KB granule, 48-bit VA translation tables (§4.2).
//
// Layout, statically reserved and page-aligned within the core's control
// block (see board/raspberrypi/pi4 for the base address):
//
//	L0 table: 1 entry used (entry 0 -> L1 table)
//	L1 table: entry 0 -> L2 table (RAM,    0x0000_0000 .. 0x3fff_ffff)
//	          entry 3 -> L2 table (device, 0xc000_0000 .. 0xffff_ffff)
//	L2 tables: 512 entries each, fully populated with 2 MB block
//	           descriptors (level-2 block mappings, no L3 walk).
const (
	entriesPerTable = 512     // entries per table at 4 KB granule
	l2BlockLen      = 1 << 21 // 2 MB per level-2 block descriptor

	l0TableOffset       = 0x0000
	l1TableOffset       = 0x1000
	l2TableOffsetRAM    = 0x2000
	l2TableOffsetDevice = 0x3000
)

// Descriptor bits shared by table and block descriptors
// (D5.3, ARM DDI 0487 ARMv8-A Architecture Reference Manual).
const (
	descValid       = 1 << 0
	descTable       = 1 << 1 // set at L0/L1: table descriptor
	descAF          = 1 << 10
	descInnerSh     = 0b11 << 8
	descOuterSh     = 0b10 << 8
	descAPReadWrite = 0b00 << 6 // AP[2:1]: EL1 read/write, no EL0 access
	descUXN         = 1 << 54
	descPXN         = 1 << 53
)

// MAIR_EL1 attribute indices (§4.2): index 0 = device, index 1 = normal.
const (
	attrIdxDevice = 0
	attrIdxNormal = 1

	mairDeviceNGnRnE = 0x00
	mairNormalWBWA   = 0xff // outer+inner write-back, read/write allocate

	mairValue = uint64(mairNormalWBWA)<<(8*attrIdxNormal) | uint64(mairDeviceNGnRnE)<<(8*attrIdxDevice)
)

// TCR_EL1 fields for a single (TTBR0-only) 48-bit VA space, 4 KB granule
// (§4.2): T0SZ=16 (48-bit), IRGN0/ORGN0 write-back, SH0 inner shareable,
// TG0 4 KB, IPS 40-bit physical address ceiling.
const (
	tcrT0SZ      = 16
	tcrIRGN0WB   = 0b01 << 8
	tcrORGN0WB   = 0b01 << 10
	tcrSH0Inner  = 0b11 << 12
	tcrTG0_4K    = 0b00 << 14
	tcrIPS_40bit = 0b010 << 32

	tcrValue = uint64(tcrT0SZ) | tcrIRGN0WB | tcrORGN0WB | tcrSH0Inner | tcrTG0_4K | tcrIPS_40bit
)

// SCTLR_EL1 bits asserted by §8.2 (MMU invariant): M (MMU enable), C (data
// cache), I (instruction cache).
const (
	sctlrM = 1 << 0
	sctlrC = 1 << 2
	sctlrI = 1 << 12
)

// defined in mmu_arm64.s
func write_mair(val uint64)
func write_tcr(val uint64)
func write_ttbr0(addr uint64)
func write_ttbr1(addr uint64)
func read_sctlr() uint64
func write_sctlr(val uint64)
func dsb_sy()
func isb()
func writeDescriptor(addr uint64, val uint64)

func blockDescriptor(pa uint64, attrIdx int, deviceMem bool) uint64 {
	d := pa | descValid | descAF

	if deviceMem {
		d |= descOuterSh | uint64(attrIdx)<<2 | descPXN | descUXN
	} else {
		d |= descInnerSh | uint64(attrIdx)<<2
	}

	return d | descAPReadWrite
}

func (cpu *CPU) writeTable(offset uint64, index int, val uint64) {
	addr := cpu.ttBase + offset + uint64(index)*8
	writeDescriptor(addr, val)
}

// initL2RAM fills a level-2 table with 2 MB normal-memory block
// descriptors mapping VA==PA for [base, base+1GB).
func (cpu *CPU) initL2RAM(base uint64) {
	for i := 0; i < entriesPerTable; i++ {
		pa := base + uint64(i)*l2BlockLen
		cpu.writeTable(l2TableOffsetRAM, i, blockDescriptor(pa, attrIdxNormal, false))
	}
}

// initL2Device fills a level-2 table with 2 MB device-memory block
// descriptors mapping VA==PA for [base, base+1GB).
func (cpu *CPU) initL2Device(base uint64) {
	for i := 0; i < entriesPerTable; i++ {
		pa := base + uint64(i)*l2BlockLen
		cpu.writeTable(l2TableOffsetDevice, i, blockDescriptor(pa, attrIdxDevice, true))
	}
}

// InitMMU builds the identity-mapped translation tables described in §4.2
// and enables translation plus data/instruction caches. It must run with
// the primary core's ttBase pointing at its reserved translation-table
// region (see board/raspberrypi/pi4.InitPrimary); secondary cores never call
// this — they adopt the same register values via AdoptMMU (§4.9).
func (cpu *CPU) InitMMU() {
	l1 := cpu.ttBase + l1TableOffset
	l2ram := cpu.ttBase + l2TableOffsetRAM
	l2dev := cpu.ttBase + l2TableOffsetDevice

	writeDescriptor(cpu.ttBase+l0TableOffset, l1|descValid|descTable)

	writeDescriptor(l1+0*8, l2ram|descValid|descTable)
	writeDescriptor(l1+3*8, l2dev|descValid|descTable)

	cpu.initL2RAM(0x0000_0000)
	cpu.initL2Device(0xc000_0000)

	write_mair(mairValue)
	write_tcr(tcrValue)
	write_ttbr0(cpu.ttBase + l0TableOffset)
	write_ttbr1(0)

	cpu.FlushTLBs()
	dsb_sy()
	isb()

	write_sctlr(read_sctlr() | sctlrM | sctlrC | sctlrI)

	dsb_sy()
	isb()
}

// AdoptMMU programs this (secondary) core's translation registers from
// values published by the primary core, without rebuilding any table
// (§4.2: "Secondary cores do not rebuild tables").
func (cpu *CPU) AdoptMMU(ttbr0, tcr, mair uint64) {
	write_mair(mair)
	write_tcr(tcr)
	write_ttbr0(ttbr0)
	write_ttbr1(0)

	cpu.FlushTLBs()
	dsb_sy()
	isb()

	write_sctlr(read_sctlr() | sctlrM | sctlrC | sctlrI)

	dsb_sy()
	isb()
}

// MMUEnabled reports whether the M bit of SCTLR_EL1 is set (§8.2).
func (cpu *CPU) MMUEnabled() bool {
	return read_sctlr()&sctlrM != 0
}

// TranslationRegisters returns this core's TTBR0_EL1, TCR_EL1 and
// MAIR_EL1 values, for publishing to secondary cores via smp.go.
func (cpu *CPU) TranslationRegisters() (ttbr0, tcr, mair uint64) {
	return cpu.ttBase + l0TableOffset, tcrValue, mairValue
}
