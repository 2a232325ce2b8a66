// ARM64 Generic Interrupt Controller (GICv2) driver
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// IP: ARM Generic Interrupt Controller version 2.0
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gic implements a driver for the ARM Generic Interrupt Controller
// (GICv2) distributor and per-core CPU interface, as wired on the BCM2711
// (Raspberry Pi 4): distributor at GIC_BASE+0x1000, CPU interface at
// GIC_BASE+0x2000 (§4.5, §6).
package gic

import (
	"github.com/ZackZahi/rpi4-bare-metal-os/internal/reg"
)

// GIC Distributor register map (GICv2, ARM IHI 0048B §4.3).
const (
	gicdCTLR       = 0x000
	ctlrEnableGrp0 = 0
	gicdISENABLER  = 0x100
	gicdICENABLER  = 0x180
	gicdIPRIORITYR = 0x400
	gicdITARGETSR  = 0x800
)

// GIC CPU Interface register map (GICv2, ARM IHI 0048B §4.4).
const (
	giccCTLR      = 0x000
	ccCTLREnable  = 0
	giccPMR       = 0x004
	giccIAR       = 0x00c
	giccEOIR      = 0x010
)

const (
	priorityMiddle = 0x80  // mid-range priority for enabled SPIs/PPIs
	priorityLowest = 0xff  // CPU interface priority mask: accept everything
	spuriousID     = 1023  // read from GICC_IAR when no interrupt is pending
)

// GIC represents a single Generic Interrupt Controller (GICv2) instance.
type GIC struct {
	// Distributor base address.
	GICD uint32
	// CPU interface base address.
	GICC uint32
}

// Init initialises the distributor and this core's CPU interface (§4.5):
// the distributor is disabled, every SPI/PPI is left disabled, then the
// distributor is re-enabled; the CPU interface priority mask is set to
// accept every priority before the interface itself is enabled. Each core
// calls Init for its own CPU interface banked registers; the distributor
// half is idempotent and only needs to take effect once.
func (hw *GIC) Init() {
	if hw.GICD == 0 || hw.GICC == 0 {
		panic("invalid GIC instance")
	}

	reg.Clear(hw.GICD+gicdCTLR, ctlrEnableGrp0)

	for bank := uint32(0); bank < 32; bank++ {
		reg.Write(hw.GICD+gicdICENABLER+bank*4, 0xffffffff)
	}

	reg.Set(hw.GICD+gicdCTLR, ctlrEnableGrp0)

	reg.Write(hw.GICC+giccPMR, priorityLowest)
	reg.Set(hw.GICC+giccCTLR, ccCTLREnable)
}

// EnableInterrupt configures interrupt id to fire at a middle priority,
// targets core 0, and sets its distributor enable bit (§4.5).
func (hw *GIC) EnableInterrupt(id int) {
	prioReg := hw.GICD + gicdIPRIORITYR + uint32(id)&^3
	reg.Write(prioReg, setByte(reg.Read(prioReg), uint(id%4), priorityMiddle))

	targetReg := hw.GICD + gicdITARGETSR + uint32(id)&^3
	reg.Write(targetReg, setByte(reg.Read(targetReg), uint(id%4), 1<<0))

	reg.Write(hw.GICD+gicdISENABLER+uint32(id/32)*4, 1<<uint(id%32))
}

// DisableInterrupt clears the distributor enable bit for id.
func (hw *GIC) DisableInterrupt(id int) {
	reg.Write(hw.GICD+gicdICENABLER+uint32(id/32)*4, 1<<uint(id%32))
}

// Acknowledge reads the CPU interface's interrupt-acknowledge register,
// returning the interrupt id currently being serviced and whether it was
// a real interrupt (spuriousID means none was pending).
func (hw *GIC) Acknowledge() (id int, ok bool) {
	iar := reg.Read(hw.GICC + giccIAR)
	id = int(iar & 0x3ff)
	return id, id != spuriousID
}

// EndOfInterrupt signals completion of servicing id by writing it back to
// the end-of-interrupt register (§4.5).
func (hw *GIC) EndOfInterrupt(id int) {
	reg.Write(hw.GICC+giccEOIR, uint32(id))
}

func setByte(word uint32, index uint, val uint32) uint32 {
	shift := index * 8
	mask := uint32(0xff) << shift
	return (word &^ mask) | (val << shift)
}
