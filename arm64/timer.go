// ARMv8-A core support for a single-address-space preemptive kernel
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm64

// Per-core architected physical timer (CNTPCT_EL0 / CNTFRQ_EL0 /
// CNTP_TVAL_EL0 / CNTP_CTL_EL0), §4.6. Each core rearms its own countdown
// register independently; there is no shared hardware state between
// cores beyond the common counter frequency.
const (
	cntpCtlENABLE = 1 << 0
	cntpCtlIMASK  = 1 << 1

	refFreq int64 = 1e9 // nanoseconds
)

// TimerIRQ is the PPI asserted by the non-secure physical timer on each
// core (GICv2 PPI 30, per the BCM2711 interrupt map).
const TimerIRQ = 30

// defined in timer_arm64.s
func read_cntfrq() uint32
func read_cntpct() uint64
func write_cntp_tval(val uint32)
func write_cntp_ctl(val uint32)

// InitTimer initialises this core's physical timer (§4.6): reads the
// counter frequency, derives the tick-to-nanosecond multiplier used by
// GetTime, and arms the first quantum via Rearm. intervalMs is the
// scheduling quantum in milliseconds (100ms per §4.6/§4.7).
func (cpu *CPU) InitTimer(intervalMs uint32) {
	freq := read_cntfrq()
	cpu.TimerMultiplier = float64(refFreq) / float64(freq)

	cpu.timerFreq = freq
	cpu.timerIntervalMs = intervalMs

	cpu.Rearm()
}

// Rearm writes interval = (freq/1000) * interval_ms into the countdown
// register and enables the timer with its interrupt unmasked. The IRQ
// dispatch path calls this on every expiry regardless of whether the
// scheduler actually switches tasks (§4.6).
func (cpu *CPU) Rearm() {
	interval := (cpu.timerFreq / 1000) * cpu.timerIntervalMs
	write_cntp_tval(interval)
	write_cntp_ctl(cntpCtlENABLE)
}

// TimerFreq returns the counter frequency in Hz, as read from
// CNTFRQ_EL0 at InitTimer time (used by the `info` shell command).
func (cpu *CPU) TimerFreq() uint32 {
	return cpu.timerFreq
}

// Counter returns the CPU Counter-timer Physical Count (CNTPCT_EL0).
func (cpu *CPU) Counter() uint64 {
	return read_cntpct()
}

// GetTime returns the system time in nanoseconds.
func (cpu *CPU) GetTime() int64 {
	return int64(float64(cpu.Counter())*cpu.TimerMultiplier) + cpu.TimerOffset
}

// SetTime adjusts the system time to the argument nanoseconds value.
func (cpu *CPU) SetTime(ns int64) {
	if cpu.TimerMultiplier == 0 {
		return
	}

	cpu.TimerOffset = ns - int64(float64(read_cntpct())*cpu.TimerMultiplier)
}

// DeadlineTicks converts an absolute nanosecond deadline into an absolute
// CNTPCT_EL0 tick count, for use by the scheduler's sleep queue (§4.7).
// Deadlines already in the past collapse to the next tick.
func (cpu *CPU) DeadlineTicks(ns int64) uint64 {
	if cpu.TimerMultiplier == 0 {
		return cpu.Counter() + 1
	}

	target := int64(float64(ns-cpu.TimerOffset) / cpu.TimerMultiplier)
	now := cpu.Counter()

	if target <= int64(now) {
		return now + 1
	}

	return uint64(target)
}
