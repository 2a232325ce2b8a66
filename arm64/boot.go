// ARMv8-A core support for a single-address-space preemptive kernel
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm64

// Saved Program Status Register mode bits for EL1h with all exceptions
// masked (D, A, I, F) — the initial state asserted on exception-return
// into the kernel entry point, per §4.1(ii).
const (
	modeEL1h       = 0b0101
	maskDAIF       = 0b1111 << 6
	spsrBootMasked = maskDAIF | modeEL1h

	// spsrTaskUnmasked is synthesised into new trapframes (§4.7): EL1h
	// with IRQs unmasked, everything else masked.
	spsrTaskUnmasked = (0b1101 << 6) | modeEL1h
)

// defined in boot_arm64.s
func current_el() uint64
func set_sp_el1(sp uint64)
func zero_bss(start, end uint64)
func halt()

// Halt parks the calling core in wait-for-interrupt forever. Used for the
// Fatal error class in §7/§4.10: wrong boot exception level, MMU failing to
// enable, or an exception vector slot with no registered handler.
func Halt() {
	halt()
}

// BootPrimary reads CurrentEL and returns the exception level the calling
// core is executing at now. It checks no invariant and changes no state.
// Called after the assembly entry stub has dropped from EL2 to EL1 it
// reports EL1; the exception level at reset is not recorded anywhere, and
// the entry stub does not halt when the reset level is below EL2.
func BootPrimary() (el int) {
	return int(current_el() & 0b1100 >> 2)
}

// Entry is invoked once, by the assembly reset stub (_rt0_arm64 in
// rt0_arm64.s), after the primary core has dropped to EL1, loaded its
// supervisor stack and zeroed bss. cmd/kernel sets this before any core can
// possibly run (i.e. before the platform's spin-table slots are written),
// so there is no data race in using a plain package-level variable here.
var Entry func()

// kernelEntryEL1 is the Go-side continuation of the assembly reset stub.
//
//go:nosplit
func kernelEntryEL1() {
	if Entry != nil {
		Entry()
	}

	Halt()
}
