// Entry point and boot-to-shell wiring for rpi4-bare-metal-os
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package main is the freestanding kernel image: it sets arm64.Entry
// to kernelMain before any core can run (cmd/kernel/kernel.ld places
// _rt0_arm64 at the reset vector), then drives boot to the shell in
// this order: pi4.InitPrimary (MMU, exception vectors, console,
// interrupt controller, timer) -> page allocator -> heap -> filesystem
// init -> scheduler init (task 0 = shell) -> secondary cores -> enable
// interrupts -> shell command loop. The interrupt controller and timer
// are therefore set up before, not after, the allocators and the
// filesystem.
package main

import (
	"strconv"
	"unsafe"

	"github.com/ZackZahi/rpi4-bare-metal-os/arm64"
	"github.com/ZackZahi/rpi4-bare-metal-os/board/raspberrypi/pi4"
	"github.com/ZackZahi/rpi4-bare-metal-os/kernel/console"
	"github.com/ZackZahi/rpi4-bare-metal-os/kernel/fs"
	"github.com/ZackZahi/rpi4-bare-metal-os/kernel/klog"
	"github.com/ZackZahi/rpi4-bare-metal-os/kernel/mm"
	"github.com/ZackZahi/rpi4-bare-metal-os/kernel/sched"
	"github.com/ZackZahi/rpi4-bare-metal-os/kernel/shell"
)

// unsafeBytesAt views a fixed physical address reserved by
// cmd/kernel/kernel.ld as a byte slice, for handing to mm.Pages.Init
// (the page bitmap) without any allocation.
func unsafeBytesAt(addr uint64, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), length)
}

// Physical layout fixed by cmd/kernel/kernel.ld; kept in sync there.
const (
	pageBitmapBase      = 0x0050_0000
	pageBitmapSize      = 0x2000
	managedRegionBase   = 0x1000_0000
	managedRegionPages  = 64 * 1024 * 1024 / mm.PageSize
	secondaryStacksBase = 0x0041_0000
	secondaryStackSize  = 16 * 1024
)

var (
	pages mm.Pages
	heap  mm.Heap

	root fs.FS

	scheduler *sched.Scheduler
)

func init() {
	arm64.Entry = kernelMain
}

func main() {}

// fsAdapter and schedAdapter convert the concrete collaborator types'
// return types into the shell package's import-isolated mirrors
// (shell.FSEntry, shell.TaskSnapshot) described in kernel/shell/shell.go.
type fsAdapter struct{ *fs.FS }

func (a fsAdapter) Ls(path string) ([]shell.FSEntry, bool) {
	entries, ok := a.FS.Ls(path)
	if !ok {
		return nil, false
	}

	out := make([]shell.FSEntry, len(entries))
	for i, e := range entries {
		out[i] = shell.FSEntry{Name: e.Name, Dir: e.Dir}
	}

	return out, true
}

type schedAdapter struct{ *sched.Scheduler }

func (a schedAdapter) List() []shell.TaskSnapshot {
	snaps := a.Scheduler.List()

	out := make([]shell.TaskSnapshot, len(snaps))
	for i, s := range snaps {
		out[i] = shell.TaskSnapshot{ID: s.ID, Name: s.Name, State: s.State}
	}

	return out
}

// kernelMain is the Go-side continuation of the assembly reset stub,
// invoked via arm64.Entry by arm64.kernelEntryEL1 once the primary
// core has dropped to EL1, loaded its stack and zeroed bss (§4.1).
//
//go:nosplit
func kernelMain() {
	pi4.InitPrimary()

	initAllocators()
	root.Init()

	cpu := &pi4.Cores[0]

	scheduler = sched.New(cpu, pi4.GIC)
	scheduler.Init()

	bringUpSecondaryCores()

	cpu.EnableInterrupts()

	runShell()
}

func initAllocators() {
	bitmap := unsafeBytesAt(pageBitmapBase, pageBitmapSize)
	pages.Init(managedRegionBase, managedRegionPages, bitmap)

	if !heap.Init(&pages) {
		klog.Fatal("heap init failed", arm64.Halt)
	}
}

// bringUpSecondaryCores wakes cores 1-3 (§4.9). Their stacks are
// fixed, contiguous 16 KB regions above the primary stack.
func bringUpSecondaryCores() {
	cpu := &pi4.Cores[0]

	var stackTops [arm64.NumCores - 1]uint64
	for i := range stackTops {
		stackTops[i] = secondaryStacksBase + uint64(i+1)*secondaryStackSize
	}

	arm64.SecondaryEntry = secondaryMain

	cpu.SMPInit(stackTops)
}

// secondaryMain is invoked on each secondary core once it has dropped
// to EL1, adopted the shared MMU configuration and loaded its own
// stack (arm64/smp_arm64.s: secondaryEntry -> secondaryDispatch).
//
//go:nosplit
func secondaryMain(core int) {
	ttbr0, tcr, mair := pi4.Cores[0].TranslationRegisters()
	pi4.InitSecondary(core, ttbr0, tcr, mair)

	cpu := &pi4.Cores[core]
	cpu.EnableInterrupts()

	// Secondary cores are a design extension point (spec §9): they
	// reach quiescence with their own timer armed and caches enabled,
	// but do not pull from the shared ready queue. Under emulation the
	// routed timer IRQ only reaches core 0 (§4.9), so each secondary
	// core instead polls its own interrupt-status bit every iteration
	// and re-arms locally when it finds the timer pending.
	for {
		arm64.WaitForInterrupt()

		if pi4.TimerPending(core) {
			cpu.Rearm()
		}
	}
}

func runShell() {
	c := console.New(pi4.Console)

	sh := shell.New()
	sh.Console = c
	sh.FS = fsAdapter{&root}
	sh.Sched = schedAdapter{scheduler}
	sh.Pages = &pages
	sh.Heap = &heap
	sh.Clock = &pi4.Cores[0]
	sh.Clear = func() { c.Puts("\x1b[2J\x1b[H") }
	sh.Now = func() string { return strconv.FormatInt(pi4.Cores[0].GetTime(), 10) + "ns" }

	c.HistoryPrev = sh.HistoryPrev
	c.HistoryNext = sh.HistoryNext
	c.Complete = sh.Complete

	for {
		sh.Run()
	}
}
