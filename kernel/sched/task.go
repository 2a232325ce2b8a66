// Task control blocks for a single-address-space preemptive kernel
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sched implements the fixed-pool task model and timer-IRQ-driven
// preemptive round-robin scheduler of §4.7, built on the trapframe format
// of arm64.Trapframe: a task switch is nothing but loading a different
// saved stack pointer at exception-return.
package sched

import (
	"unsafe"

	"github.com/ZackZahi/rpi4-bare-metal-os/arm64"
)

// State is one of the four TCB lifecycle states (§3, §4.7).
type State int

const (
	Dead State = iota
	Ready
	Running
	Blocked
)

func (s State) String() string {
	switch s {
	case Dead:
		return "DEAD"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	default:
		return "?"
	}
}

// StackSize is the fixed per-task stack size (§3: "8 KB").
const StackSize = 8 * 1024

// MaxName is the longest task name, excluding the terminator (§3: "<= 31
// bytes + terminator").
const MaxName = 31

// MaxTasks bounds the fixed task pool. Not named by the spec; chosen to
// comfortably exceed the shell's own spawn/kill exercise commands.
const MaxTasks = 32

// TCB is a fixed-size task control block (§3). Task 0's stack field is
// never populated: it is adopted, not created, and represents the
// current execution context (the shell) rather than an owned region.
type TCB struct {
	ID    int
	State State
	Name  [MaxName + 1]byte

	stack [StackSize]byte

	// SP is the saved stack pointer; while not RUNNING it points at the
	// top of a trapframe built on this task's own stack (§3).
	SP uint64

	// SleepUntil is the absolute tick at which a BLOCKED task becomes
	// eligible again; meaningful only while BLOCKED.
	SleepUntil uint64

	// next is the ready-queue link; null (nil) when not queued.
	next *TCB
}

func (t *TCB) setName(name string) {
	n := copy(t.Name[:MaxName], name)
	t.Name[n] = 0
}

// NameString returns the task's name as a Go string.
func (t *TCB) NameString() string {
	n := 0
	for n < MaxName && t.Name[n] != 0 {
		n++
	}
	return string(t.Name[:n])
}

// stackTop returns the address one-past the last usable byte of this
// task's stack, which NewTrapframe (arm64.NewTrapframe) requires to be
// 16-byte aligned.
func (t *TCB) stackTop() uint64 {
	top := uint64(uintptr(unsafe.Pointer(&t.stack))) + StackSize
	return top &^ 0xf
}

func (t *TCB) synthesizeFrame(entry uint64, exitTrampoline uint64) {
	sp, _ := arm64.NewTrapframe(t.stackTop(), entry, exitTrampoline)
	t.SP = sp
}
