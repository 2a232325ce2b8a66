// Physical page allocator for a single-address-space preemptive kernel
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mm implements the kernel's physical page allocator (§4.3) and
// small-object heap allocator (§4.4), grounded on the bitmap/free-list
// discipline this kernel's teacher uses for its DMA region allocator
// (dma.Region), adapted from a first-fit container/list design to the
// bitmap-scan and bump-pointer design §4.3/§4.4 require.
package mm

import (
	"sync"

	"github.com/ZackZahi/rpi4-bare-metal-os/kernel/klog"
)

// PageSize is the physical page granule (§4.2: 4 KB translation unit).
const PageSize = 4096

// DebugDoubleFree enables double-free detection on FreeN (§9 Open
// Question: "double-free detection"). The base contract treats clearing
// an already-clear bit as an idempotent no-op; flipping this to true
// adds a diagnostic log at every such call without changing that
// contract, so a release build pays nothing for the check.
const DebugDoubleFree = false

// Pages owns a contiguous physical region of at least 64 MB (§4.3),
// tracked by a bitmap placed at a fixed, known-safe address. One bit per
// page; set means allocated.
type Pages struct {
	sync.Mutex

	base   uint64
	count  int
	bitmap []byte

	free int
}

// Init uses bitmap as the allocator's bitmap and manages
// npages*PageSize bytes starting at regionBase. bitmap must cover
// reserved memory at least ceil(npages/8) bytes long, outside the managed
// region (§4.3: "a bitmap placed at a fixed, known-safe address").
func (p *Pages) Init(regionBase uint64, npages int, bitmap []byte) {
	p.Lock()
	defer p.Unlock()

	p.base = regionBase
	p.count = npages
	p.bitmap = bitmap[:byteLen(npages)]

	for i := range p.bitmap {
		p.bitmap[i] = 0
	}

	p.free = npages
}

func byteLen(npages int) int {
	return (npages + 7) / 8
}

func (p *Pages) bitSet(i int) bool {
	return p.bitmap[i/8]&(1<<uint(i%8)) != 0
}

func (p *Pages) setBit(i int) {
	p.bitmap[i/8] |= 1 << uint(i%8)
}

func (p *Pages) clearBit(i int) {
	p.bitmap[i/8] &^= 1 << uint(i%8)
}

// AllocN scans linearly for count consecutive clear bits, sets them, and
// returns the physical base address of the run. ok is false (the
// null-equivalent of §4.3/§4.10) when count is zero or no such run
// exists; allocator exhaustion is never fatal.
func (p *Pages) AllocN(count int) (addr uint64, ok bool) {
	if count <= 0 {
		return 0, false
	}

	p.Lock()
	defer p.Unlock()

	run := 0

	for i := 0; i < p.count; i++ {
		if p.bitSet(i) {
			run = 0
			continue
		}

		run++

		if run < count {
			continue
		}

		start := i - count + 1

		for j := start; j <= i; j++ {
			p.setBit(j)
		}

		p.free -= count

		return p.base + uint64(start)*PageSize, true
	}

	return 0, false
}

// FreeN clears the bit run matching a prior AllocN(addr, count) call
// unconditionally — callers must free what they allocated (§4.3). An
// addr below the managed base is silently rejected; a double-free clears
// already-clear bits (idempotent, not detected — §9 Open Question).
func (p *Pages) FreeN(addr uint64, count int) {
	if addr < p.base || count <= 0 {
		return
	}

	index := int((addr - p.base) / PageSize)

	p.Lock()
	defer p.Unlock()

	if index < 0 || index+count > p.count {
		return
	}

	for j := index; j < index+count; j++ {
		if p.bitSet(j) {
			p.clearBit(j)
			p.free++
		} else if DebugDoubleFree {
			klog.Warn("mm: double free of already-free page")
		}
	}
}

// Stats reports total, free and used page counts.
func (p *Pages) Stats() (total, free, used int) {
	p.Lock()
	defer p.Unlock()

	return p.count, p.free, p.count - p.free
}
