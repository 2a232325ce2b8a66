// Small-object allocator for a single-address-space preemptive kernel
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mm

import (
	"sync"
	"unsafe"
)

// HeapPages is the number of pages carved from the page allocator to
// form the primary heap arena at initialisation (§4.4).
const HeapPages = 64

const (
	blockAlign = 16
	headerSize = int(unsafe.Sizeof(blockHeader{}))

	headerMagic     = 0xb10c5afe
	headerMagicFree = 0

	// a request is page-allocated directly once it exceeds half a page
	// (§4.4 step 2).
	pageAllocThreshold = PageSize / 2
)

// blockHeader precedes every block returned to a caller, whether carved
// from the bump-pointer arena, taken from the free list, or backed
// directly by whole pages. magic is the last field so it sits
// immediately before the returned user pointer (§8 Testable Property 4:
// "the word immediately before it holds the block magic").
type blockHeader struct {
	size  uint64 // usable size, excluding the header
	next  uint64 // free-list link (address of next header, 0 if none)
	pages uint32 // non-zero: this block is page-allocated, this many pages
	magic uint32
}

// Heap is the kernel's small-object allocator: a bump pointer over a
// fixed arena plus a singly-linked free list of returned blocks, backed
// by Pages for large requests and for carving the arena itself. There is
// no coalescing (§4.4: "accepted for the kernel's allocation pattern —
// few, small, long-lived").
type Heap struct {
	sync.Mutex

	pages *Pages

	arenaStart uint64
	arenaEnd   uint64
	brk        uint64

	freeList uint64 // address of first free block's header, 0 if empty
}

// Init carves HeapPages pages from pages to form the primary arena.
func (h *Heap) Init(pages *Pages) bool {
	addr, ok := pages.AllocN(HeapPages)
	if !ok {
		return false
	}

	h.Lock()
	defer h.Unlock()

	h.pages = pages
	h.arenaStart = addr
	h.arenaEnd = addr + HeapPages*PageSize
	h.brk = addr
	h.freeList = 0

	return true
}

func roundUp(size, align int) int {
	return (size + align - 1) &^ (align - 1)
}

func headerAt(addr uint64) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(uintptr(addr)))
}

// Alloc returns a pointer to at least size usable bytes, or ok=false on
// exhaustion (§4.4, §4.10 — allocator exhaustion is never fatal).
func (h *Heap) Alloc(size int) (ptr uint64, ok bool) {
	if size <= 0 {
		return 0, false
	}

	rounded := roundUp(size, blockAlign)
	total := headerSize + rounded

	if rounded > pageAllocThreshold {
		return h.allocPages(rounded)
	}

	h.Lock()

	if addr, found := h.takeFreeBlock(rounded); found {
		h.Unlock()
		return addr, true
	}

	if h.brk+uint64(total) <= h.arenaEnd {
		hdr := headerAt(h.brk)
		hdr.magic = headerMagic
		hdr.pages = 0
		hdr.size = uint64(rounded)
		hdr.next = 0

		addr := h.brk + uint64(headerSize)
		h.brk += uint64(total)

		h.Unlock()
		return addr, true
	}

	h.Unlock()

	return h.allocPages(rounded)
}

// takeFreeBlock performs a first-fit scan of the free list; caller holds
// the lock.
func (h *Heap) takeFreeBlock(size int) (addr uint64, ok bool) {
	var prev uint64

	cur := h.freeList

	for cur != 0 {
		hdr := headerAt(cur)

		if hdr.size >= uint64(size) {
			if prev == 0 {
				h.freeList = hdr.next
			} else {
				headerAt(prev).next = hdr.next
			}

			hdr.magic = headerMagic
			hdr.next = 0

			return cur + uint64(headerSize), true
		}

		prev = cur
		cur = hdr.next
	}

	return 0, false
}

// allocPages services a request directly from the page allocator (§4.4
// step 2/step 5 fallback), stamping the header with the page count so
// Free knows to return pages rather than push onto the free list.
func (h *Heap) allocPages(size int) (addr uint64, ok bool) {
	total := headerSize + size
	npages := (total + PageSize - 1) / PageSize

	base, ok := h.pages.AllocN(npages)
	if !ok {
		return 0, false
	}

	hdr := headerAt(base)
	hdr.magic = headerMagic
	hdr.pages = uint32(npages)
	hdr.size = uint64(size)
	hdr.next = 0

	return base + uint64(headerSize), true
}

// Free recovers the header from ptr, verifies the magic word, clears it,
// and either returns pages to the page allocator or pushes the block
// onto the free list. A magic mismatch is logged and the block leaked
// (§4.10: "Bad heap magic on free: log, leak the block, continue").
func (h *Heap) Free(ptr uint64, onBadMagic func(ptr uint64)) {
	headerAddr := ptr - uint64(headerSize)
	hdr := headerAt(headerAddr)

	h.Lock()
	defer h.Unlock()

	if hdr.magic != headerMagic {
		if onBadMagic != nil {
			onBadMagic(ptr)
		}
		return
	}

	hdr.magic = headerMagicFree

	if hdr.pages > 0 {
		h.pages.FreeN(headerAddr, int(hdr.pages))
		return
	}

	hdr.next = h.freeList
	h.freeList = headerAddr
}
