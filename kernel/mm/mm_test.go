// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mm

import (
	"testing"
	"unsafe"
)

func newTestPages(t *testing.T, npages int) *Pages {
	t.Helper()

	bitmap := make([]byte, byteLen(npages))
	region := make([]byte, npages*PageSize)

	p := &Pages{}
	p.Init(uint64(uintptr(unsafe.Pointer(&region[0]))), npages, bitmap)

	return p
}

func TestPagesAllocFreeRun(t *testing.T) {
	p := newTestPages(t, 16)

	addr, ok := p.AllocN(4)
	if !ok {
		t.Fatalf("AllocN(4) failed on fresh pool")
	}

	total, free, used := p.Stats()
	if total != 16 || free != 12 || used != 4 {
		t.Fatalf("Stats() = %d/%d/%d, want 16/12/4", total, free, used)
	}

	p.FreeN(addr, 4)

	total, free, used = p.Stats()
	if free != 16 || used != 0 {
		t.Fatalf("Stats() after FreeN = %d/%d, want 16/0", free, used)
	}
}

func TestPagesAllocZeroFails(t *testing.T) {
	p := newTestPages(t, 8)

	if _, ok := p.AllocN(0); ok {
		t.Fatalf("AllocN(0) must fail (§4.3 edge case)")
	}
}

func TestPagesExhaustion(t *testing.T) {
	p := newTestPages(t, 4)

	if _, ok := p.AllocN(4); !ok {
		t.Fatalf("AllocN(4) should succeed exactly once on a 4-page pool")
	}

	if _, ok := p.AllocN(1); ok {
		t.Fatalf("AllocN(1) must fail once the pool is exhausted")
	}
}

func TestPagesDoubleFreeIdempotent(t *testing.T) {
	p := newTestPages(t, 8)

	addr, _ := p.AllocN(2)
	p.FreeN(addr, 2)
	p.FreeN(addr, 2) // double free: must not go negative or panic

	_, free, used := p.Stats()
	if free != 8 || used != 0 {
		t.Fatalf("double free corrupted counts: free=%d used=%d", free, used)
	}
}

func TestPagesFreeBelowBaseRejected(t *testing.T) {
	p := newTestPages(t, 8)

	p.FreeN(0, 1)

	_, free, _ := p.Stats()
	if free != 8 {
		t.Fatalf("FreeN below base must be silently rejected, free=%d", free)
	}
}

func TestHeapAllocFree(t *testing.T) {
	p := newTestPages(t, HeapPages+4)
	h := &Heap{}

	if ok := h.Init(p); !ok {
		t.Fatalf("Heap.Init failed")
	}

	ptr, ok := h.Alloc(32)
	if !ok {
		t.Fatalf("Alloc(32) failed")
	}

	var badMagic bool
	h.Free(ptr, func(uint64) { badMagic = true })

	if badMagic {
		t.Fatalf("Free reported bad magic on a freshly allocated block")
	}
}

func TestHeapFreeListReuse(t *testing.T) {
	p := newTestPages(t, HeapPages+4)
	h := &Heap{}
	h.Init(p)

	a, _ := h.Alloc(64)
	h.Free(a, nil)

	brkBefore := h.brk

	b, ok := h.Alloc(32)
	if !ok {
		t.Fatalf("Alloc(32) after free failed")
	}

	if h.brk != brkBefore {
		t.Fatalf("first-fit reuse should not advance brk, brk=%#x want %#x", h.brk, brkBefore)
	}

	if b != a {
		t.Fatalf("expected first-fit to reuse the freed block at %#x, got %#x", a, b)
	}
}

func TestHeapLargeAllocGoesToPages(t *testing.T) {
	p := newTestPages(t, HeapPages+4)
	h := &Heap{}
	h.Init(p)

	_, free, _ := p.Stats()

	ptr, ok := h.Alloc(PageSize)
	if !ok {
		t.Fatalf("large Alloc failed")
	}

	_, freeAfter, _ := p.Stats()
	if freeAfter >= free {
		t.Fatalf("large allocation should consume pages directly: before=%d after=%d", free, freeAfter)
	}

	h.Free(ptr, nil)

	_, freeRestored, _ := p.Stats()
	if freeRestored != free {
		t.Fatalf("freeing a page-backed block should return pages: got %d want %d", freeRestored, free)
	}
}

func TestHeapMagicPrecedesUserPointer(t *testing.T) {
	p := newTestPages(t, HeapPages+4)
	h := &Heap{}
	h.Init(p)

	ptr, ok := h.Alloc(32)
	if !ok {
		t.Fatalf("Alloc(32) failed")
	}

	magicAddr := ptr - uint64(unsafe.Sizeof(uint32(0)))
	got := *(*uint32)(unsafe.Pointer(uintptr(magicAddr)))
	if got != headerMagic {
		t.Fatalf("word immediately before the returned pointer = %#x, want magic %#x", got, headerMagic)
	}
}

func TestHeapBadMagicLeaksAndLogs(t *testing.T) {
	p := newTestPages(t, HeapPages+4)
	h := &Heap{}
	h.Init(p)

	ptr, _ := h.Alloc(16)

	var logged bool
	h.Free(ptr, func(uint64) { logged = true })
	if logged {
		t.Fatalf("first free must not report bad magic")
	}

	logged = false
	h.Free(ptr, func(uint64) { logged = true })
	if !logged {
		t.Fatalf("freeing an already-freed block must report bad magic, not corrupt the free list")
	}
}
