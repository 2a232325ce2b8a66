// Command history ring buffer for the shell's Up/Down arrow keys
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shell

// HistorySize is the fixed history depth (§6: "16-entry command history").
const HistorySize = 16

// History is a fixed-capacity ring of the most recently entered
// commands, plus a browsing cursor for Up/Down navigation (§8, S6).
type History struct {
	entries [HistorySize]string
	count   int // number of valid entries, <= HistorySize
	head    int // index of the most recently added entry
	cursor  int // 0 = not browsing; 1..count = that many steps back
}

// Add records a non-empty command as the newest entry, overwriting the
// oldest once the ring is full. Resets the browsing cursor.
func (h *History) Add(cmd string) {
	if cmd == "" {
		return
	}

	h.head = (h.head + 1) % HistorySize
	h.entries[h.head] = cmd

	if h.count < HistorySize {
		h.count++
	}

	h.cursor = 0
}

// Prev steps one command further into the past (Up arrow). ok is
// false once the oldest entry has already been reached.
func (h *History) Prev() (cmd string, ok bool) {
	if h.cursor >= h.count {
		return "", false
	}

	h.cursor++
	idx := (h.head - h.cursor + 1 + HistorySize) % HistorySize

	return h.entries[idx], true
}

// Next steps one command back toward the present (Down arrow).
// Reaching the present (cursor back to 0) returns ok=false, signalling
// the caller to show an empty edit buffer.
func (h *History) Next() (cmd string, ok bool) {
	if h.cursor <= 0 {
		return "", false
	}

	h.cursor--

	if h.cursor == 0 {
		return "", false
	}

	idx := (h.head - h.cursor + 1 + HistorySize) % HistorySize

	return h.entries[idx], true
}

// List returns history entries oldest-first, for the `history` command.
func (h *History) List() []string {
	out := make([]string, 0, h.count)

	for i := h.count - 1; i >= 0; i-- {
		idx := (h.head - i + HistorySize) % HistorySize
		out = append(out, h.entries[idx])
	}

	return out
}
