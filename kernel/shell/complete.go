// Tab completion over the shell's command set
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shell

import "strings"

// Commands is the full command set (§6), ordered for `help` output.
// Completion only succeeds for a prefix that matches exactly one entry;
// a prefix shared by several commands completes to nothing.
var Commands = []string{
	"help", "info", "time", "clear", "ps", "spawn", "kill", "top",
	"memtest", "mem", "alloc", "pgalloc", "pgfree", "history", "mmu",
	"ls", "cd", "pwd", "mkdir", "rmdir", "touch", "cat", "write", "rm",
}

// complete returns the sole command beginning with prefix, or
// ok=false if zero or more than one command matches (§6: "tab
// completion over the command set").
func complete(prefix string) (completed string, ok bool) {
	if prefix == "" {
		return "", false
	}

	match := ""
	matches := 0

	for _, c := range Commands {
		if strings.HasPrefix(c, prefix) {
			match = c
			matches++
		}
	}

	if matches != 1 {
		return "", false
	}

	return match, true
}
