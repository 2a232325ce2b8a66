// Serial console byte I/O and line editing
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package console implements the collaborator contract of spec §6: a
// byte-oriented sink/source plus an echoing line reader. It is built
// against a small interface rather than soc/bcm2711.UART directly so
// the line editor (backspace, Ctrl-C, Ctrl-U, history/completion hooks)
// is host-testable without a real PL011, matching this repo's split of
// hardware-touching leaf code from host-testable algorithmic code
// (SPEC_FULL §A.1).
package console

// Device is the subset of soc/bcm2711.UART the console package needs.
type Device interface {
	Tx(c byte)
	TryRx() (c byte, ok bool)
}

const (
	chCtrlA     = 0x01
	chCtrlC     = 0x03
	chCtrlD     = 0x04
	chBackspace = 0x08
	chCtrlL     = 0x0c
	chCtrlU     = 0x15
	chDelete    = 0x7f
	chCR        = '\r'
	chLF        = '\n'
	chEsc       = 0x1b
)

// Console wraps a Device with line buffering, echo, and the history /
// completion hooks the shell installs (§6: "16-entry command history,
// tab completion... Up/Down arrows through ANSI CSI sequences").
type Console struct {
	dev Device

	// HistoryPrev/HistoryNext back the Up/Down arrow keys; nil means no
	// history is wired (plain line editing only). Each returns the line
	// to display, or ok=false if there is nothing in that direction.
	HistoryPrev func() (line string, ok bool)
	HistoryNext func() (line string, ok bool)

	// Complete backs the Tab key; given the buffer so far, it returns a
	// single completion to splice in, or ok=false for no match.
	Complete func(prefix string) (completed string, ok bool)
}

// New wraps dev for line-oriented I/O.
func New(dev Device) *Console {
	return &Console{dev: dev}
}

// Putc writes one byte (§6: putc).
func (c *Console) Putc(b byte) {
	c.dev.Tx(b)
}

// Puts writes a string (§6: puts).
func (c *Console) Puts(s string) {
	for i := 0; i < len(s); i++ {
		c.dev.Tx(s[i])
	}
}

// TryGetc is the non-blocking read (§6: getc_nonblock returning -1
// when empty; here ok=false plays that role).
func (c *Console) TryGetc() (b byte, ok bool) {
	return c.dev.TryRx()
}

// Getc blocks until a byte is available (§6: getc).
func (c *Console) Getc() byte {
	for {
		if b, ok := c.dev.TryRx(); ok {
			return b
		}
	}
}

func (c *Console) redrawFrom(buf []byte, col int) {
	// Reprint buf[col:]; nothing already on the terminal is erased first.
	for i := col; i < len(buf); i++ {
		c.Putc(buf[i])
	}
}

func (c *Console) eraseTail(n int) {
	for i := 0; i < n; i++ {
		c.Puts("\b \b")
	}
}

// ReadLine echoes input and returns a complete line on Enter, with
// backspace, Ctrl-C and Ctrl-D (each returns an empty line immediately) and Ctrl-U
// (erase to line start) per §6. ANSI CSI Up/Down are recognised when
// HistoryPrev/HistoryNext are set; Tab is recognised when Complete is
// set.
func (c *Console) ReadLine() string {
	var buf []byte

	for {
		b := c.Getc()

		switch b {
		case chCR, chLF:
			c.Puts("\r\n")
			return string(buf)

		case chCtrlC, chCtrlD:
			c.eraseTail(len(buf))
			return ""

		case chCtrlU:
			c.eraseTail(len(buf))
			buf = buf[:0]

		case chCtrlA:
			// Move the terminal cursor back to the start of the typed
			// line; this editor has no interior cursor position of its
			// own, so typed/erased characters still act at the end.
			if len(buf) > 0 {
				c.Puts("\x1b[" + FormatDecimal(uint64(len(buf))) + "D")
			}

		case chCtrlL:
			c.Puts("\x1b[2J\x1b[H")
			c.Puts(string(buf))

		case chBackspace, chDelete:
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
				c.Puts("\b \b")
			}

		case '\t':
			if c.Complete == nil {
				continue
			}
			if completed, ok := c.Complete(string(buf)); ok {
				c.eraseTail(len(buf))
				buf = []byte(completed)
				c.Puts(completed)
			}

		case chEsc:
			c.handleEscape(&buf)

		default:
			buf = append(buf, b)
			c.Putc(b)
		}
	}
}

// handleEscape consumes a CSI sequence (ESC '[' code) and, for the Up
// ('A') / Down ('B') arrows, replaces the line buffer with the
// history entry in that direction.
func (c *Console) handleEscape(buf *[]byte) {
	if b := c.Getc(); b != '[' {
		return
	}

	code := c.Getc()

	switch code {
	case 'A':
		if c.HistoryPrev == nil {
			return
		}

		line, ok := c.HistoryPrev()
		if !ok {
			return
		}

		c.eraseTail(len(*buf))
		*buf = []byte(line)
		c.Puts(line)

	case 'B':
		if c.HistoryNext == nil {
			return
		}

		line, ok := c.HistoryNext()
		if !ok {
			// Back at "present": HistoryNext reports no entry past the
			// newest one, so the line reverts to empty rather than
			// staying on the last history entry shown.
			c.eraseTail(len(*buf))
			*buf = (*buf)[:0]
			return
		}

		c.eraseTail(len(*buf))
		*buf = []byte(line)
		c.Puts(line)
	}
}

// FormatDecimal renders n in decimal with no allocation-heavy fmt
// dependency (§6: "numeric formatting is a separate helper").
func FormatDecimal(n uint64) string {
	if n == 0 {
		return "0"
	}

	var digits [20]byte
	i := len(digits)

	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}

	return string(digits[i:])
}

// FormatHex renders n in lowercase hexadecimal, no leading zeroes
// (other than a single "0"), no "0x" prefix — callers prepend one
// where the spec's literal output requires it (§8, S3: "0x" followed
// by the digits).
func FormatHex(n uint64) string {
	if n == 0 {
		return "0"
	}

	const hexDigits = "0123456789abcdef"

	var digits [16]byte
	i := len(digits)

	for n > 0 {
		i--
		digits[i] = hexDigits[n&0xf]
		n >>= 4
	}

	return string(digits[i:])
}
