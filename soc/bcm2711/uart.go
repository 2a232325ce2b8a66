// BCM2711 PL011 UART driver
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcm2711

import (
	"github.com/ZackZahi/rpi4-bare-metal-os/arm64"
	"github.com/ZackZahi/rpi4-bare-metal-os/internal/reg"
)

// PL011 register offsets (ARM DDI 0183, PrimeCell UART).
const (
	uartDR   = 0x00
	uartFR   = 0x18
	uartIBRD = 0x24
	uartFBRD = 0x28
	uartLCRH = 0x2c
	uartCR   = 0x30
	uartIMSC = 0x38
	uartICR  = 0x44

	frTXFF = 1 << 5 // transmit FIFO full
	frRXFE = 1 << 4 // receive FIFO empty

	crUARTEN = 1 << 0
	crTXE    = 1 << 8
	crRXE    = 1 << 9

	lcrhFEN  = 1 << 4 // enable FIFOs
	lcrhWLEN = 0b11 << 5 // 8 data bits
)

// UART0Base is UART0's physical base address (§6 console collaborator).
const UART0Base = PeripheralBase + 0x20_1000

// UART is a PL011 console port.
type UART struct {
	base uint32
}

// UART0 is the board's primary console.
var UART0 = &UART{base: UART0Base}

// Init configures the port for 115200 8N1 with FIFOs enabled, no
// interrupts (the console is polled, §6).
func (u *UART) Init() {
	reg.Write(u.base+uartCR, 0)
	reg.Write(u.base+uartICR, 0x7ff)

	// assumes a 48 MHz UART reference clock (BCM2711 default);
	// baud divisor = 48e6 / (16 * 115200) = 26.041666...
	reg.Write(u.base+uartIBRD, 26)
	reg.Write(u.base+uartFBRD, 3)

	reg.Write(u.base+uartLCRH, lcrhFEN|lcrhWLEN)
	reg.Write(u.base+uartCR, crUARTEN|crTXE|crRXE)

	arm64.Busyloop(150)
}

// Tx transmits a single byte, blocking while the transmit FIFO is full.
func (u *UART) Tx(c byte) {
	for reg.Get(u.base+uartFR, 5, 1) != 0 {
	}

	reg.Write(u.base+uartDR, uint32(c))
}

// Write transmits every byte of buf in order.
func (u *UART) Write(buf []byte) {
	for _, c := range buf {
		u.Tx(c)
	}
}

// TryRx returns the next received byte without blocking; ok is false
// when the receive FIFO is empty (§6: "getc_nonblock returning -1 when
// empty").
func (u *UART) TryRx() (c byte, ok bool) {
	if reg.Get(u.base+uartFR, 4, 1) != 0 {
		return 0, false
	}

	return byte(reg.Read(u.base + uartDR)), true
}

// Rx blocks until a byte is received.
func (u *UART) Rx() byte {
	for {
		if c, ok := u.TryRx(); ok {
			return c
		}
	}
}
