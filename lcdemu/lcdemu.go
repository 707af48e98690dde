// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lcdemu is a software model of an HD44780 character LCD behind a
// PCF8574 backpack. It implements i2c.Bus, so any driver that speaks the
// 4-bit expander protocol can run against it unmodified: the expander
// latch, the enable edges, nibble assembly, the instruction set, DDRAM
// addressing and busy flag/address counter read-back are all modeled.
//
// It exists so the hd44780 driver can be developed and tested without a
// panel on the desk, and it can draw what the panel would show, either to
// a terminal or to an image.
package lcdemu

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
)

// Expander wiring, matching the HW-061 backpack.
const (
	pinRS        byte = 1 << 0
	pinRW        byte = 1 << 1
	pinEnable    byte = 1 << 2
	pinBacklight byte = 1 << 3

	busyFlag byte = 0x80

	ddramSize = 80
)

// Opts holds the emulated panel configuration.
type Opts struct {
	// Rows and Cols describe the visible window. Zero values select 2x16.
	Rows int
	Cols int
	// Addr is the address the emulated expander answers at. Zero selects
	// 0x27, the usual HW-061 default.
	Addr uint16
}

// Emu is the emulated backpack plus controller. It implements i2c.Bus.
//
// The exported counters and the BusyReads knob let tests assert on bus
// traffic and exercise the driver's busy poll without real time passing.
type Emu struct {
	// Writes and Reads count bus transactions carrying a write or read
	// payload respectively.
	Writes int
	Reads  int
	// BusyReads makes the next n status reads report the busy flag set.
	BusyReads int

	mu   sync.Mutex
	addr uint16
	rows int
	cols int

	latch     byte // expander output latch
	mode4     bool // interface width, false until a 4-bit function set
	twoLine   bool
	phase     bool // low nibble of a host write pending
	hi        byte
	readPhase bool // low nibble of a controller read pending
	ac        byte
	shift     int
	increment bool
	displayOn bool
	cursorOn  bool
	blinkOn   bool
	ddram     [ddramSize]byte
}

// New returns an emulated panel in its power-on state: 8-bit interface,
// display off, DDRAM blank.
func New(opts *Opts) *Emu {
	if opts == nil {
		opts = &Opts{}
	}
	e := &Emu{
		addr:      opts.Addr,
		rows:      opts.Rows,
		cols:      opts.Cols,
		increment: true,
	}
	if e.rows == 0 && e.cols == 0 {
		e.rows, e.cols = 2, 16
	}
	if e.addr == 0 {
		e.addr = 0x27
	}
	for i := range e.ddram {
		e.ddram[i] = ' '
	}
	return e
}

func (e *Emu) String() string {
	return fmt.Sprintf("lcdemu: %dx%d @%#x", e.rows, e.cols, e.addr)
}

// SetSpeed implements i2c.Bus. The emulated bus has no clock to set.
func (e *Emu) SetSpeed(f physic.Frequency) error {
	return nil
}

// Tx implements i2c.Bus. Writes drive the expander latch byte by byte,
// reads return the pin state, with P4-P7 driven by the controller while a
// read cycle's enable line is high.
func (e *Emu) Tx(addr uint16, w, r []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if addr != e.addr {
		return fmt.Errorf("lcdemu: no device at %#x", addr)
	}
	if len(w) > 0 {
		e.Writes++
		for _, b := range w {
			e.write(b)
		}
	}
	if len(r) > 0 {
		e.Reads++
		for i := range r {
			r[i] = e.read()
		}
	}
	return nil
}

// write latches one expander byte. The controller acts on the falling edge
// of the enable line, sampling whatever was asserted while it was high.
func (e *Emu) write(b byte) {
	prev := e.latch
	e.latch = b
	if prev&pinEnable != 0 && b&pinEnable == 0 {
		e.fallingEdge(prev)
	}
}

func (e *Emu) fallingEdge(prev byte) {
	if prev&pinRW != 0 {
		// A completed read cycle moves the controller to its next output
		// nibble; a completed data read also advances the address counter.
		e.readPhase = !e.readPhase
		if !e.readPhase {
			if prev&pinRS != 0 {
				e.advance(e.increment)
			} else if e.BusyReads > 0 {
				e.BusyReads--
			}
		}
		return
	}
	e.readPhase = false
	nibble := prev >> 4
	if !e.mode4 {
		// Only the upper data lines are wired, so each pulse carries a
		// whole instruction with the low bits unreadable.
		if prev&pinRS == 0 {
			e.execute(nibble << 4)
		}
		return
	}
	if !e.phase {
		e.hi = nibble
		e.phase = true
		return
	}
	e.phase = false
	full := e.hi<<4 | nibble
	if prev&pinRS != 0 {
		e.writeData(full)
	} else {
		e.execute(full)
	}
}

// read returns what the host would see on the expander pins.
func (e *Emu) read() byte {
	if e.latch&pinEnable == 0 || e.latch&pinRW == 0 {
		return e.latch
	}
	var out byte
	if e.latch&pinRS == 0 {
		out = e.ac & ^busyFlag
		if e.BusyReads > 0 {
			out |= busyFlag
		}
	} else if i := e.cellIndex(e.ac); i >= 0 {
		out = e.ddram[i]
	}
	if e.readPhase {
		out <<= 4
	}
	return out&0xf0 | e.latch&0x0f
}

func (e *Emu) execute(inst byte) {
	switch {
	case inst >= 0x80:
		e.ac = inst & 0x7f
	case inst >= 0x40:
		// CGRAM addressing, out of scope.
	case inst >= 0x20:
		e.mode4 = inst&0x10 == 0
		e.twoLine = inst&0x08 != 0
		e.phase = false
	case inst >= 0x10:
		if inst&0x08 != 0 {
			w := e.rowWidth()
			if inst&0x04 != 0 {
				e.shift = (e.shift + w - 1) % w
			} else {
				e.shift = (e.shift + 1) % w
			}
		} else {
			e.advance(inst&0x04 != 0)
		}
	case inst >= 0x08:
		e.displayOn = inst&0x04 != 0
		e.cursorOn = inst&0x02 != 0
		e.blinkOn = inst&0x01 != 0
	case inst >= 0x04:
		e.increment = inst&0x02 != 0
	case inst >= 0x02:
		e.ac = 0
		e.shift = 0
	case inst == 0x01:
		for i := range e.ddram {
			e.ddram[i] = ' '
		}
		e.ac = 0
		e.shift = 0
		e.increment = true
	}
}

func (e *Emu) writeData(b byte) {
	if i := e.cellIndex(e.ac); i >= 0 {
		e.ddram[i] = b
	}
	e.advance(e.increment)
}

// cellIndex maps a DDRAM address to a linear cell, or -1 for the gaps in
// the two-line address map.
func (e *Emu) cellIndex(ac byte) int {
	if !e.twoLine {
		if int(ac) < ddramSize {
			return int(ac)
		}
		return -1
	}
	switch {
	case ac <= 0x27:
		return int(ac)
	case ac >= 0x40 && ac <= 0x67:
		return int(ac-0x40) + 40
	}
	return -1
}

// advance steps the address counter, hopping between rows at the row ends
// exactly as the silicon does.
func (e *Emu) advance(forward bool) {
	if !e.twoLine {
		if forward {
			e.ac = (e.ac + 1) % ddramSize
		} else {
			e.ac = (e.ac + ddramSize - 1) % ddramSize
		}
		return
	}
	if forward {
		switch e.ac {
		case 0x27:
			e.ac = 0x40
		case 0x67:
			e.ac = 0x00
		default:
			e.ac++
		}
	} else {
		switch e.ac {
		case 0x40:
			e.ac = 0x27
		case 0x00:
			e.ac = 0x67
		default:
			e.ac--
		}
	}
}

// AddressCounter returns the controller's current DDRAM address.
func (e *Emu) AddressCounter() byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ac
}

// DisplayOn reports whether the controller has its pixels enabled.
func (e *Emu) DisplayOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.displayOn
}

// CursorOn reports whether the underline cursor is enabled.
func (e *Emu) CursorOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursorOn
}

// BlinkOn reports whether the blinking block cursor is enabled.
func (e *Emu) BlinkOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blinkOn
}

// BacklightOn reports the state of the backpack's backlight line.
func (e *Emu) BacklightOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latch&pinBacklight != 0
}

// Line returns the characters visible on one row, accounting for any
// display shift.
func (e *Emu) Line(row int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.line(row))
}

// Screen returns every visible row.
func (e *Emu) Screen() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := make([]string, e.rows)
	for r := range rows {
		rows[r] = string(e.line(r))
	}
	return rows
}

// rowWidth is the length of one internal row: 40 cells in the two-line
// address map, the whole DDRAM in one-line mode.
func (e *Emu) rowWidth() int {
	if e.twoLine {
		return 40
	}
	return ddramSize
}

func (e *Emu) line(row int) []byte {
	w := e.rowWidth()
	b := make([]byte, e.cols)
	for c := range b {
		b[c] = e.ddram[row*40+(c+e.shift)%w]
	}
	return b
}
