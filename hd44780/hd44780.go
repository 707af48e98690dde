// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hd44780 controls a Hitachi HD44780 character LCD wired behind a
// PCF8574 I²C I/O expander (the common HW-061 "backpack" sold with LCD1602
// and LCD2004 modules). The controller's parallel bus is driven in 4-bit
// mode, so every command or character byte costs two enable pulses on the
// expander.
//
// Unlike backpacks with the R/W line tied low, this driver assumes R/W is
// connected and reads the controller's busy flag and address counter back
// over the bus. Cursor position and the mirrored text buffer are derived
// from the address counter the controller reports, not from counting on the
// host side.
//
// # Datasheets
//
// https://www.sparkfun.com/datasheets/LCD/HD44780.pdf
//
// https://www.ti.com/lit/ds/symlink/pcf8574.pdf
package hd44780

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// DefaultAddress is the factory address of the PCF8574 on HW-061 backpacks
// with all address jumpers open.
const DefaultAddress uint16 = 0x27

const packageName = "hd44780"

var (
	// ErrTimeout is returned when the busy flag does not clear within the
	// bounded poll. The device status pins at StateTimeout until
	// ClearTimeout is called.
	ErrTimeout = errors.New(packageName + ": busy flag did not clear")
	// ErrDeviceUnavailable is returned by New when nothing answers at the
	// expander's address.
	ErrDeviceUnavailable = errors.New(packageName + ": no device at address")
)

// State reports what the controller was doing at the last status read.
type State uint8

const (
	StateReady State = iota
	StateBusy
	StateTimeout
)

// PowerState gates the user command set. See TransmitCommand.
type PowerState uint8

const (
	PowerOn PowerState = iota
	PowerOff
)

// Opts holds the device configuration.
type Opts struct {
	// Rows and Cols describe the panel geometry. Zero values select a
	// 2x16 panel. Only 1 and 2 row panels are supported.
	Rows int
	Cols int
	// Addr is the expander's I²C address. Zero selects DefaultAddress.
	Addr uint16
	// OnTimeout, when non nil, is invoked synchronously after a busy poll
	// exhausts its bound. The handler decides the recovery policy; calling
	// ClearTimeout on the device is the only way to resume operation.
	OnTimeout func(*Dev)
	// Sleep replaces time.Sleep for every settle and scroll delay. Leave
	// nil outside of tests.
	Sleep func(time.Duration)
}

// Dev is a handle to an initialized display. It mirrors every visible cell
// and the cursor position so callers never deal in raw bus bytes.
//
// Dev performs no internal locking. If it is shared between goroutines the
// caller must serialize access.
type Dev struct {
	d    *i2c.Dev
	rows int
	cols int

	buf       []byte // visible cells, row major
	row, col  int
	ac        byte // controller address counter, as of the last status read
	status    State
	power     PowerState
	backlight bool
	on        bool // display pixels enabled
	cursor    bool
	blink     bool

	onTimeout func(*Dev)
	sleep     func(time.Duration)
}

func wrap(err error) error {
	if err == nil || strings.HasPrefix(err.Error(), packageName) {
		return err
	}
	return fmt.Errorf("%s: %w", packageName, err)
}

// New probes the expander, runs the controller's power-on handshake and
// returns a ready to use display. The handshake is strictly ordered and is
// not resumable; on any error the returned device is nil and the controller
// should be power cycled before trying again.
func New(bus i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	rows, cols, addr := opts.Rows, opts.Cols, opts.Addr
	if rows == 0 && cols == 0 {
		rows, cols = 2, 16
	}
	if addr == 0 {
		addr = DefaultAddress
	}
	if rows < 1 || rows > 2 || cols < 1 || cols > ddramSize/rows {
		return nil, fmt.Errorf("%s: unsupported geometry %dx%d", packageName, rows, cols)
	}
	dev := &Dev{
		d:         &i2c.Dev{Bus: bus, Addr: addr},
		rows:      rows,
		cols:      cols,
		buf:       make([]byte, rows*cols),
		backlight: true,
		onTimeout: opts.OnTimeout,
		sleep:     opts.Sleep,
	}
	if dev.sleep == nil {
		dev.sleep = time.Sleep
	}
	if err := dev.init(); err != nil {
		return nil, err
	}
	return dev, nil
}

// init forces the controller into a known 8-bit state, switches it to 4-bit
// mode, then configures it. See the datasheet pg. 46, figure 24.
func (dev *Dev) init() error {
	var probe [1]byte
	if err := dev.d.Tx(nil, probe[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	dev.sleep(powerOnTime)

	// The controller may be stranded halfway through a 4-bit transfer from
	// a previous run. Three 8-bit function-set pulses resynchronize it
	// regardless of the state it was left in.
	for _, hold := range resetHolds {
		if err := dev.tx(encode(0x03, ctrlEnable)); err != nil {
			return wrap(err)
		}
		if err := dev.d.Tx([]byte{encode(0x03, 0)}, nil); err != nil {
			return wrap(err)
		}
		dev.sleep(hold)
	}
	// One nibble-only function set drops the interface to 4 bits.
	if err := dev.tx(encode(0x02, ctrlEnable)); err != nil {
		return wrap(err)
	}
	if err := dev.tx(encode(0x02, 0)); err != nil {
		return wrap(err)
	}

	fs := instFunctionSet
	if dev.rows > 1 {
		fs |= instTwoLine
	}
	for _, b := range []byte{fs, instDisplayCtrl, instClear, instEntryMode, instDisplayCtrl | ctrlDisplayOn, instDisplayCtrl | ctrlDisplayOn | ctrlCursorOn} {
		if err := dev.send(b, false, true); err != nil {
			return err
		}
	}
	dev.on = true
	dev.cursor = true
	dev.power = PowerOn
	return nil
}

// locate reads the address counter back from the controller and maps it to
// a row and column. DDRAM addresses 0-39 are the first row, 64-103 the
// second.
func (dev *Dev) locate() error {
	if dev.status == StateTimeout {
		return ErrTimeout
	}
	if _, err := dev.readStatus(); err != nil {
		return wrap(err)
	}
	if dev.ac < rowTwoAddress {
		dev.row, dev.col = 0, int(dev.ac)
	} else {
		dev.row, dev.col = 1, int(dev.ac-rowTwoOffset)
	}
	return nil
}

// Print writes text at the current cursor position, wrapping to the second
// row when the first fills up. When the panel runs out of cells the cursor
// is parked at (0,0) and the rest of the text is dropped; the number of
// characters actually shown is returned. Running out of room is a
// documented policy, not an error.
func (dev *Dev) Print(text string) (int, error) {
	if err := dev.locate(); err != nil {
		return 0, err
	}
	start := dev.row*dev.cols + dev.col
	for i := 0; i < len(text); i++ {
		if start+i > len(dev.buf)-1 {
			if err := dev.SetCursorPosition(0, 0); err != nil {
				return i, err
			}
			return i, dev.locate()
		}
		if err := dev.send(text[i], true, true); err != nil {
			return i, err
		}
		dev.buf[start+i] = text[i]
		if int(dev.ac) == dev.cols {
			// End of the first row. The controller's DDRAM keeps going to
			// address 39, so hop to where the second row actually starts.
			if err := dev.SetCursorPosition(1, 0); err != nil {
				return i + 1, err
			}
		}
	}
	err := dev.locate()
	return len(text), err
}

// SetCursorPosition moves the cursor to the 0-indexed row and column.
// Out of range positions are ignored without touching the bus. This keeps
// the original lenient contract; use MoveTo for a checked variant.
//
// The mapping assumes the display has never been shifted. After Scroll the
// visible window is back where it started, so the two compose safely.
func (dev *Dev) SetCursorPosition(row, col int) error {
	if row < 0 || row >= dev.rows || col < 0 || col >= dev.cols {
		return nil
	}
	return dev.send(instSetAddress|rowOffsets[row]|byte(col), false, true)
}

// ReadCharacter returns the mirrored character at the 0-indexed row and
// column, without a bus transaction. Out of range positions return 0.
func (dev *Dev) ReadCharacter(row, col int) byte {
	if row < 0 || row >= dev.rows || col < 0 || col >= dev.cols {
		return 0
	}
	return dev.buf[row*dev.cols+col]
}

// Row returns the cursor row as of the last completed operation.
func (dev *Dev) Row() int {
	return dev.row
}

// Col returns the cursor column as of the last completed operation.
func (dev *Dev) Col() int {
	return dev.col
}

// State returns the controller status recorded by the last status read.
// StateReady must not be assumed before a status read reports it.
func (dev *Dev) State() State {
	return dev.status
}

// Power returns the power gate state. See TransmitCommand.
func (dev *Dev) Power() PowerState {
	return dev.power
}

// ClearTimeout releases a device pinned at StateTimeout. It is meant to be
// called by an OnTimeout handler, or after the caller has otherwise decided
// the controller is usable again. It does not touch the bus.
func (dev *Dev) ClearTimeout() {
	if dev.status == StateTimeout {
		dev.status = StateReady
	}
}
