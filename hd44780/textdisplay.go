// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
)

// cmdByte is the in-band marker for instruction bytes in Write, following
// the convention of the other periph character displays.
const cmdByte byte = 0xfe

// ErrNotImplemented is returned for text display features this panel does
// not have.
var ErrNotImplemented = fmt.Errorf("%s: %w", packageName, display.ErrNotImplemented)

// Not supported by this device. Returns display.ErrNotImplemented.
func (dev *Dev) AutoScroll(enabled bool) error {
	return ErrNotImplemented
}

// Clear clears the screen, the mirror, and moves the cursor to (0,0).
func (dev *Dev) Clear() error {
	return dev.TransmitCommand(ClearDisplay)
}

// Cols returns the number of columns the display supports.
func (dev *Dev) Cols() int {
	return dev.cols
}

// Cursor sets the cursor mode. You can pass multiple arguments.
// Cursor(CursorOff, CursorUnderline)
func (dev *Dev) Cursor(modes ...display.CursorMode) error {
	val := instDisplayCtrl
	if dev.on {
		val |= ctrlDisplayOn
	}
	for _, mode := range modes {
		switch mode {
		case display.CursorOff:
			dev.cursor = false
			dev.blink = false
		case display.CursorUnderline:
			dev.cursor = true
			val |= ctrlCursorOn
		case display.CursorBlink, display.CursorBlock:
			dev.cursor = true
			dev.blink = true
			val |= ctrlBlinkOn
		default:
			return fmt.Errorf("%s: unexpected cursor mode %d", packageName, mode)
		}
	}
	return dev.send(val, false, true)
}

// Display turns the display pixels on or off. This is the controller's
// display-control bit, not the power gate; TransmitCommand(DisplayOff)
// drops the whole expander instead.
func (dev *Dev) Display(on bool) error {
	dev.on = on
	val := instDisplayCtrl
	if on {
		val |= ctrlDisplayOn
	}
	if dev.cursor {
		val |= ctrlCursorOn
	}
	if dev.blink {
		val |= ctrlBlinkOn
	}
	return dev.send(val, false, true)
}

// Home moves the cursor home (MinRow(), MinCol()).
func (dev *Dev) Home() error {
	return dev.TransmitCommand(ReturnHome)
}

// MinCol returns the min column position.
func (dev *Dev) MinCol() int {
	return 1
}

// MinRow returns the min row position.
func (dev *Dev) MinRow() int {
	return 1
}

// Move moves the cursor forward or backward.
func (dev *Dev) Move(dir display.CursorDirection) error {
	val := instShift
	switch dir {
	case display.Backward:
	case display.Forward:
		val |= shiftRight
	case display.Down, display.Up:
		fallthrough
	default:
		return ErrNotImplemented
	}
	return dev.send(val, false, true)
}

// MoveTo moves the cursor to an arbitrary position. Unlike
// SetCursorPosition this follows the 1-indexed display.TextDisplay
// contract and reports out of range positions as errors.
func (dev *Dev) MoveTo(row, col int) error {
	if row < dev.MinRow() || row > dev.rows || col < dev.MinCol() || col > dev.cols {
		return fmt.Errorf("%s: MoveTo(%d,%d) out of range", packageName, row, col)
	}
	return dev.SetCursorPosition(row-1, col-1)
}

// Rows returns the number of rows the display supports.
func (dev *Dev) Rows() int {
	return dev.rows
}

func (dev *Dev) String() string {
	return fmt.Sprintf("%s: %dx%d @%#x", packageName, dev.rows, dev.cols, dev.d.Addr)
}

// Write writes a set of bytes to the display at the cursor position. A
// leading cmdByte switches the rest of the slice to raw instructions; those
// bypass the mirror, so prefer TransmitCommand for anything it covers.
func (dev *Dev) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if p[0] == cmdByte {
		for _, b := range p[1:] {
			if err := dev.send(b, false, true); err != nil {
				return 0, err
			}
		}
		return len(p) - 1, nil
	}
	return dev.Print(string(p))
}

// WriteString writes a string to the display at the cursor position.
func (dev *Dev) WriteString(text string) (int, error) {
	return dev.Print(text)
}

// Backlight switches the backpack's backlight transistor. Any non zero
// intensity is "on"; the single pin offers nothing finer.
func (dev *Dev) Backlight(intensity display.Intensity) error {
	dev.backlight = intensity > 0
	return wrap(dev.d.Tx([]byte{encode(0, dev.flags(false))}, nil))
}

// Halt clears the display and shuts the pixels and backlight off.
func (dev *Dev) Halt() error {
	if err := dev.Clear(); err != nil {
		return err
	}
	if err := dev.Backlight(0); err != nil {
		return err
	}
	return dev.Display(false)
}

var _ conn.Resource = &Dev{}
var _ display.TextDisplay = &Dev{}
var _ display.DisplayBacklight = &Dev{}
