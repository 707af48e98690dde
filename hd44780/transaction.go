// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

import "time"

// Expander wiring, fixed by the HW-061 board layout: the data nibble rides
// on P4-P7, the control lines on P0-P3.
const (
	ctrlRS        byte = 1 << 0 // register select: low command, high data
	ctrlRW        byte = 1 << 1 // read/write: low write, high read
	ctrlEnable    byte = 1 << 2
	ctrlBacklight byte = 1 << 3
)

// HD44780 instruction set, datasheet pg. 24, table 6.
const (
	instClear       byte = 0x01
	instHome        byte = 0x02
	instEntryMode   byte = 0x06 // auto increment, no display shift
	instDisplayCtrl byte = 0x08
	instShift       byte = 0x10
	instFunctionSet byte = 0x20
	instSetAddress  byte = 0x80

	ctrlDisplayOn byte = 0x04 // instDisplayCtrl modifier
	ctrlCursorOn  byte = 0x02 // instDisplayCtrl modifier
	ctrlBlinkOn   byte = 0x01 // instDisplayCtrl modifier
	shiftDisplay  byte = 0x08 // instShift modifier
	shiftRight    byte = 0x04 // instShift and instEntryMode modifier
	instTwoLine   byte = 0x08 // instFunctionSet modifier

	busyFlag byte = 0x80

	// DDRAM geometry. 80 cells total, the second row starting at address
	// 64 regardless of the visible column count.
	ddramSize     = 80
	rowTwoAddress = 40
	rowTwoOffset  = 64
)

var rowOffsets = [...]byte{0x00, 0x40}

// Timing. The settle time dominates every transaction; the controller's
// own minimums are in the hundreds of nanoseconds, but the expander write
// itself and 1ms of margin keep slow panels happy.
const (
	settleTime     = time.Millisecond
	powerOnTime    = 45 * time.Millisecond
	busyPollLimit  = 20
	scrollStepTime = 100 * time.Millisecond
)

// Enable-low holds after each of the three 8-bit reset pulses.
var resetHolds = [...]time.Duration{5 * time.Millisecond, time.Millisecond, time.Millisecond}

// encode packs a data nibble and the control line state into the byte
// latched by the expander.
func encode(nibble, flags byte) byte {
	return nibble<<4 | flags&0x0f
}

// flags returns the control bits for a write cycle.
func (dev *Dev) flags(data bool) byte {
	var f byte
	if data {
		f |= ctrlRS
	}
	if dev.backlight {
		f |= ctrlBacklight
	}
	return f
}

// tx writes one byte to the expander and lets the lines settle.
func (dev *Dev) tx(b byte) error {
	if err := dev.d.Tx([]byte{b}, nil); err != nil {
		return err
	}
	dev.sleep(settleTime)
	return nil
}

// writeNibble performs one 4-bit write cycle: lines asserted with enable
// low, enable pulsed high, enable dropped again. The controller samples the
// data lines on the falling edge.
func (dev *Dev) writeNibble(nibble, flags byte) error {
	if err := dev.tx(encode(nibble, flags)); err != nil {
		return err
	}
	if err := dev.tx(encode(nibble, flags|ctrlEnable)); err != nil {
		return err
	}
	return dev.tx(encode(nibble, flags))
}

// readNibble performs one 4-bit read cycle and returns the nibble the
// controller drove onto P4-P7. The expander's quasi-bidirectional pins must
// be written high before the controller can pull them (PCF8574 datasheet
// pg. 9), hence the 0x0f data pattern.
func (dev *Dev) readNibble(flags byte) (byte, error) {
	flags |= ctrlRW
	if err := dev.tx(encode(0x0f, flags)); err != nil {
		return 0, err
	}
	if err := dev.tx(encode(0x0f, flags|ctrlEnable)); err != nil {
		return 0, err
	}
	var r [1]byte
	if err := dev.d.Tx(nil, r[:]); err != nil {
		return 0, err
	}
	if err := dev.tx(encode(0x0f, flags)); err != nil {
		return 0, err
	}
	return r[0] >> 4, nil
}

// send transmits a full command or data byte as two write cycles, high
// nibble first. With checkBusy set it then polls the busy flag until the
// controller reports ready; send is the only place a timeout can originate.
// Without checkBusy the caller accepts the controller's worst case
// execution time implicitly (the scroll path does, spacing shifts far
// wider than any instruction runs).
func (dev *Dev) send(b byte, data, checkBusy bool) error {
	if dev.status == StateTimeout {
		return ErrTimeout
	}
	dev.status = StateBusy
	f := dev.flags(data)
	if err := dev.writeNibble(b>>4, f); err != nil {
		return wrap(err)
	}
	if err := dev.writeNibble(b&0x0f, f); err != nil {
		return wrap(err)
	}
	if !checkBusy {
		dev.status = StateReady
		return nil
	}
	return dev.waitReady()
}

// waitReady polls the busy flag up to busyPollLimit times. The bound is
// sized so the cumulative wait comfortably exceeds the controller's
// documented worst case (the clear instruction, 1.52ms); exhausting it
// means the controller is gone, not slow.
func (dev *Dev) waitReady() error {
	for range busyPollLimit {
		if _, err := dev.readStatus(); err != nil {
			return wrap(err)
		}
		if dev.status == StateReady {
			return nil
		}
	}
	dev.status = StateTimeout
	if dev.onTimeout != nil {
		dev.onTimeout(dev)
	}
	return ErrTimeout
}
