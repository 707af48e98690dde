// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

// readStatus fetches the busy flag and address counter in one two-cycle
// read transaction (register select low). Bit 7 is the busy flag, bits 6-0
// the address counter. The handle's status always reflects the result; the
// address counter is only captured when the controller is idle, since it
// may still move while an instruction executes.
func (dev *Dev) readStatus() (byte, error) {
	hi, err := dev.readNibble(dev.flags(false))
	if err != nil {
		return 0, err
	}
	lo, err := dev.readNibble(dev.flags(false))
	if err != nil {
		return 0, err
	}
	b := hi<<4 | lo
	if b&busyFlag != 0 {
		dev.status = StateBusy
	} else {
		dev.ac = b &^ busyFlag
		dev.status = StateReady
	}
	return b, nil
}
