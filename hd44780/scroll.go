// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

// Scroll slides the visible text across the panel count times. One scroll
// is a full trip around the controller's 40-cell internal row, so the text
// ends up back where it started. A blank panel scrolls nothing and touches
// the bus not at all.
//
// The shift instruction is sent without busy checking; the inter-step
// delay doubles as the visible scroll speed and dwarfs the instruction's
// execution time.
func (dev *Dev) Scroll(count int) error {
	if count <= 0 {
		return nil
	}
	blank := true
	for _, b := range dev.buf {
		if b != 0 {
			blank = false
			break
		}
	}
	if blank {
		return nil
	}
	shifts := count * (ddramSize / dev.rows)
	for range shifts {
		if err := dev.send(instShift|shiftDisplay|shiftRight, false, false); err != nil {
			return err
		}
		dev.sleep(scrollStepTime)
	}
	return nil
}
