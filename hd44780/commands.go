// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

// Command enumerates the caller facing instruction set accepted by
// TransmitCommand.
type Command uint8

const (
	ClearDisplay Command = iota
	ReturnHome
	DisplayOn
	DisplayOff
	CursorOn
	CursorOff
	CursorBlink
	CursorUnblink
)

// dispatchKey gates each command on the power state: a powered down panel
// only accepts DisplayOn, a powered up panel everything else.
type dispatchKey struct {
	power PowerState
	cmd   Command
}

type dispatchEntry struct {
	inst  byte
	raw   bool // single expander byte, bypassing the nibble protocol
	after func(*Dev)
}

var dispatchTable = map[dispatchKey]dispatchEntry{
	{PowerOn, ClearDisplay}: {inst: instClear, after: func(dev *Dev) {
		for i := range dev.buf {
			dev.buf[i] = 0
		}
		dev.row, dev.col = 0, 0
	}},
	{PowerOn, ReturnHome}: {inst: instHome, after: func(dev *Dev) {
		dev.row, dev.col = 0, 0
	}},
	// Powering down drops every expander line, data, backlight and all.
	// The controller keeps its DDRAM; only the mirror knows what is on it.
	{PowerOn, DisplayOff}: {inst: 0x00, raw: true, after: func(dev *Dev) {
		dev.power = PowerOff
	}},
	{PowerOn, CursorOn}:      {inst: instDisplayCtrl | ctrlDisplayOn | ctrlCursorOn},
	{PowerOn, CursorOff}:     {inst: instDisplayCtrl | ctrlDisplayOn},
	{PowerOn, CursorBlink}:   {inst: instDisplayCtrl | ctrlDisplayOn | ctrlBlinkOn},
	{PowerOn, CursorUnblink}: {inst: instDisplayCtrl | ctrlDisplayOn},
	{PowerOff, DisplayOn}: {inst: ctrlBacklight, raw: true, after: func(dev *Dev) {
		dev.power = PowerOn
	}},
}

// TransmitCommand executes one of the fixed user commands, subject to the
// power gate. Combinations the gate rejects are silent no-ops, matching the
// lenient contract of the cursor operations.
func (dev *Dev) TransmitCommand(cmd Command) error {
	entry, ok := dispatchTable[dispatchKey{dev.power, cmd}]
	if !ok {
		return nil
	}
	if entry.raw {
		if err := dev.d.Tx([]byte{entry.inst}, nil); err != nil {
			return wrap(err)
		}
	} else if err := dev.send(entry.inst, false, true); err != nil {
		return err
	}
	if entry.after != nil {
		entry.after(dev)
	}
	return nil
}
